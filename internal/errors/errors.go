// Package errors provides structured error types for stepgraph.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error codes for stepgraph operations.
const (
	// Config errors
	CodeConfigMissingField = "CONFIG_001" // Missing required field
	CodeConfigInvalidValue = "CONFIG_002" // Invalid value

	// Definition errors
	CodeDefDuplicateStep      = "DEF_001" // Two steps share a name
	CodeDefDanglingDependency = "DEF_002" // depends_on names an unknown step
	CodeDefCycleDetected      = "DEF_003" // Dependency cycle
	CodeDefUndeclaredRef      = "DEF_004" // Template references a non-ancestor
	CodeDefUnknownRef         = "DEF_005" // Template references an unknown step
	CodeDefInvalidField       = "DEF_006" // Schema or field rule violated
	CodeDefNotFound           = "DEF_007" // Definition not found
	CodeDefParseError         = "DEF_008" // Malformed document

	// Resolution errors
	CodeResMissingOutput = "RES_001" // Referenced output unavailable

	// Run errors
	CodeRunTimeout        = "RUN_001" // Step exceeded its timeout
	CodeRunRunnerFailed   = "RUN_002" // Runner returned an error
	CodeRunCancelled      = "RUN_003" // Run context cancelled
	CodeRunUnknownProfile = "RUN_004" // No runner configured for profile
	CodeRunNotFound       = "RUN_005" // Run record not found

	// IO errors
	CodeIOFileNotFound = "IO_001" // File not found
	CodeIOPermission   = "IO_002" // Permission denied
	CodeIODiskFull     = "IO_003" // Disk full
	CodeIOReadError    = "IO_004" // Read error
	CodeIOWriteError   = "IO_005" // Write error
)

// Error is the structured error type for stepgraph operations.
type Error struct {
	Code    string         `json:"code"`              // Error code (e.g., "DEF_003")
	Message string         `json:"message"`           // Human-readable message
	Details map[string]any `json:"details,omitempty"` // Context (step, cycle, etc.)
	Cause   error          `json:"-"`                 // Wrapped error (not serialized)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// Step returns the step name recorded in the details, if any.
func (e *Error) Step() string {
	if s, ok := e.Details["step"].(string); ok {
		return s
	}
	return ""
}

// MarshalJSON includes the cause's message.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// New creates a new Error.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with an Error.
func Wrap(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted Error.
func Wrapf(code string, err error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// --- Config Errors ---

// ConfigMissingField creates an error for missing config field.
func ConfigMissingField(field string) *Error {
	return Newf(CodeConfigMissingField, "missing required config field: %s", field).
		WithDetail("field", field)
}

// ConfigInvalidValue creates an error for invalid config value.
func ConfigInvalidValue(field string, value any, reason string) *Error {
	return Newf(CodeConfigInvalidValue, "invalid config value for %s: %s", field, reason).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

// --- Definition Errors ---

// DuplicateStep reports a step name declared more than once.
func DuplicateStep(step string, first, second int) *Error {
	return Newf(CodeDefDuplicateStep, "duplicate step name %q (steps %d and %d)", step, first+1, second+1).
		WithDetail("step", step)
}

// DanglingDependency reports a depends_on entry naming no declared step.
func DanglingDependency(step, dependency, suggestion string) *Error {
	msg := fmt.Sprintf("step %q depends on unknown step %q", step, dependency)
	if suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return New(CodeDefDanglingDependency, msg).
		WithDetail("step", step).
		WithDetail("dependency", dependency)
}

// CycleDetected reports a dependency cycle. The first element of cycle names the step.
func CycleDetected(cycle []string) *Error {
	step := ""
	if len(cycle) > 0 {
		step = cycle[0]
	}
	return Newf(CodeDefCycleDetected, "dependency cycle detected: %s", strings.Join(cycle, " -> ")).
		WithDetail("step", step).
		WithDetail("cycle", cycle)
}

// UndeclaredReference reports a template placeholder naming a step that is not an ancestor.
func UndeclaredReference(step, ref string) *Error {
	return Newf(CodeDefUndeclaredRef, "step %q references output of %q which is not among its dependencies", step, ref).
		WithDetail("step", step).
		WithDetail("reference", ref)
}

// UnknownReference reports a template placeholder naming no declared step.
func UnknownReference(step, ref, suggestion string) *Error {
	msg := fmt.Sprintf("step %q references output of unknown step %q", step, ref)
	if suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return New(CodeDefUnknownRef, msg).
		WithDetail("step", step).
		WithDetail("reference", ref)
}

// InvalidField reports a field-level validation failure.
func InvalidField(step, field, reason string) *Error {
	var e *Error
	if step != "" {
		e = Newf(CodeDefInvalidField, "step %q: %s: %s", step, field, reason).WithDetail("step", step)
	} else {
		e = Newf(CodeDefInvalidField, "%s: %s", field, reason)
	}
	return e.WithDetail("field", field)
}

// DefinitionNotFound reports a missing stored definition.
func DefinitionNotFound(name string) *Error {
	return Newf(CodeDefNotFound, "workflow definition not found: %s", name).
		WithDetail("workflow", name)
}

// DefinitionParseError reports a malformed definition document.
func DefinitionParseError(source string, err error) *Error {
	return Wrap(CodeDefParseError, "failed to parse workflow definition", err).
		WithDetail("source", source)
}

// --- Resolution Errors ---

// MissingOutput reports a placeholder whose referenced output is not available.
func MissingOutput(step, ref string) *Error {
	return Newf(CodeResMissingOutput, "step %q: output of %q is not available", step, ref).
		WithDetail("step", step).
		WithDetail("reference", ref)
}

// --- Run Errors ---

// StepTimeout reports a step that exceeded its timeout.
func StepTimeout(step string, seconds float64) *Error {
	return Newf(CodeRunTimeout, "step %q timed out after %gs", step, seconds).
		WithDetail("step", step).
		WithDetail("timeout_seconds", seconds)
}

// RunnerFailed wraps an error returned by an agent runner.
func RunnerFailed(step string, err error) *Error {
	return Wrapf(CodeRunRunnerFailed, err, "step %q failed", step).
		WithDetail("step", step)
}

// RunCancelled reports a step interrupted by run cancellation.
func RunCancelled(step string) *Error {
	return Newf(CodeRunCancelled, "step %q cancelled", step).
		WithDetail("step", step)
}

// UnknownProfile reports a profile with no configured runner.
func UnknownProfile(profile string) *Error {
	return Newf(CodeRunUnknownProfile, "no runner configured for profile %q", profile).
		WithDetail("profile", profile)
}

// RunNotFound reports a missing run record.
func RunNotFound(runID string) *Error {
	return Newf(CodeRunNotFound, "run not found: %s", runID).
		WithDetail("run_id", runID)
}

// --- IO Errors ---

// IOFileNotFound creates an error for missing file.
func IOFileNotFound(path string) *Error {
	return Newf(CodeIOFileNotFound, "file not found: %s", path).
		WithDetail("path", path)
}

// IOPermissionDenied creates an error for permission issues.
func IOPermissionDenied(path string, err error) *Error {
	return Wrap(CodeIOPermission, "permission denied", err).
		WithDetail("path", path)
}

// IODiskFull creates an error for disk space issues.
func IODiskFull(path string, err error) *Error {
	return Wrap(CodeIODiskFull, "disk full", err).
		WithDetail("path", path)
}

// IOReadError creates an error for read failures.
func IOReadError(path string, err error) *Error {
	return Wrap(CodeIOReadError, "failed to read file", err).
		WithDetail("path", path)
}

// IOWriteError creates an error for write failures.
func IOWriteError(path string, err error) *Error {
	return Wrap(CodeIOWriteError, "failed to write file", err).
		WithDetail("path", path)
}

// ValidationErrors collects every problem found in a definition.
type ValidationErrors struct {
	Errors []*Error `json:"errors"`
}

// Add appends an error.
func (v *ValidationErrors) Add(err *Error) {
	v.Errors = append(v.Errors, err)
}

// HasErrors reports whether any errors were collected.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Err returns v as an error, or nil when empty.
func (v *ValidationErrors) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}
	msgs := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		msgs[i] = "  - " + e.Error()
	}
	return fmt.Sprintf("%d validation errors:\n%s", len(v.Errors), strings.Join(msgs, "\n"))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (v *ValidationErrors) Unwrap() []error {
	out := make([]error, len(v.Errors))
	for i, e := range v.Errors {
		out[i] = e
	}
	return out
}

// HasCode checks if an error is an Error with the given code.
// Joined errors are searched in order; the first Error found decides.
func HasCode(err error, code string) bool {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Code == code
	}
	return false
}

// AnyCode reports whether any Error in err's tree carries code.
func AnyCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if serr, ok := err.(*Error); ok && serr.Code == code {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if AnyCode(e, code) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return AnyCode(u.Unwrap(), code)
	}
	return false
}

// Code returns the error code if err is an Error, empty string otherwise.
func Code(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Code
	}
	return ""
}
