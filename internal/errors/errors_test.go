package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		wantStr string
	}{
		{
			name: "simple error",
			err: &Error{
				Code:    "TEST_001",
				Message: "test error",
			},
			wantStr: "[TEST_001] test error",
		},
		{
			name: "error with cause",
			err: &Error{
				Code:    "TEST_002",
				Message: "wrapped error",
				Cause:   errors.New("underlying"),
			},
			wantStr: "[TEST_002] wrapped error: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantStr {
				t.Errorf("Error() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap("TEST_001", "test", underlying)

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find the cause")
	}
}

func TestError_WithDetail(t *testing.T) {
	err := New("TEST_001", "test").
		WithDetail("key1", "value1").
		WithDetail("key2", 42)

	if err.Details["key1"] != "value1" {
		t.Errorf("Details[key1] = %v, want value1", err.Details["key1"])
	}
	if err.Details["key2"] != 42 {
		t.Errorf("Details[key2] = %v, want 42", err.Details["key2"])
	}
}

func TestError_MarshalJSON(t *testing.T) {
	err := Wrap(CodeRunRunnerFailed, "step failed", errors.New("exit status 1")).
		WithDetail("step", "build")

	data, mErr := json.Marshal(err)
	if mErr != nil {
		t.Fatalf("Marshal() error = %v", mErr)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["code"] != CodeRunRunnerFailed {
		t.Errorf("code = %v, want %s", decoded["code"], CodeRunRunnerFailed)
	}
	if decoded["cause"] != "exit status 1" {
		t.Errorf("cause = %v, want %q", decoded["cause"], "exit status 1")
	}
	details, ok := decoded["details"].(map[string]any)
	if !ok || details["step"] != "build" {
		t.Errorf("details = %v, want step=build", decoded["details"])
	}
}

func TestDefinitionErrorsNameTheStep(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		wantCode string
		wantStep string
	}{
		{"duplicate", DuplicateStep("fetch", 0, 2), CodeDefDuplicateStep, "fetch"},
		{"dangling", DanglingDependency("build", "fetc", "fetch"), CodeDefDanglingDependency, "build"},
		{"cycle", CycleDetected([]string{"a", "b", "a"}), CodeDefCycleDetected, "a"},
		{"undeclared", UndeclaredReference("c", "a"), CodeDefUndeclaredRef, "c"},
		{"unknown ref", UnknownReference("c", "zz", ""), CodeDefUnknownRef, "c"},
		{"missing output", MissingOutput("c", "a"), CodeResMissingOutput, "c"},
		{"timeout", StepTimeout("slow", 1), CodeRunTimeout, "slow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if got := tt.err.Step(); got != tt.wantStep {
				t.Errorf("Step() = %q, want %q", got, tt.wantStep)
			}
			if !strings.Contains(tt.err.Error(), tt.wantStep) {
				t.Errorf("Error() = %q, should mention %q", tt.err.Error(), tt.wantStep)
			}
		})
	}
}

func TestDanglingDependencySuggestion(t *testing.T) {
	err := DanglingDependency("build", "fetc", "fetch")
	if !strings.Contains(err.Error(), `did you mean "fetch"?`) {
		t.Errorf("Error() = %q, want suggestion", err.Error())
	}

	err = DanglingDependency("build", "zzz", "")
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("Error() = %q, want no suggestion", err.Error())
	}
}

func TestCycleDetectedPath(t *testing.T) {
	err := CycleDetected([]string{"a", "b", "c", "a"})
	if !strings.Contains(err.Error(), "a -> b -> c -> a") {
		t.Errorf("Error() = %q, want cycle path", err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	var v ValidationErrors
	if v.Err() != nil {
		t.Fatal("empty ValidationErrors should produce nil error")
	}

	v.Add(DuplicateStep("a", 0, 1))
	v.Add(CycleDetected([]string{"b", "b"}))

	err := v.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "2 validation errors") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !AnyCode(err, CodeDefCycleDetected) {
		t.Error("AnyCode should find the cycle error")
	}
	if !HasCode(err, CodeDefDuplicateStep) {
		t.Error("HasCode should match the first collected error")
	}

	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatal("errors.As should find an *Error")
	}
}

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"direct match", New(CodeRunTimeout, "x"), CodeRunTimeout, true},
		{"wrapped match", fmt.Errorf("outer: %w", New(CodeRunTimeout, "x")), CodeRunTimeout, true},
		{"different code", New(CodeRunTimeout, "x"), CodeRunCancelled, false},
		{"plain error", errors.New("plain"), CodeRunTimeout, false},
		{"nil", nil, CodeRunTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCode(t *testing.T) {
	if got := Code(New(CodeIOReadError, "x")); got != CodeIOReadError {
		t.Errorf("Code() = %q, want %q", got, CodeIOReadError)
	}
	if got := Code(errors.New("plain")); got != "" {
		t.Errorf("Code() = %q, want empty", got)
	}
}
