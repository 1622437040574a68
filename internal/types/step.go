package types

import (
	"fmt"
	"time"
)

// StepState represents the lifecycle state of a step within one run.
type StepState string

const (
	StepPending   StepState = "pending"   // Dependencies not yet terminal
	StepReady     StepState = "ready"     // All dependencies succeeded
	StepRunning   StepState = "running"   // Runner invoked
	StepSucceeded StepState = "succeeded" // Runner returned output
	StepFailed    StepState = "failed"    // Runner error, timeout, or resolution error
	StepSkipped   StepState = "skipped"   // A dependency failed or was skipped
)

// Valid returns true if this is a recognized state.
func (s StepState) Valid() bool {
	switch s {
	case StepPending, StepReady, StepRunning, StepSucceeded, StepFailed, StepSkipped:
		return true
	}
	return false
}

// IsTerminal returns true if this state is final.
func (s StepState) IsTerminal() bool {
	return s == StepSucceeded || s == StepFailed || s == StepSkipped
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s StepState) CanTransitionTo(target StepState) bool {
	switch s {
	case StepPending:
		return target == StepReady || target == StepSkipped
	case StepReady:
		// Failed covers resolution errors, which happen before dispatch.
		return target == StepRunning || target == StepFailed || target == StepSkipped
	case StepRunning:
		return target == StepSucceeded || target == StepFailed
	}
	return false
}

// StepResult is the per-step record of a run.
type StepResult struct {
	Name    string    `yaml:"name" json:"name"`
	Profile string    `yaml:"profile" json:"profile"`
	Layer   int       `yaml:"layer" json:"layer"`
	State   StepState `yaml:"state" json:"state"`

	// Prompt is the resolved prompt handed to the runner.
	Prompt    string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Output    string `yaml:"output,omitempty" json:"output,omitempty"`
	Error     string `yaml:"error,omitempty" json:"error,omitempty"`
	ErrorCode string `yaml:"error_code,omitempty" json:"error_code,omitempty"`

	StartedAt       *time.Time `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	EndedAt         *time.Time `yaml:"ended_at,omitempty" json:"ended_at,omitempty"`
	DurationSeconds float64    `yaml:"duration_seconds" json:"duration_seconds"`
}

func (r *StepResult) transition(target StepState) error {
	if !r.State.CanTransitionTo(target) {
		return fmt.Errorf("step %s: cannot transition from %s to %s", r.Name, r.State, target)
	}
	r.State = target
	return nil
}

// MarkReady promotes a pending step whose dependencies all succeeded.
func (r *StepResult) MarkReady() error {
	return r.transition(StepReady)
}

// Start marks the step as running with the resolved prompt.
func (r *StepResult) Start(prompt string, now time.Time) error {
	if err := r.transition(StepRunning); err != nil {
		return err
	}
	r.Prompt = prompt
	r.StartedAt = &now
	return nil
}

// Succeed records the runner output.
func (r *StepResult) Succeed(output string, now time.Time) error {
	if err := r.transition(StepSucceeded); err != nil {
		return err
	}
	r.Output = output
	r.finish(now)
	return nil
}

// Fail records a failure. code may be empty.
func (r *StepResult) Fail(msg, code string, now time.Time) error {
	if err := r.transition(StepFailed); err != nil {
		return err
	}
	r.Error = msg
	r.ErrorCode = code
	r.finish(now)
	return nil
}

// Skip marks the step as never runnable.
func (r *StepResult) Skip(reason string, now time.Time) error {
	if err := r.transition(StepSkipped); err != nil {
		return err
	}
	r.Error = reason
	r.EndedAt = &now
	return nil
}

func (r *StepResult) finish(now time.Time) {
	r.EndedAt = &now
	if r.StartedAt != nil {
		r.DurationSeconds = now.Sub(*r.StartedAt).Seconds()
	}
}
