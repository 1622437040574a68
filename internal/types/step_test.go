package types

import (
	"testing"
	"time"
)

func TestStepState(t *testing.T) {
	t.Run("Valid returns true for valid states", func(t *testing.T) {
		for _, s := range []StepState{StepPending, StepReady, StepRunning, StepSucceeded, StepFailed, StepSkipped} {
			if !s.Valid() {
				t.Errorf("%s should be valid", s)
			}
		}
	})

	t.Run("Valid returns false for invalid states", func(t *testing.T) {
		if StepState("done").Valid() {
			t.Error("done should not be a valid step state")
		}
	})

	t.Run("IsTerminal", func(t *testing.T) {
		terminal := map[StepState]bool{
			StepPending:   false,
			StepReady:     false,
			StepRunning:   false,
			StepSucceeded: true,
			StepFailed:    true,
			StepSkipped:   true,
		}
		for s, want := range terminal {
			if got := s.IsTerminal(); got != want {
				t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
			}
		}
	})
}

func TestStepState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to StepState
		want     bool
	}{
		{StepPending, StepReady, true},
		{StepPending, StepSkipped, true},
		{StepPending, StepRunning, false},
		{StepReady, StepRunning, true},
		{StepReady, StepFailed, true},
		{StepReady, StepSkipped, true},
		{StepRunning, StepSucceeded, true},
		{StepRunning, StepFailed, true},
		{StepRunning, StepSkipped, false},
		{StepSucceeded, StepFailed, false},
		{StepFailed, StepSucceeded, false},
		{StepSkipped, StepReady, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStepResult_Lifecycle(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := StepResult{Name: "draft", State: StepPending}

	if err := r.Start("p", start); err == nil {
		t.Fatal("Start from pending should fail")
	}
	if err := r.MarkReady(); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	if err := r.Start("resolved prompt", start); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.Prompt != "resolved prompt" || r.StartedAt == nil {
		t.Errorf("Start did not record prompt/time: %+v", r)
	}
	if err := r.Succeed("42", start.Add(1500*time.Millisecond)); err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	if r.State != StepSucceeded || r.Output != "42" {
		t.Errorf("state=%s output=%q", r.State, r.Output)
	}
	if r.DurationSeconds != 1.5 {
		t.Errorf("DurationSeconds = %v, want 1.5", r.DurationSeconds)
	}
	if err := r.Fail("late", "", start); err == nil {
		t.Error("Fail after Succeed should be rejected")
	}
}

func TestStepResult_FailAndSkip(t *testing.T) {
	now := time.Now()

	failed := StepResult{Name: "a", State: StepReady}
	if err := failed.Fail("missing output", "RES_001", now); err != nil {
		t.Fatalf("Fail from ready: %v", err)
	}
	if failed.ErrorCode != "RES_001" || failed.EndedAt == nil {
		t.Errorf("Fail did not record code/time: %+v", failed)
	}
	if failed.DurationSeconds != 0 {
		t.Errorf("never-started step should have zero duration, got %v", failed.DurationSeconds)
	}

	skipped := StepResult{Name: "b", State: StepPending}
	if err := skipped.Skip(`skipped: dependency "a" failed`, now); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if skipped.State != StepSkipped || skipped.StartedAt != nil {
		t.Errorf("Skip = %+v", skipped)
	}
}
