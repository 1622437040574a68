package types

import "time"

// RunStatus is the overall status of a workflow run.
type RunStatus string

const (
	RunStatusRunning        RunStatus = "running"         // In flight; only seen in persisted snapshots
	RunStatusSucceeded      RunStatus = "succeeded"       // Every step succeeded
	RunStatusFailed         RunStatus = "failed"          // A step failed or was skipped
	RunStatusSkippedPartial RunStatus = "skipped_partial" // Nothing ran (empty graph)
)

// Valid returns true if this is a recognized run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed, RunStatusSkippedPartial:
		return true
	}
	return false
}

// IsTerminal returns true if this status is final.
func (s RunStatus) IsTerminal() bool {
	return s != RunStatusRunning && s.Valid()
}

// WorkflowResult is the snapshot of one workflow run.
type WorkflowResult struct {
	RunID    string     `yaml:"run_id" json:"run_id"`
	Workflow string     `yaml:"workflow" json:"workflow"`
	Status   RunStatus  `yaml:"status" json:"status"`
	Layers   [][]string `yaml:"layers" json:"layers"`

	// Steps in declaration order.
	Steps []StepResult `yaml:"steps" json:"steps"`

	// Error is set when the run could not start (invalid definition).
	Error string `yaml:"error,omitempty" json:"error,omitempty"`

	StartedAt       time.Time  `yaml:"started_at" json:"started_at"`
	CompletedAt     *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
	DurationSeconds float64    `yaml:"duration_seconds" json:"duration_seconds"`
}

// Step returns the result for the named step.
func (w *WorkflowResult) Step(name string) (StepResult, bool) {
	for _, s := range w.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Output returns the output of a succeeded step.
func (w *WorkflowResult) Output(name string) (string, bool) {
	s, ok := w.Step(name)
	if !ok || s.State != StepSucceeded {
		return "", false
	}
	return s.Output, true
}

// Summary counts steps by state.
func (w *WorkflowResult) Summary() map[StepState]int {
	counts := make(map[StepState]int)
	for _, s := range w.Steps {
		counts[s.State]++
	}
	return counts
}

// InState returns the names of steps in state, in declaration order.
func (w *WorkflowResult) InState(state StepState) []string {
	var names []string
	for _, s := range w.Steps {
		if s.State == state {
			names = append(names, s.Name)
		}
	}
	return names
}

// Succeeded returns the names of succeeded steps.
func (w *WorkflowResult) Succeeded() []string { return w.InState(StepSucceeded) }

// Failed returns the names of failed steps.
func (w *WorkflowResult) Failed() []string { return w.InState(StepFailed) }

// Skipped returns the names of skipped steps.
func (w *WorkflowResult) Skipped() []string { return w.InState(StepSkipped) }

// Clone returns a deep copy safe to hand to another goroutine.
func (w *WorkflowResult) Clone() *WorkflowResult {
	c := *w
	c.Layers = make([][]string, len(w.Layers))
	for i, l := range w.Layers {
		c.Layers[i] = append([]string(nil), l...)
	}
	c.Steps = append([]StepResult(nil), w.Steps...)
	return &c
}

// Apply folds a step event into the snapshot and reports whether a step
// record changed. Other event types are ignored.
func (w *WorkflowResult) Apply(ev Event) bool {
	if !ev.IsStepEvent() || ev.StepResult == nil {
		return false
	}
	for i := range w.Steps {
		if w.Steps[i].Name == ev.StepResult.Name {
			w.Steps[i] = *ev.StepResult
			return true
		}
	}
	return false
}
