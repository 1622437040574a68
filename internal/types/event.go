package types

import "time"

// EventType identifies a run lifecycle event.
type EventType string

const (
	EventRunStarted    EventType = "run.started"
	EventLayerStarted  EventType = "layer.started"
	EventStepStarted   EventType = "step.started"
	EventStepSucceeded EventType = "step.succeeded"
	EventStepFailed    EventType = "step.failed"
	EventStepSkipped   EventType = "step.skipped"
	EventRunFinished   EventType = "run.finished"
)

// Event is emitted to observers as a run progresses.
type Event struct {
	Type     EventType `json:"type"`
	RunID    string    `json:"run_id"`
	Workflow string    `json:"workflow"`
	Time     time.Time `json:"time"`

	// Layer is the layer index for layer and step events.
	Layer int `json:"layer"`

	// Step is the step name for step events.
	Step string `json:"step,omitempty"`

	// Steps lists every step for run.started and the layer members for layer.started.
	Steps []string `json:"steps,omitempty"`

	// Layers is set on run.started.
	Layers [][]string `json:"layers,omitempty"`

	// StepResult is a copy of the step record after the transition.
	StepResult *StepResult `json:"step_result,omitempty"`

	// Result is the final snapshot, set on run.finished.
	Result *WorkflowResult `json:"result,omitempty"`
}

// IsStepEvent reports whether e describes a single step transition.
func (e Event) IsStepEvent() bool {
	switch e.Type {
	case EventStepStarted, EventStepSucceeded, EventStepFailed, EventStepSkipped:
		return true
	}
	return false
}
