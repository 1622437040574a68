package types

import "testing"

func TestEvent_IsStepEvent(t *testing.T) {
	tests := map[EventType]bool{
		EventRunStarted:    false,
		EventLayerStarted:  false,
		EventStepStarted:   true,
		EventStepSucceeded: true,
		EventStepFailed:    true,
		EventStepSkipped:   true,
		EventRunFinished:   false,
	}
	for typ, want := range tests {
		if got := (Event{Type: typ}).IsStepEvent(); got != want {
			t.Errorf("%s.IsStepEvent() = %v, want %v", typ, got, want)
		}
	}
}
