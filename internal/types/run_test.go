package types

import (
	"reflect"
	"testing"
)

func TestRunStatus(t *testing.T) {
	for _, s := range []RunStatus{RunStatusSucceeded, RunStatusFailed, RunStatusSkippedPartial} {
		if !s.Valid() || !s.IsTerminal() {
			t.Errorf("%s should be valid and terminal", s)
		}
	}
	if RunStatusRunning.IsTerminal() {
		t.Error("running should not be terminal")
	}
	if RunStatus("done").Valid() || RunStatus("done").IsTerminal() {
		t.Error("done is not a run status")
	}
}

func sampleResult() *WorkflowResult {
	return &WorkflowResult{
		RunID:    "run-1",
		Workflow: "chain",
		Status:   RunStatusFailed,
		Layers:   [][]string{{"a"}, {"b"}, {"c"}},
		Steps: []StepResult{
			{Name: "a", State: StepFailed, Error: "boom"},
			{Name: "b", State: StepSkipped},
			{Name: "c", State: StepSkipped},
			{Name: "d", State: StepSucceeded, Output: "ok"},
		},
	}
}

func TestWorkflowResult_Queries(t *testing.T) {
	r := sampleResult()

	if got := r.Failed(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Failed() = %v", got)
	}
	if got := r.Skipped(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Skipped() = %v", got)
	}
	if got := r.Succeeded(); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("Succeeded() = %v", got)
	}

	summary := r.Summary()
	if summary[StepFailed] != 1 || summary[StepSkipped] != 2 || summary[StepSucceeded] != 1 {
		t.Errorf("Summary() = %v", summary)
	}

	if out, ok := r.Output("d"); !ok || out != "ok" {
		t.Errorf("Output(d) = %q, %v", out, ok)
	}
	if _, ok := r.Output("a"); ok {
		t.Error("Output of failed step should be unavailable")
	}
	if _, ok := r.Step("zz"); ok {
		t.Error("Step(zz) should not exist")
	}
}

func TestWorkflowResult_Clone(t *testing.T) {
	r := sampleResult()
	c := r.Clone()

	c.Steps[0].Output = "changed"
	c.Layers[0][0] = "x"

	if r.Steps[0].Output != "" || r.Layers[0][0] != "a" {
		t.Error("Clone should not share steps or layers")
	}
}

func TestWorkflowResult_Apply(t *testing.T) {
	w := &WorkflowResult{Steps: []StepResult{{Name: "a", State: StepPending}, {Name: "b", State: StepPending}}}

	done := StepResult{Name: "b", State: StepSucceeded, Output: "ok"}
	if !w.Apply(Event{Type: EventStepSucceeded, Step: "b", StepResult: &done}) {
		t.Fatal("Apply() = false for a known step")
	}
	if w.Steps[1].State != StepSucceeded || w.Steps[1].Output != "ok" {
		t.Errorf("step b = %+v", w.Steps[1])
	}

	if w.Apply(Event{Type: EventLayerStarted}) {
		t.Error("Apply() = true for a layer event")
	}
	ghost := StepResult{Name: "ghost", State: StepFailed}
	if w.Apply(Event{Type: EventStepFailed, StepResult: &ghost}) {
		t.Error("Apply() = true for an unknown step")
	}
}
