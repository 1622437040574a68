package types

import (
	"testing"
	"time"
)

func TestStepSpec_Timeout(t *testing.T) {
	def := 300 * time.Second

	if got := (StepSpec{}).Timeout(def); got != def {
		t.Errorf("Timeout() = %v, want default %v", got, def)
	}
	if got := (StepSpec{TimeoutSeconds: 2}).Timeout(def); got != 2*time.Second {
		t.Errorf("Timeout() = %v, want 2s", got)
	}
}

func TestStepSpec_ProfileOr(t *testing.T) {
	tests := []struct {
		spec StepSpec
		def  string
		want string
	}{
		{StepSpec{Profile: "writer"}, "planner", "writer"},
		{StepSpec{}, "planner", "planner"},
		{StepSpec{}, "", DefaultProfile},
	}
	for _, tt := range tests {
		if got := tt.spec.ProfileOr(tt.def); got != tt.want {
			t.Errorf("ProfileOr(%q) = %q, want %q", tt.def, got, tt.want)
		}
	}
}

func TestWorkflowDefinition_WithDefaults(t *testing.T) {
	def := WorkflowDefinition{
		Name: "wf",
		Steps: []StepSpec{
			{Name: "a", Prompt: "x"},
			{Name: "b", Prompt: "y", Profile: "review", DependsOn: []string{"a"}},
		},
	}

	got := def.WithDefaults("planner")

	if got.Steps[0].Profile != "planner" || got.Steps[1].Profile != "review" {
		t.Errorf("profiles = %q, %q", got.Steps[0].Profile, got.Steps[1].Profile)
	}
	if def.Steps[0].Profile != "" {
		t.Error("WithDefaults should not mutate the original")
	}

	got.Steps[1].DependsOn[0] = "z"
	if def.Steps[1].DependsOn[0] != "a" {
		t.Error("WithDefaults should copy depends_on")
	}

	if names := def.StepNames(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("StepNames() = %v", names)
	}
	if s, ok := def.Step("b"); !ok || s.Profile != "review" {
		t.Errorf("Step(b) = %+v, %v", s, ok)
	}
}
