package testutil

import "github.com/akatz-ai/stepgraph/internal/types"

// Step builds a step spec.
func Step(name, prompt string, deps ...string) types.StepSpec {
	return types.StepSpec{Name: name, Prompt: prompt, DependsOn: deps}
}

// Workflow builds a definition from steps in declaration order.
func Workflow(name string, steps ...types.StepSpec) *types.WorkflowDefinition {
	if steps == nil {
		steps = []types.StepSpec{}
	}
	return &types.WorkflowDefinition{Name: name, Steps: steps}
}

// Diamond returns root -> (left, right) -> join.
func Diamond() *types.WorkflowDefinition {
	return Workflow("diamond",
		Step("root", "start"),
		Step("left", "left of {{root.output}}", "root"),
		Step("right", "right of {{root.output}}", "root"),
		Step("join", "join {{left.output}} and {{right.output}}", "left", "right"),
	)
}

// Chain returns a -> b -> c.
func Chain() *types.WorkflowDefinition {
	return Workflow("chain",
		Step("a", "first"),
		Step("b", "second after {{a.output}}", "a"),
		Step("c", "third after {{b.output}}", "b"),
	)
}
