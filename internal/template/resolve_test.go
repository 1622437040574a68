package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/akatz-ai/stepgraph/internal/errors"
)

func TestReferences(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   []string
	}{
		{"none", "plain text", nil},
		{"single", "use {{A.output}} here", []string{"A"}},
		{"repeated and ordered", "{{b.output}} {{a.output}} {{b.output}}", []string{"b", "a"}},
		{"whitespace", "{{ research-1.output }}", []string{"research-1"}},
		{"not an output reference", "{{a.outputs}} {{a}} {{a.output.x}}", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, References(tt.prompt))
		})
	}
}

func TestResolve_Substitutes(t *testing.T) {
	outputs := Outputs{"A": "42", "draft": "first draft"}

	got, err := Resolve("B", "The answer is {{A.output}}.", outputs.Lookup)
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", got)

	got, err = Resolve("C", "{{draft.output}} / {{ A.output }} / {{draft.output}}", outputs.Lookup)
	require.NoError(t, err)
	assert.Equal(t, "first draft / 42 / first draft", got)
}

func TestResolve_PlaceholderForms(t *testing.T) {
	outputs := Outputs{"step_1": "v1", "fetch-data": "v2"}

	tests := []struct {
		prompt string
		want   string
	}{
		{"{{step_1.output}}", "v1"},
		{"{{fetch-data.output}}", "v2"},
		{"{{ step_1.output}}", "v1"},
		{"{{step_1.output }}", "v1"},
		{"{{\tstep_1.output\t}}", "v1"},
		{"{{step_1 .output}}", "{{step_1 .output}}"},
		{"{{step_1. output}}", "{{step_1. output}}"},
		{"{ {step_1.output} }", "{ {step_1.output} }"},
	}

	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			got, err := Resolve("x", tt.prompt, outputs.Lookup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_NoPlaceholders(t *testing.T) {
	got, err := Resolve("A", "no templates {{here}}", Outputs{}.Lookup)
	require.NoError(t, err)
	assert.Equal(t, "no templates {{here}}", got)
}

func TestResolve_DoesNotRescanOutputs(t *testing.T) {
	outputs := Outputs{"A": "{{B.output}}", "B": "secret"}

	got, err := Resolve("C", "x={{A.output}}", outputs.Lookup)
	require.NoError(t, err)
	assert.Equal(t, "x={{B.output}}", got)
}

func TestResolve_MissingOutput(t *testing.T) {
	outputs := Outputs{"A": "ok"}

	got, err := Resolve("C", "{{A.output}} {{B.output}} {{Z.output}}", outputs.Lookup)
	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.CodeResMissingOutput))
	assert.Contains(t, err.Error(), `"B"`)
	assert.Contains(t, err.Error(), `"C"`)
	assert.Equal(t, "{{A.output}} {{B.output}} {{Z.output}}", got)

	var serr *serrors.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, []string{"B", "Z"}, serr.Details["missing"])
}

func TestHasPlaceholders(t *testing.T) {
	assert.True(t, HasPlaceholders("{{x.output}}"))
	assert.False(t, HasPlaceholders("{{x}}"))
}
