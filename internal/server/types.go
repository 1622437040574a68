package server

import (
	"github.com/akatz-ai/stepgraph/internal/definition"
	"github.com/akatz-ai/stepgraph/internal/types"
)

// StartRunRequest is the optional body of POST /workflows/:name/runs.
type StartRunRequest struct {
	// MaxConcurrency overrides the configured per-layer limit; 0 is unbounded.
	MaxConcurrency *int `json:"max_concurrency,omitempty" validate:"omitempty,gte=0,lte=1024"`
	// TimeoutSeconds overrides the default step timeout.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" validate:"omitempty,gte=1"`
	// DryRun answers every step with its resolved prompt instead of calling agents.
	DryRun bool `json:"dry_run,omitempty"`
}

// StartRunResponse is returned with 202 Accepted.
type StartRunResponse struct {
	RunID    string     `json:"run_id"`
	Workflow string     `json:"workflow"`
	Layers   [][]string `json:"layers"`
	Location string     `json:"location"`
}

// WorkflowResponse is a stored definition with its layer plan.
type WorkflowResponse struct {
	Definition *types.WorkflowDefinition `json:"definition"`
	Layers     [][]string                `json:"layers,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// WorkflowListResponse lists stored definitions.
type WorkflowListResponse struct {
	Workflows []definition.Summary `json:"workflows"`
}

// ValidateResponse reports a definition that passed validation.
type ValidateResponse struct {
	Valid  bool       `json:"valid"`
	Layers [][]string `json:"layers"`
}

// RunListResponse lists run records, newest first.
type RunListResponse struct {
	Runs []*types.WorkflowResult `json:"runs"`
}
