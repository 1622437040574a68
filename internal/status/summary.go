package status

import (
	"time"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// RunSummary contains computed information about a run for display.
type RunSummary struct {
	RunID        string          `json:"run_id"`
	Workflow     string          `json:"workflow"`
	Status       types.RunStatus `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Layers       int             `json:"layers"`
	StepStats    StepStats       `json:"step_stats"`
	RunningSteps []RunningStep   `json:"running_steps,omitempty"`
	Errors       []StepError     `json:"errors,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// StepStats contains step count breakdown.
type StepStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Running   int `json:"running"`
	Ready     int `json:"ready"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Finished counts steps in a terminal state.
func (s StepStats) Finished() int {
	return s.Succeeded + s.Failed + s.Skipped
}

// RunningStep contains info about a step whose runner is in flight.
type RunningStep struct {
	Name      string        `json:"name"`
	Profile   string        `json:"profile"`
	Layer     int           `json:"layer"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// StepError is a failed step and why.
type StepError struct {
	Step    string `json:"step"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewRunSummary creates a summary from a run result. now is used for the
// elapsed time of running steps.
func NewRunSummary(res *types.WorkflowResult, now time.Time) *RunSummary {
	summary := &RunSummary{
		RunID:       res.RunID,
		Workflow:    res.Workflow,
		Status:      res.Status,
		StartedAt:   res.StartedAt,
		CompletedAt: res.CompletedAt,
		Layers:      len(res.Layers),
		StepStats:   computeStepStats(res),
		Error:       res.Error,
	}

	for _, step := range res.Steps {
		switch step.State {
		case types.StepRunning:
			rs := RunningStep{Name: step.Name, Profile: step.Profile, Layer: step.Layer}
			if step.StartedAt != nil {
				rs.StartedAt = *step.StartedAt
				rs.Duration = now.Sub(*step.StartedAt)
			}
			summary.RunningSteps = append(summary.RunningSteps, rs)
		case types.StepFailed:
			summary.Errors = append(summary.Errors, StepError{
				Step:    step.Name,
				Code:    step.ErrorCode,
				Message: step.Error,
			})
		}
	}

	return summary
}

// computeStepStats tallies up step states.
func computeStepStats(res *types.WorkflowResult) StepStats {
	stats := StepStats{
		Total: len(res.Steps),
	}

	for _, step := range res.Steps {
		switch step.State {
		case types.StepSucceeded:
			stats.Succeeded++
		case types.StepRunning:
			stats.Running++
		case types.StepReady:
			stats.Ready++
		case types.StepPending:
			stats.Pending++
		case types.StepFailed:
			stats.Failed++
		case types.StepSkipped:
			stats.Skipped++
		}
	}

	return stats
}
