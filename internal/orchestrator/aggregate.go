package orchestrator

import (
	"time"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// DeriveStatus reduces step states to the overall run status. An empty step
// list is skipped_partial; any non-terminal step keeps the run running.
func DeriveStatus(steps []types.StepResult) types.RunStatus {
	if len(steps) == 0 {
		return types.RunStatusSkippedPartial
	}

	status := types.RunStatusSucceeded
	for _, s := range steps {
		switch {
		case !s.State.IsTerminal():
			return types.RunStatusRunning
		case s.State != types.StepSucceeded:
			status = types.RunStatusFailed
		}
	}
	return status
}

// aggregate finalizes result from the terminal step states.
func aggregate(result *types.WorkflowResult, steps []types.StepResult, now time.Time) {
	result.Steps = steps
	result.Status = DeriveStatus(steps)
	result.CompletedAt = &now
	result.DurationSeconds = now.Sub(result.StartedAt).Seconds()
}
