package orchestrator

import (
	"context"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// Runner executes one step's resolved prompt and returns its textual output.
// Implementations must return promptly once ctx is done; the engine stops
// waiting at the timeout either way.
type Runner interface {
	Run(ctx context.Context, req types.RunRequest) (string, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req types.RunRequest) (string, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, req types.RunRequest) (string, error) {
	return f(ctx, req)
}
