package runner

import (
	"context"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// EchoRunner returns each step's resolved prompt as its output. It lets a
// workflow be exercised end to end without invoking any agent.
type EchoRunner struct{}

// Run implements the runner contract.
func (EchoRunner) Run(ctx context.Context, req types.RunRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return req.Prompt, nil
}
