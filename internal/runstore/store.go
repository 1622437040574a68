// Package runstore persists workflow run results beyond the lifetime of a run.
package runstore

import (
	"context"
	"sort"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// Store provides persistence for run results.
type Store interface {
	// Create persists a new run. It fails if the run ID already exists.
	Create(ctx context.Context, run *types.WorkflowResult) error

	// Get retrieves a run by ID.
	Get(ctx context.Context, id string) (*types.WorkflowResult, error)

	// Save persists run state, replacing any previous snapshot.
	Save(ctx context.Context, run *types.WorkflowResult) error

	// Delete removes a run.
	Delete(ctx context.Context, id string) error

	// List returns runs matching filter, newest first.
	List(ctx context.Context, filter Filter) ([]*types.WorkflowResult, error)

	// Close releases resources held by the store.
	Close() error
}

// Filter for listing runs.
type Filter struct {
	Workflow string          // Filter by workflow name (empty = all)
	Status   types.RunStatus // Filter by status (empty = all)
	Limit    int             // Maximum results (0 = no limit)
}

// Match reports whether run passes the filter's field conditions.
func (f Filter) Match(run *types.WorkflowResult) bool {
	if f.Workflow != "" && run.Workflow != f.Workflow {
		return false
	}
	if f.Status != "" && run.Status != f.Status {
		return false
	}
	return true
}

// apply filters, sorts newest first and truncates runs.
func (f Filter) apply(runs []*types.WorkflowResult) []*types.WorkflowResult {
	out := runs[:0]
	for _, r := range runs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
