package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// tracker keeps in-memory snapshots of runs this server has in flight,
// updated from the event bus.
type tracker struct {
	mu   sync.RWMutex
	runs map[string]*types.WorkflowResult
}

func newTracker() *tracker {
	return &tracker{runs: make(map[string]*types.WorkflowResult)}
}

// begin records a run that was accepted but has not emitted run.started.
func (t *tracker) begin(runID, workflow string, layers [][]string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[runID] = &types.WorkflowResult{
		RunID:     runID,
		Workflow:  workflow,
		Status:    types.RunStatusRunning,
		Layers:    layers,
		StartedAt: now,
	}
}

func (t *tracker) handle(_ context.Context, ev types.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case ev.Type == types.EventRunStarted && ev.Result != nil:
		t.runs[ev.RunID] = ev.Result.Clone()
	case ev.Type == types.EventRunFinished:
		delete(t.runs, ev.RunID)
	case ev.IsStepEvent():
		if snap, ok := t.runs[ev.RunID]; ok {
			snap.Apply(ev)
		}
	}
	return nil
}

// forget drops a run that never started.
func (t *tracker) forget(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, runID)
}

func (t *tracker) get(runID string) (*types.WorkflowResult, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap, ok := t.runs[runID]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

// list returns in-flight runs, newest first.
func (t *tracker) list() []*types.WorkflowResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*types.WorkflowResult, 0, len(t.runs))
	for _, snap := range t.runs {
		out = append(out, snap.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out
}
