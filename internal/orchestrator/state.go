package orchestrator

import (
	"sync"

	"github.com/akatz-ai/stepgraph/internal/graph"
	"github.com/akatz-ai/stepgraph/internal/template"
	"github.com/akatz-ai/stepgraph/internal/types"
)

// runState is the mutable record of one run. Each step's entry is written
// only by the goroutine executing that step; readers take the lock.
type runState struct {
	plan *graph.Plan

	mu      sync.Mutex
	results []types.StepResult // indexed by step id
}

func newRunState(plan *graph.Plan, defaultProfile string) *runState {
	results := make([]types.StepResult, plan.Len())
	for id := range results {
		spec := plan.Spec(id)
		results[id] = types.StepResult{
			Name:    spec.Name,
			Profile: spec.ProfileOr(defaultProfile),
			Layer:   plan.LayerIndex(id),
			State:   types.StepPending,
		}
	}
	return &runState{plan: plan, results: results}
}

// update applies fn to the entry for id and returns a copy of the result.
func (s *runState) update(id int, fn func(r *types.StepResult) error) (types.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(&s.results[id]); err != nil {
		return s.results[id], err
	}
	return s.results[id], nil
}

func (s *runState) get(id int) types.StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[id]
}

// blocker returns the first dependency of id, in declaration order, that did
// not succeed.
func (s *runState) blocker(id int) (string, types.StepState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dep := range s.plan.DependencyIDs(id) {
		if r := s.results[dep]; r.State != types.StepSucceeded {
			return r.Name, r.State, true
		}
	}
	return "", "", false
}

// lookup resolves outputs for a step in layer. Only steps in strictly earlier
// layers are visible, so a result never depends on timing within a layer.
func (s *runState) lookup(layer int) template.OutputLookup {
	return func(name string) (string, bool) {
		id, ok := s.plan.ID(name)
		if !ok || s.plan.LayerIndex(id) >= layer {
			return "", false
		}
		r := s.get(id)
		if r.State != types.StepSucceeded {
			return "", false
		}
		return r.Output, true
	}
}

// steps returns a copy of every entry in declaration order.
func (s *runState) steps() []types.StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.StepResult(nil), s.results...)
}
