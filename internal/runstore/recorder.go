package runstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// locker is implemented by stores that can mark a run as owned by this process.
type locker interface {
	AcquireLock(runID string) (*RunLock, error)
}

// Recorder is a run observer that keeps an in-flight snapshot of every run
// (status running) and saves it to the store on each step transition.
type Recorder struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	runs  map[string]*types.WorkflowResult
	locks map[string]*RunLock
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		store:  store,
		logger: logger,
		runs:   make(map[string]*types.WorkflowResult),
		locks:  make(map[string]*RunLock),
	}
}

// Snapshot returns a copy of the in-flight snapshot for runID.
func (r *Recorder) Snapshot(runID string) (*types.WorkflowResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.runs[runID]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

// Observe records ev.
func (r *Recorder) Observe(ctx context.Context, ev types.Event) {
	switch {
	case ev.Type == types.EventRunStarted:
		r.started(ctx, ev)
	case ev.Type == types.EventRunFinished:
		r.finished(ctx, ev)
	case ev.IsStepEvent():
		r.stepChanged(ctx, ev)
	}
}

func (r *Recorder) started(ctx context.Context, ev types.Event) {
	if ev.Result == nil {
		return
	}
	snap := ev.Result.Clone()
	snap.Status = types.RunStatusRunning

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.store.(locker); ok {
		lock, err := l.AcquireLock(ev.RunID)
		if err != nil {
			r.logger.Warn("could not lock run", "run_id", ev.RunID, "error", err)
		} else {
			r.locks[ev.RunID] = lock
		}
	}

	r.runs[ev.RunID] = snap
	if err := r.store.Create(ctx, snap); err != nil {
		r.logger.Warn("recording run failed", "run_id", ev.RunID, "error", err)
	}
}

func (r *Recorder) stepChanged(ctx context.Context, ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, ok := r.runs[ev.RunID]
	if !ok || !snap.Apply(ev) {
		return
	}
	if err := r.store.Save(ctx, snap); err != nil {
		r.logger.Warn("recording step failed", "run_id", ev.RunID, "step", ev.Step, "error", err)
	}
}

func (r *Recorder) finished(ctx context.Context, ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.runs, ev.RunID)
	defer func() {
		if lock, ok := r.locks[ev.RunID]; ok {
			lock.Release()
			delete(r.locks, ev.RunID)
		}
	}()

	if ev.Result == nil {
		return
	}
	if err := r.store.Save(ctx, ev.Result); err != nil {
		r.logger.Warn("recording run result failed", "run_id", ev.RunID, "error", err)
	}
}
