package runstore

import (
	"context"
	"errors"
	"testing"

	"github.com/akatz-ai/stepgraph/internal/orchestrator"
	"github.com/akatz-ai/stepgraph/internal/testutil"
	"github.com/akatz-ai/stepgraph/internal/types"
)

func TestRecorder_PersistsRun(t *testing.T) {
	ctx := context.Background()
	store, err := NewYAMLStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	rec := NewRecorder(store, testutil.NewTestLogger(t).Logger)

	// Observe the store from inside the run: after "a" succeeds the
	// persisted snapshot must still be running and show "a" succeeded.
	var midRun *types.WorkflowResult
	var locked bool
	probe := orchestrator.ObserverFunc(func(ctx context.Context, ev types.Event) {
		if ev.Type == types.EventStepSucceeded && ev.Step == "a" {
			midRun, _ = store.Get(ctx, ev.RunID)
			locked = store.IsLocked(ev.RunID)
		}
	})

	runner := testutil.NewFakeRunner().On("c", testutil.Script{Err: errors.New("bad")})
	opts := orchestrator.DefaultOptions()
	opts.Observers = orchestrator.Observers{rec, probe}
	e := orchestrator.NewEngine(runner, nil, opts)

	res, err := e.Run(ctx, testutil.Chain())
	if err != nil {
		t.Fatal(err)
	}

	if midRun == nil {
		t.Fatal("no snapshot persisted during the run")
	}
	if midRun.Status != types.RunStatusRunning {
		t.Errorf("mid-run status = %s, want running", midRun.Status)
	}
	if s, _ := midRun.Step("a"); s.State != types.StepSucceeded {
		t.Errorf("mid-run a = %s", s.State)
	}
	if s, _ := midRun.Step("c"); s.State != types.StepPending {
		t.Errorf("mid-run c = %s", s.State)
	}
	if !locked {
		t.Error("run should be locked while in flight")
	}

	final, err := store.Get(ctx, res.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != types.RunStatusFailed {
		t.Errorf("final status = %s", final.Status)
	}
	if final.CompletedAt == nil {
		t.Error("final snapshot missing completion time")
	}
	if store.IsLocked(res.RunID) {
		t.Error("lock should be released after the run")
	}
	if _, ok := rec.Snapshot(res.RunID); ok {
		t.Error("in-flight snapshot should be dropped after the run")
	}
}

func TestRecorder_InvalidDefinition(t *testing.T) {
	ctx := context.Background()
	store, err := NewYAMLStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	opts := orchestrator.DefaultOptions()
	opts.Observers = orchestrator.Observers{NewRecorder(store, nil)}
	e := orchestrator.NewEngine(testutil.NewFakeRunner(), nil, opts)

	def := testutil.Workflow("bad", testutil.Step("a", "p", "missing"))
	res, err := e.Run(ctx, def)
	if err == nil {
		t.Fatal("expected validation error")
	}

	got, err := store.Get(ctx, res.RunID)
	if err != nil {
		t.Fatalf("rejected run should be recorded: %v", err)
	}
	if got.Status != types.RunStatusFailed || got.Error == "" {
		t.Errorf("got status=%s error=%q", got.Status, got.Error)
	}
}
