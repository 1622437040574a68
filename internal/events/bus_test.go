package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akatz-ai/stepgraph/internal/orchestrator"
	"github.com/akatz-ai/stepgraph/internal/testutil"
	"github.com/akatz-ai/stepgraph/internal/types"
)

type collector struct {
	mu     sync.Mutex
	events []types.Event
	done   chan struct{}
}

func newCollector() *collector { return &collector{done: make(chan struct{})} }

func (c *collector) handle(_ context.Context, ev types.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	if ev.Type == types.EventRunFinished {
		close(c.done)
	}
	return nil
}

func (c *collector) wait(t *testing.T) []types.Event {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("run.finished never delivered")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Event(nil), c.events...)
}

func TestBus_DeliversRunEventsInOrder(t *testing.T) {
	bus := NewInMemoryBus(testutil.NewTestLogger(t).Logger)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newCollector()
	require.NoError(t, bus.Subscribe(ctx, c.handle))

	opts := orchestrator.DefaultOptions()
	opts.Observers = orchestrator.Observers{bus}
	runner := testutil.NewFakeRunner().On("b", testutil.Script{Err: errors.New("bad")})

	res, err := orchestrator.NewEngine(runner, nil, opts).Run(ctx, testutil.Chain())
	require.NoError(t, err)

	events := c.wait(t)
	var got []types.EventType
	for _, ev := range events {
		got = append(got, ev.Type)
		assert.Equal(t, res.RunID, ev.RunID)
	}
	assert.Equal(t, []types.EventType{
		types.EventRunStarted,
		types.EventLayerStarted,
		types.EventStepStarted,
		types.EventStepSucceeded,
		types.EventLayerStarted,
		types.EventStepStarted,
		types.EventStepFailed,
		types.EventLayerStarted,
		types.EventStepSkipped,
		types.EventRunFinished,
	}, got)

	failed := events[6]
	require.NotNil(t, failed.StepResult)
	assert.Equal(t, "RUN_002", failed.StepResult.ErrorCode)

	final := events[len(events)-1].Result
	require.NotNil(t, final)
	assert.Equal(t, types.RunStatusFailed, final.Status)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, final.Layers)
}

func TestBus_FilterByType(t *testing.T) {
	bus := NewInMemoryBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newCollector()
	require.NoError(t, bus.Subscribe(ctx, c.handle, types.EventRunFinished))

	ev := types.Event{Type: types.EventStepStarted, RunID: "run-1"}
	require.NoError(t, bus.Publish(ctx, ev))
	require.NoError(t, bus.Publish(ctx, types.Event{Type: types.EventRunFinished, RunID: "run-1"}))

	events := c.wait(t)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventRunFinished, events[0].Type)
}

func TestBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewInMemoryBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newCollector()
	calls := 0
	require.NoError(t, bus.Subscribe(ctx, func(ctx context.Context, ev types.Event) error {
		calls++
		if calls == 1 {
			return errors.New("first one fails")
		}
		return c.handle(ctx, ev)
	}))

	require.NoError(t, bus.Publish(ctx, types.Event{Type: types.EventRunStarted, RunID: "r"}))
	require.NoError(t, bus.Publish(ctx, types.Event{Type: types.EventRunFinished, RunID: "r"}))

	events := c.wait(t)
	require.Len(t, events, 1)
	assert.Equal(t, 2, calls)
}
