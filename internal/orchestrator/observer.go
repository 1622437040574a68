package orchestrator

import (
	"context"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// Observer receives run lifecycle events. The engine delivers events for a
// run one at a time and in order, so implementations need no locking of
// their own for a single run.
type Observer interface {
	Observe(ctx context.Context, ev types.Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev types.Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ev types.Event) { f(ctx, ev) }

// Observers fans an event out to each member in order.
type Observers []Observer

// Observe implements Observer.
func (o Observers) Observe(ctx context.Context, ev types.Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, ev)
		}
	}
}
