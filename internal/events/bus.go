// Package events publishes run lifecycle events over watermill pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// Topic carries every run event.
const Topic = "stepgraph.events"

// Message metadata keys.
const (
	MetadataEventType = "event_type"
	MetadataRunID     = "run_id"
)

// Handler processes one event. Errors are logged; the message is still acked.
type Handler func(ctx context.Context, ev types.Event) error

// Bus publishes run events and fans them out to subscribers. It implements
// the engine's observer contract, so it can be passed as a run observer.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

// NewBus wraps an existing publisher and subscriber.
func NewBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{publisher: pub, subscriber: sub, logger: logger}
}

// NewInMemoryBus returns a Bus backed by a watermill GoChannel. Publish blocks
// until every subscriber acks, so subscribers see a run's events in order.
func NewInMemoryBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            256,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewSlogLogger(logger.With("component", "events")),
	)
	return NewBus(pubSub, pubSub, logger)
}

// Publish sends ev on Topic.
func (b *Bus) Publish(ctx context.Context, ev types.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataEventType, string(ev.Type))
	msg.Metadata.Set(MetadataRunID, ev.RunID)
	msg.SetContext(ctx)

	return b.publisher.Publish(Topic, msg)
}

// Observe publishes ev, logging failures.
func (b *Bus) Observe(ctx context.Context, ev types.Event) {
	if err := b.Publish(ctx, ev); err != nil {
		b.logger.Warn("publishing event failed", "type", ev.Type, "run_id", ev.RunID, "error", err)
	}
}

// Subscribe delivers events to handler until ctx is done. When only is
// given, other event types are acked and skipped.
func (b *Bus) Subscribe(ctx context.Context, handler Handler, only ...types.EventType) error {
	messages, err := b.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", Topic, err)
	}

	want := make(map[types.EventType]bool, len(only))
	for _, t := range only {
		want[t] = true
	}

	go func() {
		for msg := range messages {
			eventType := types.EventType(msg.Metadata.Get(MetadataEventType))
			if len(want) > 0 && !want[eventType] {
				msg.Ack()
				continue
			}

			var ev types.Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Warn("dropping malformed event", "message_uuid", msg.UUID, "error", err)
				msg.Ack()
				continue
			}

			if err := handler(ctx, ev); err != nil {
				b.logger.Warn("event handler failed", "type", ev.Type, "run_id", ev.RunID, "error", err)
			}
			msg.Ack()
		}
	}()

	return nil
}

// Close closes the publisher and subscriber.
func (b *Bus) Close() error {
	if err := b.publisher.Close(); err != nil {
		return err
	}
	if any(b.subscriber) != any(b.publisher) {
		return b.subscriber.Close()
	}
	return nil
}
