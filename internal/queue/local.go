package queue

import (
	"context"
	"log"

	"tradewind/internal/orders/saga"
)

// LocalChannel is an in-process saga event queue for tests and DB-less runs.
// Delivery is FIFO; a failed handler gets the event re-enqueued, giving the
// same at-least-once semantics as the Redis channel.
type LocalChannel struct {
	events chan saga.Event
	logf   func(format string, args ...any)
}

// NewLocalChannel constructs a channel with the given buffer size.
func NewLocalChannel(buffer int, logf func(string, ...any)) *LocalChannel {
	if buffer < 1 {
		buffer = 64
	}
	if logf == nil {
		logf = log.Printf
	}
	return &LocalChannel{
		events: make(chan saga.Event, buffer),
		logf:   logf,
	}
}

// Publish enqueues the event.
func (c *LocalChannel) Publish(ctx context.Context, ev saga.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.events <- ev:
		return nil
	}
}

// Consume delivers events to the handler until the context ends. Handler
// errors re-enqueue the event for redelivery.
func (c *LocalChannel) Consume(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			if err := handle(ctx, ev); err != nil {
				c.logf("saga %s: handler failed, redelivering: %v", ev.SagaID, err)
				select {
				case c.events <- ev:
				default:
					c.logf("saga %s: queue full, event dropped", ev.SagaID)
				}
			}
		}
	}
}
