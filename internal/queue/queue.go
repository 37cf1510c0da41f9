// Package queue carries saga events on a single logical at-least-once queue.
// The orchestrator consumes and republishes on the same queue, so the saga
// drives itself forward one event at a time.
package queue

import (
	"context"

	"tradewind/internal/orders/saga"
)

// Advance computes the successor of one saga event. A nil successor means the
// saga reached a terminal step; an error asks the transport to redeliver.
type Advance func(ctx context.Context, ev saga.Event) (*saga.Event, error)

// Handler processes one delivered saga event.
type Handler func(ctx context.Context, ev saga.Event) error

// Pump bridges an advance function onto a channel: the successor of every
// handled event is published back to the same queue.
func Pump(ch saga.Channel, advance Advance) Handler {
	return func(ctx context.Context, ev saga.Event) error {
		next, err := advance(ctx, ev)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		return ch.Publish(ctx, *next)
	}
}
