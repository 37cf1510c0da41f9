package realtime

import (
	"encoding/json"
	"testing"

	"tradewind/internal/orders"
)

func TestNotifier_PushesOrderUpdate(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	notifier := NewNotifier(hub, func(string, ...any) {})

	notifier.OrderChanged(orders.Order{ID: "order-1", State: orders.StateSubmitted, Amount: 16})

	select {
	case payload := <-hub.Broadcast:
		var update OrderUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			t.Fatalf("unmarshal update: %v", err)
		}
		if update.OrderID != "order-1" || update.State != "SUBMITTED" {
			t.Fatalf("unexpected update: %+v", update)
		}
	default:
		t.Fatalf("expected a buffered update")
	}
}

func TestNotifier_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	dropped := 0
	notifier := NewNotifier(hub, func(string, ...any) { dropped++ })

	for i := 0; i < cap(hub.Broadcast)+3; i++ {
		notifier.OrderChanged(orders.Order{ID: "order-1", State: orders.StateOpen})
	}
	if dropped != 3 {
		t.Fatalf("expected 3 dropped updates, got %d", dropped)
	}
}
