package realtime

import (
	"encoding/json"
	"log"
	"time"

	"tradewind/internal/orders"
)

// OrderUpdate is the payload pushed to connected clients when an order's
// state changes.
type OrderUpdate struct {
	OrderID   string    `json:"order_id"`
	State     string    `json:"state"`
	Amount    float64   `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notifier adapts the hub to the order service's notification hook.
type Notifier struct {
	hub  *Hub
	logf func(format string, args ...any)
}

// NewNotifier constructs a Notifier. A nil logf falls back to log.Printf.
func NewNotifier(hub *Hub, logf func(string, ...any)) *Notifier {
	if logf == nil {
		logf = log.Printf
	}
	return &Notifier{hub: hub, logf: logf}
}

// OrderChanged pushes the order's new state to every connected client. The
// push is best effort: when the broadcast buffer is full the update is
// dropped rather than stalling the caller.
func (n *Notifier) OrderChanged(order orders.Order) {
	payload, err := json.Marshal(OrderUpdate{
		OrderID:   order.ID,
		State:     string(order.State),
		Amount:    order.Amount,
		UpdatedAt: order.UpdatedAt,
	})
	if err != nil {
		n.logf("realtime: marshal update for order %s: %v", order.ID, err)
		return
	}
	select {
	case n.hub.Broadcast <- payload:
	default:
		n.logf("realtime: broadcast buffer full, dropping update for order %s", order.ID)
	}
}
