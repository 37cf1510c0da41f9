package orders

import (
	"context"
	"errors"
	"time"
)

// State is the lifecycle state of an order. States form a strict DAG;
// CANCELLED and CLOSED are terminal.
type State string

const (
	StateOpen       State = "OPEN"
	StateSubmitted  State = "SUBMITTED"
	StateCancelled  State = "CANCELLED"
	StateOnDelivery State = "ON_DELIVERY"
	StateDelivered  State = "DELIVERED"
	StateClosed     State = "CLOSED"
)

// Item is one ordered line item. The unit price is captured at order time.
type Item struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Order is a customer purchase. Amount is fixed at creation and equals the
// sum of quantity times unit price over the items; it is never recomputed.
type Order struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Items      []Item    `json:"items"`
	Amount     float64   `json:"amount"`
	State      State     `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewOrder constructs an OPEN order and fixes its amount from the items.
func NewOrder(id, customerID string, items []Item) (Order, error) {
	if customerID == "" {
		return Order{}, ErrCustomerRequired
	}
	if len(items) == 0 {
		return Order{}, ErrItemsRequired
	}

	amount := 0.0
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			return Order{}, ErrInvalidItem
		}
		amount += float64(item.Quantity) * item.UnitPrice
	}

	return Order{
		ID:         id,
		CustomerID: customerID,
		Items:      items,
		Amount:     amount,
		State:      StateOpen,
	}, nil
}

// Submit moves the order from OPEN to SUBMITTED. Any other source state is a
// no-op reporting false, so the caller can route to conflict handling or
// saga compensation.
func (o *Order) Submit() bool {
	if o.State == StateOpen {
		o.State = StateSubmitted
		return true
	}
	return false
}

// Cancel moves the order from OPEN to CANCELLED.
func (o *Order) Cancel() bool {
	if o.State == StateOpen {
		o.State = StateCancelled
		return true
	}
	return false
}

// StartDelivery moves the order from SUBMITTED to ON_DELIVERY.
func (o *Order) StartDelivery() bool {
	if o.State == StateSubmitted {
		o.State = StateOnDelivery
		return true
	}
	return false
}

// CompleteDelivery moves the order from ON_DELIVERY to DELIVERED.
func (o *Order) CompleteDelivery() bool {
	if o.State == StateOnDelivery {
		o.State = StateDelivered
		return true
	}
	return false
}

// Close moves the order from DELIVERED to CLOSED.
func (o *Order) Close() bool {
	if o.State == StateDelivered {
		o.State = StateClosed
		return true
	}
	return false
}

// Store persists orders.
type Store interface {
	// Get returns the order with the given id; found is false when absent.
	Get(ctx context.Context, id string) (Order, bool, error)
	// Create inserts a new order, generating an id when empty.
	Create(ctx context.Context, order Order) (Order, error)
	// Save writes the order's current state back.
	Save(ctx context.Context, order Order) error
}

var (
	ErrCustomerRequired = errors.New("customer id is required")
	ErrItemsRequired    = errors.New("at least one item is required")
	ErrInvalidItem      = errors.New("item product id, quantity and unit price must be valid")
)
