package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradewind/internal/orders/saga"

	"github.com/google/uuid"
)

// ErrConflict signals a guarded transition was attempted from an invalid
// source state.
var ErrConflict = errors.New("invalid state transition")

// Notifier is told about order state changes so interested clients can be
// pushed the new state instead of polling.
type Notifier interface {
	OrderChanged(order Order)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) OrderChanged(Order) {}

// Service owns the order lifecycle outside the saga: creation, reads,
// operator transitions, and declaring the submit saga.
type Service struct {
	store     Store
	channel   saga.Channel
	notifier  Notifier
	newSagaID func() string
	now       func() time.Time
}

// NewService constructs a Service. A nil notifier is replaced with a no-op.
func NewService(store Store, channel saga.Channel, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		store:     store,
		channel:   channel,
		notifier:  notifier,
		newSagaID: uuid.NewString,
		now:       time.Now,
	}
}

// Create inserts a new OPEN order.
func (s *Service) Create(ctx context.Context, customerID string, items []Item) (Order, error) {
	order, err := NewOrder("", customerID, items)
	if err != nil {
		return Order{}, err
	}
	return s.store.Create(ctx, order)
}

// Get returns the order with the given id.
func (s *Service) Get(ctx context.Context, id string) (Order, bool, error) {
	return s.store.Get(ctx, id)
}

// Submit declares the submit-order saga for an OPEN order. The order is not
// transitioned here; the caller only observes "saga declared". The eventual
// outcome is visible through the order's state.
func (s *Service) Submit(ctx context.Context, orderID string) (string, error) {
	order, found, err := s.store.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNotFound
	}
	if order.State != StateOpen {
		return "", ErrConflict
	}

	ev := saga.Event{
		SagaID:    s.newSagaID(),
		OrderID:   order.ID,
		Step:      saga.StepDeclared,
		CreatedAt: s.now(),
	}
	if err := s.channel.Publish(ctx, ev); err != nil {
		return "", fmt.Errorf("publish saga event: %w", err)
	}
	return ev.SagaID, nil
}

// Cancel moves an OPEN order to CANCELLED.
func (s *Service) Cancel(ctx context.Context, orderID string) (Order, error) {
	return s.transition(ctx, orderID, (*Order).Cancel)
}

// StartDelivery moves a SUBMITTED order to ON_DELIVERY.
func (s *Service) StartDelivery(ctx context.Context, orderID string) (Order, error) {
	return s.transition(ctx, orderID, (*Order).StartDelivery)
}

// CompleteDelivery moves an ON_DELIVERY order to DELIVERED.
func (s *Service) CompleteDelivery(ctx context.Context, orderID string) (Order, error) {
	return s.transition(ctx, orderID, (*Order).CompleteDelivery)
}

// Close moves a DELIVERED order to CLOSED.
func (s *Service) Close(ctx context.Context, orderID string) (Order, error) {
	return s.transition(ctx, orderID, (*Order).Close)
}

func (s *Service) transition(ctx context.Context, orderID string, apply func(*Order) bool) (Order, error) {
	order, found, err := s.store.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !found {
		return Order{}, ErrNotFound
	}
	if !apply(&order) {
		return Order{}, ErrConflict
	}
	if err := s.store.Save(ctx, order); err != nil {
		return Order{}, err
	}
	s.notifier.OrderChanged(order)
	return order, nil
}
