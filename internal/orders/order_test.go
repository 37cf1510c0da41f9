package orders

import (
	"errors"
	"testing"
)

func TestNewOrder_FixesAmount(t *testing.T) {
	t.Parallel()

	order, err := NewOrder("", "customer-1", []Item{
		{ProductID: "P1", Quantity: 2, UnitPrice: 9.5},
		{ProductID: "P2", Quantity: 3, UnitPrice: 4.0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.State != StateOpen {
		t.Fatalf("expected OPEN, got %s", order.State)
	}
	if order.Amount != 2*9.5+3*4.0 {
		t.Fatalf("unexpected amount: %v", order.Amount)
	}
}

func TestNewOrder_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewOrder("", "", []Item{{ProductID: "P1", Quantity: 1, UnitPrice: 1}}); !errors.Is(err, ErrCustomerRequired) {
		t.Fatalf("expected ErrCustomerRequired, got %v", err)
	}
	if _, err := NewOrder("", "customer-1", nil); !errors.Is(err, ErrItemsRequired) {
		t.Fatalf("expected ErrItemsRequired, got %v", err)
	}
	if _, err := NewOrder("", "customer-1", []Item{{ProductID: "P1", Quantity: 0, UnitPrice: 1}}); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem, got %v", err)
	}
}

func TestOrder_GuardedTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		from  State
		apply func(*Order) bool
		want  State
		ok    bool
	}{
		{"submit from open", StateOpen, (*Order).Submit, StateSubmitted, true},
		{"submit from submitted", StateSubmitted, (*Order).Submit, StateSubmitted, false},
		{"submit from cancelled", StateCancelled, (*Order).Submit, StateCancelled, false},
		{"cancel from open", StateOpen, (*Order).Cancel, StateCancelled, true},
		{"cancel from submitted", StateSubmitted, (*Order).Cancel, StateSubmitted, false},
		{"start delivery from submitted", StateSubmitted, (*Order).StartDelivery, StateOnDelivery, true},
		{"start delivery from open", StateOpen, (*Order).StartDelivery, StateOpen, false},
		{"complete delivery from on delivery", StateOnDelivery, (*Order).CompleteDelivery, StateDelivered, true},
		{"complete delivery from delivered", StateDelivered, (*Order).CompleteDelivery, StateDelivered, false},
		{"close from delivered", StateDelivered, (*Order).Close, StateClosed, true},
		{"close from closed", StateClosed, (*Order).Close, StateClosed, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := Order{State: tc.from}
			got := tc.apply(&order)
			if got != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, got)
			}
			if order.State != tc.want {
				t.Fatalf("expected state %s, got %s", tc.want, order.State)
			}
		})
	}
}
