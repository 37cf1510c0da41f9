package orders

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradewind/internal/orders/saga"

	"github.com/google/uuid"
)

// ErrNotFound signals the order id has no stored record.
var ErrNotFound = errors.New("order not found")

// NewMemoryStore constructs an empty in-memory order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]Order),
		now:    time.Now,
	}
}

// MemoryStore keeps orders in memory, for tests and DB-less runs.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]Order
	now    func() time.Time
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Order, bool, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	return order, ok, nil
}

func (s *MemoryStore) Create(ctx context.Context, order Order) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := s.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	s.orders[order.ID] = order
	return order, nil
}

func (s *MemoryStore) Save(ctx context.Context, order Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; !ok {
		return ErrNotFound
	}
	order.UpdatedAt = s.now()
	s.orders[order.ID] = order
	return nil
}

// MemorySubmitTx pairs an in-memory order store with an in-memory saga store.
// Both writes happen under the same call; there is no crash window to protect
// against in memory.
type MemorySubmitTx struct {
	Orders *MemoryStore
	Sagas  *saga.MemoryStore
}

func (t *MemorySubmitTx) SaveOrderAndStep(ctx context.Context, order Order, sagaID string, step saga.Step) error {
	if err := t.Orders.Save(ctx, order); err != nil {
		return err
	}
	return t.Sagas.Save(ctx, sagaID, step)
}
