package ordersdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradewind/internal/orders"

	"github.com/google/uuid"
)

// OrderStore persists orders and their line items in Postgres.
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore constructs an OrderStore backed by Postgres.
func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// NewOrderStoreWithSchema initializes the schema then returns the store.
func NewOrderStoreWithSchema(ctx context.Context, db *sql.DB) (*OrderStore, error) {
	store := NewOrderStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates order tables if they do not exist.
func (s *OrderStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS t_order (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_state ON t_order (state)`,
		`CREATE INDEX IF NOT EXISTS idx_order_customer_id ON t_order (customer_id)`,
		`CREATE TABLE IF NOT EXISTS order_item (
			order_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price DOUBLE PRECISION NOT NULL,
			FOREIGN KEY (order_id) REFERENCES t_order(id) ON DELETE CASCADE
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the order with the given id, including its line items.
func (s *OrderStore) Get(ctx context.Context, id string) (orders.Order, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, amount, state, created_at, updated_at
		FROM t_order
		WHERE id = $1`,
		id,
	)

	var order orders.Order
	var state string
	if err := row.Scan(&order.ID, &order.CustomerID, &order.Amount, &state, &order.CreatedAt, &order.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return orders.Order{}, false, nil
		}
		return orders.Order{}, false, err
	}
	order.State = orders.State(state)

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price
		FROM order_item
		WHERE order_id = $1`,
		id,
	)
	if err != nil {
		return orders.Order{}, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var item orders.Item
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return orders.Order{}, false, err
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return orders.Order{}, false, err
	}

	return order, true, nil
}

// Create inserts the order and its items in one transaction.
func (s *OrderStore) Create(ctx context.Context, order orders.Order) (orders.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return orders.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO t_order (id, customer_id, amount, state)
		VALUES ($1, $2, $3, $4)`,
		order.ID, order.CustomerID, order.Amount, string(order.State),
	); err != nil {
		return orders.Order{}, err
	}

	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_item (order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)`,
			order.ID, item.ProductID, item.Quantity, item.UnitPrice,
		); err != nil {
			return orders.Order{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return orders.Order{}, err
	}
	return order, nil
}

// Save writes the order's state back. Items are fixed at creation and are
// not rewritten.
func (s *OrderStore) Save(ctx context.Context, order orders.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE t_order
		SET state = $2, updated_at = NOW()
		WHERE id = $1`,
		order.ID, string(order.State),
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("save order %s: %w", order.ID, orders.ErrNotFound)
	}
	return nil
}
