package ordersdb

import (
	"context"
	"database/sql"
	"fmt"

	"tradewind/internal/orders"
	"tradewind/internal/orders/saga"
)

// SubmitTx writes an order's state and a saga's step inside one SQL
// transaction. It backs the saga's submitStatus step, the only point where
// both rows must move together.
type SubmitTx struct {
	db *sql.DB
}

// NewSubmitTx constructs a SubmitTx over the given database.
func NewSubmitTx(db *sql.DB) *SubmitTx {
	return &SubmitTx{db: db}
}

// SaveOrderAndStep updates both rows or neither.
func (t *SubmitTx) SaveOrderAndStep(ctx context.Context, order orders.Order, sagaID string, step saga.Step) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE t_order
		SET state = $2, updated_at = NOW()
		WHERE id = $1`,
		order.ID, string(order.State),
	)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return fmt.Errorf("save order %s: %w", order.ID, orders.ErrNotFound)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE saga_submit_order
		SET step = $2, updated_at = NOW()
		WHERE id = $1`,
		sagaID, string(step),
	)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return fmt.Errorf("save saga %s: %w", sagaID, saga.ErrNotFound)
	}

	return tx.Commit()
}
