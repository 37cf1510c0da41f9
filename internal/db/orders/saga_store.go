package ordersdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradewind/internal/orders/saga"

	"github.com/google/uuid"
)

// SagaStore persists submit-order saga instances in Postgres. Records are an
// audit trail and are never deleted.
type SagaStore struct {
	db *sql.DB
}

// NewSagaStore constructs a SagaStore backed by Postgres.
func NewSagaStore(db *sql.DB) *SagaStore {
	return &SagaStore{db: db}
}

// NewSagaStoreWithSchema initializes the schema then returns the store.
func NewSagaStoreWithSchema(ctx context.Context, db *sql.DB) (*SagaStore, error) {
	store := NewSagaStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the saga table if it does not exist.
func (s *SagaStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS saga_submit_order (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			step TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// Create inserts a new saga or returns the stored one for an existing id,
// so a redelivered initiation event cannot spawn a parallel saga instance.
func (s *SagaStore) Create(ctx context.Context, rec saga.Record) (saga.Record, bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO saga_submit_order (id, order_id, step)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.OrderID, string(rec.Step),
	)
	if err != nil {
		return saga.Record{}, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return saga.Record{}, false, err
	}

	stored, err := s.Get(ctx, rec.ID)
	if err != nil {
		if errors.Is(err, saga.ErrNotFound) {
			return saga.Record{}, false, fmt.Errorf("saga %s not found after insert", rec.ID)
		}
		return saga.Record{}, false, err
	}

	return stored, affected == 1, nil
}

// Save updates the saga's step and timestamp.
func (s *SagaStore) Save(ctx context.Context, id string, step saga.Step) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE saga_submit_order
		SET step = $2, updated_at = NOW()
		WHERE id = $1`,
		id, string(step),
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("save saga %s: %w", id, saga.ErrNotFound)
	}
	return nil
}

// Get returns the saga with the given id.
func (s *SagaStore) Get(ctx context.Context, id string) (saga.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, step, created_at, updated_at
		FROM saga_submit_order
		WHERE id = $1`,
		id,
	)

	var rec saga.Record
	var step string
	if err := row.Scan(&rec.ID, &rec.OrderID, &step, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return saga.Record{}, saga.ErrNotFound
		}
		return saga.Record{}, err
	}
	rec.Step = saga.Step(step)
	return rec, nil
}
