package saga

import (
	"context"
	"errors"
	"time"
)

// Step identifies where a submit-order saga currently is in its protocol.
type Step string

const (
	StepDeclared                   Step = "DECLARED"
	StepCreated                    Step = "CREATED"
	StepDecreasedInventory         Step = "DECREASED_INVENTORY"
	StepDecreasedInventoryRollback Step = "DECREASED_INVENTORY_ROLLBACK"
	StepSubmittedStatus            Step = "SUBMITTED_STATUS"
	StepSubmittedStatusRollback    Step = "SUBMITTED_STATUS_ROLLBACK"
	StepCompleted                  Step = "COMPLETED"
	StepRollback                   Step = "ROLLBACK"
)

// Terminal reports whether no further transition may occur from this step.
func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepRollback
}

// Known reports whether the step belongs to the submit-order protocol.
func (s Step) Known() bool {
	switch s {
	case StepDeclared, StepCreated, StepDecreasedInventory, StepDecreasedInventoryRollback,
		StepSubmittedStatus, StepSubmittedStatusRollback, StepCompleted, StepRollback:
		return true
	}
	return false
}

// Event is the wire message that drives a saga forward. The orchestrator
// consumes and republishes events on the same logical queue until a terminal
// step is reached.
type Event struct {
	SagaID    string    `json:"saga_id"`
	OrderID   string    `json:"order_id"`
	Step      Step      `json:"step"`
	CreatedAt time.Time `json:"created_at"`
}

// Record is a stored saga instance. Records act as an audit trail and are
// never deleted.
type Record struct {
	ID        string
	OrderID   string
	Step      Step
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists saga instances keyed by saga id.
type Store interface {
	// Create inserts a new saga. A caller-supplied id that already exists
	// short-circuits: the stored record is returned with created=false.
	// An empty id gets a generated one.
	Create(ctx context.Context, rec Record) (Record, bool, error)
	// Save updates the step and timestamp of an existing saga.
	Save(ctx context.Context, id string, step Step) error
	// Get returns the saga with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
}

// Channel carries saga events on one logical at-least-once queue.
type Channel interface {
	Publish(ctx context.Context, ev Event) error
}

// ErrNotFound signals the saga id has no stored record.
var ErrNotFound = errors.New("saga not found")
