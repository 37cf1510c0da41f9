package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tradewind/internal/inventory"
	"tradewind/internal/observability"
	"tradewind/internal/orders/saga"
)

// SubmitTx atomically persists an order's new state together with the saga's
// new step. Used only by the submitStatus step, so an order cannot advance to
// SUBMITTED while the saga record is left stale, or vice versa.
type SubmitTx interface {
	SaveOrderAndStep(ctx context.Context, order Order, sagaID string, step saga.Step) error
}

// SagaHandler is the submit-order saga orchestrator. Handle processes exactly
// one saga event: it executes the step's side effect, persists the new step,
// and returns the successor event for the transport to republish, or nil when
// the saga reached a terminal step.
//
// Business outcomes (missing order, failed transition, inventory failure)
// never escape as errors; they choose the next step. Only storage and
// transaction failures are returned, signaling the transport to redeliver.
type SagaHandler struct {
	sagas     saga.Store
	orders    Store
	submitTx  SubmitTx
	inventory inventory.Client
	notifier  Notifier
	metrics   *observability.Metrics
	logf      func(format string, args ...any)
	now       func() time.Time
}

// NewSagaHandler constructs the orchestrator. A nil notifier is replaced with
// a no-op; a nil logf falls back to log.Printf.
func NewSagaHandler(sagas saga.Store, orders Store, submitTx SubmitTx, inv inventory.Client, notifier Notifier, logf func(string, ...any)) *SagaHandler {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logf == nil {
		logf = log.Printf
	}
	return &SagaHandler{
		sagas:     sagas,
		orders:    orders,
		submitTx:  submitTx,
		inventory: inv,
		notifier:  notifier,
		logf:      logf,
		now:       time.Now,
	}
}

// SetMetrics attaches orchestrator counters. Metrics calls are nil-safe, so
// handlers built without one stay silent.
func (h *SagaHandler) SetMetrics(m *observability.Metrics) {
	h.metrics = m
}

// Handle advances the saga by one step.
func (h *SagaHandler) Handle(ctx context.Context, ev saga.Event) (*saga.Event, error) {
	switch ev.Step {
	case saga.StepDeclared:
		return h.createSaga(ctx, ev)
	case saga.StepCreated:
		return h.decreaseInventory(ctx, ev)
	case saga.StepDecreasedInventory:
		return h.submitStatus(ctx, ev)
	case saga.StepSubmittedStatusRollback:
		return h.rollbackDecreaseInventory(ctx, ev)
	case saga.StepDecreasedInventoryRollback:
		return nil, h.finish(ctx, ev, saga.StepRollback)
	case saga.StepSubmittedStatus:
		return nil, h.finish(ctx, ev, saga.StepCompleted)
	default:
		// Terminal or unrecognized tokens are acknowledged without action.
		h.logf("saga %s: ignoring event with step %q", ev.SagaID, ev.Step)
		h.metrics.AddDroppedEvent()
		return nil, nil
	}
}

// createSaga persists the saga record idempotently and hands off to the
// CREATED step. A redelivered declaration resumes from the stored step
// instead of restarting the protocol.
func (h *SagaHandler) createSaga(ctx context.Context, ev saga.Event) (*saga.Event, error) {
	rec, created, err := h.sagas.Create(ctx, saga.Record{
		ID:      ev.SagaID,
		OrderID: ev.OrderID,
		Step:    saga.StepCreated,
	})
	if err != nil {
		return nil, fmt.Errorf("create saga: %w", err)
	}
	if created {
		h.metrics.MarkSagaStep(string(rec.Step))
	} else {
		h.logf("saga %s: already declared, resuming at step %q", rec.ID, rec.Step)
		if rec.Step.Terminal() {
			return nil, nil
		}
	}
	return h.next(rec.ID, rec.OrderID, rec.Step), nil
}

// decreaseInventory resolves the order's line items and submits one batched
// negative quantity change per item. Failure of the inventory call, or any
// product without a matching inventory item, routes to the compensation
// branch without partially applying changes.
func (h *SagaHandler) decreaseInventory(ctx context.Context, ev saga.Event) (*saga.Event, error) {
	if skip, err := h.alreadyDone(ctx, ev); skip || err != nil {
		return nil, err
	}

	order, found, err := h.orders.Get(ctx, ev.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", ev.OrderID, err)
	}
	if !found {
		return nil, h.markStep(ctx, ev.SagaID, saga.StepRollback)
	}

	changes, err := h.buildChanges(ctx, order, -1)
	if err == nil {
		_, err = h.inventory.ChangeQuantity(ctx, changes)
	}
	if err != nil {
		h.logf("saga %s: decrease inventory failed: %v", ev.SagaID, err)
		return h.advance(ctx, ev, saga.StepDecreasedInventoryRollback)
	}
	return h.advance(ctx, ev, saga.StepDecreasedInventory)
}

// submitStatus applies the guarded Submit transition and persists the order
// state and saga step as one atomic unit.
func (h *SagaHandler) submitStatus(ctx context.Context, ev saga.Event) (*saga.Event, error) {
	if skip, err := h.alreadyDone(ctx, ev); skip || err != nil {
		return nil, err
	}

	order, found, err := h.orders.Get(ctx, ev.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", ev.OrderID, err)
	}
	if !found || !order.Submit() {
		return h.advance(ctx, ev, saga.StepSubmittedStatusRollback)
	}

	if err := h.submitTx.SaveOrderAndStep(ctx, order, ev.SagaID, saga.StepSubmittedStatus); err != nil {
		return nil, fmt.Errorf("save order and saga: %w", err)
	}
	h.metrics.MarkSagaStep(string(saga.StepSubmittedStatus))
	h.notifier.OrderChanged(order)
	return h.next(ev.SagaID, ev.OrderID, saga.StepSubmittedStatus), nil
}

// rollbackDecreaseInventory mirrors decreaseInventory with the sign inverted,
// reusing the same change ids so the inventory service can deduplicate the
// compensation. If the inventory call fails the saga stays unchanged and the
// same event is returned, retrying through the channel itself.
func (h *SagaHandler) rollbackDecreaseInventory(ctx context.Context, ev saga.Event) (*saga.Event, error) {
	if skip, err := h.alreadyDone(ctx, ev); skip || err != nil {
		return nil, err
	}

	order, found, err := h.orders.Get(ctx, ev.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", ev.OrderID, err)
	}
	if !found {
		return nil, h.markStep(ctx, ev.SagaID, saga.StepRollback)
	}

	changes, err := h.buildChanges(ctx, order, 1)
	if err == nil {
		_, err = h.inventory.ChangeQuantity(ctx, changes)
	}
	if err != nil {
		h.logf("saga %s: rollback inventory failed, will retry: %v", ev.SagaID, err)
		h.metrics.AddRollbackRetry()
		retry := ev
		retry.CreatedAt = h.now()
		return &retry, nil
	}
	return h.advance(ctx, ev, saga.StepDecreasedInventoryRollback)
}

// buildChanges fetches the inventory items for the order's products in one
// batched lookup and builds one signed quantity change per line item. A
// product with no matching inventory item fails the whole batch.
func (h *SagaHandler) buildChanges(ctx context.Context, order Order, sign int) ([]inventory.QuantityChange, error) {
	productIDs := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	items, err := h.inventory.SearchByProductIDs(ctx, productIDs, inventory.PageRequest{Page: 0, Size: len(productIDs)})
	if err != nil {
		return nil, err
	}

	byProduct := make(map[string]inventory.Item, len(items))
	for _, item := range items {
		byProduct[item.ProductID] = item
	}

	changes := make([]inventory.QuantityChange, 0, len(order.Items))
	for _, line := range order.Items {
		invItem, ok := byProduct[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: no inventory item for product %s", inventory.ErrUnknownItem, line.ProductID)
		}
		changes = append(changes, inventory.QuantityChange{
			ID:              saga.ChangeID(order.ID, invItem.ID),
			InventoryItemID: invItem.ID,
			QuantityChange:  sign * line.Quantity,
		})
	}
	return changes, nil
}

// alreadyDone consults the stored record before executing a step: events for
// unknown sagas are dropped, and a saga already at a terminal step never
// transitions again, whatever the transport redelivers.
func (h *SagaHandler) alreadyDone(ctx context.Context, ev saga.Event) (bool, error) {
	rec, err := h.sagas.Get(ctx, ev.SagaID)
	if errors.Is(err, saga.ErrNotFound) {
		h.logf("saga %s: event for unknown saga, dropping", ev.SagaID)
		h.metrics.AddDroppedEvent()
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load saga %s: %w", ev.SagaID, err)
	}
	if rec.Step.Terminal() {
		h.logf("saga %s: already terminal at %q, dropping event", ev.SagaID, rec.Step)
		h.metrics.AddDroppedEvent()
		return true, nil
	}
	return false, nil
}

// advance persists the new step and returns the successor event.
func (h *SagaHandler) advance(ctx context.Context, ev saga.Event, step saga.Step) (*saga.Event, error) {
	if err := h.markStep(ctx, ev.SagaID, step); err != nil {
		return nil, err
	}
	return h.next(ev.SagaID, ev.OrderID, step), nil
}

// finish writes a terminal step, unless the saga is already terminal.
func (h *SagaHandler) finish(ctx context.Context, ev saga.Event, step saga.Step) error {
	skip, err := h.alreadyDone(ctx, ev)
	if skip || err != nil {
		return err
	}
	return h.markStep(ctx, ev.SagaID, step)
}

// markStep persists a step; terminal steps produce no successor event.
func (h *SagaHandler) markStep(ctx context.Context, sagaID string, step saga.Step) error {
	if err := h.sagas.Save(ctx, sagaID, step); err != nil {
		return fmt.Errorf("save saga %s step %s: %w", sagaID, step, err)
	}
	h.metrics.MarkSagaStep(string(step))
	return nil
}

func (h *SagaHandler) next(sagaID, orderID string, step saga.Step) *saga.Event {
	if step.Terminal() {
		return nil
	}
	return &saga.Event{
		SagaID:    sagaID,
		OrderID:   orderID,
		Step:      step,
		CreatedAt: h.now(),
	}
}
