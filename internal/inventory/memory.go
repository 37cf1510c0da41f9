package inventory

import (
	"context"
	"sync"
)

// NewMemoryClient constructs an in-memory inventory client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		items:   make(map[string]Item),
		applied: make(map[string]*changeState),
	}
}

// MemoryClient tracks inventory items and applied changes in memory. Changes
// are deduplicated by change id, matching the real service's contract: a
// repeat of an applied delta is a no-op, while the inverse delta under the
// same id is recognized as a compensation and applied exactly once.
type MemoryClient struct {
	mu      sync.Mutex
	items   map[string]Item // keyed by item id
	applied map[string]*changeState
}

type changeState struct {
	change      QuantityChange
	compensated bool
}

// AddItem seeds an inventory item.
func (c *MemoryClient) AddItem(item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
}

func (c *MemoryClient) SearchByProductIDs(ctx context.Context, productIDs []string, page PageRequest) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var found []Item
	for _, productID := range productIDs {
		for _, item := range c.items {
			if item.ProductID == productID {
				found = append(found, item)
				break
			}
		}
	}
	if page.Size > 0 && len(found) > page.Size {
		found = found[:page.Size]
	}
	return found, nil
}

func (c *MemoryClient) ChangeQuantity(ctx context.Context, changes []QuantityChange) ([]QuantityChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Validate the whole batch before applying anything.
	for _, change := range changes {
		if _, ok := c.items[change.InventoryItemID]; !ok {
			return nil, ErrUnknownItem
		}
	}

	for _, change := range changes {
		state, seen := c.applied[change.ID]
		switch {
		case !seen:
			c.apply(change)
			c.applied[change.ID] = &changeState{change: change}
		case !state.compensated && change.QuantityChange == -state.change.QuantityChange:
			// Inverse delta under a known id: apply the compensation once.
			c.apply(change)
			state.compensated = true
		default:
			// Duplicate of the original or of the compensation.
		}
	}
	return changes, nil
}

func (c *MemoryClient) apply(change QuantityChange) {
	item := c.items[change.InventoryItemID]
	item.Quantity += change.QuantityChange
	c.items[change.InventoryItemID] = item
}

// Quantity returns the current stock of an inventory item (for inspection).
func (c *MemoryClient) Quantity(itemID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[itemID].Quantity
}

// Applied reports whether a change id has been applied (for inspection).
func (c *MemoryClient) Applied(changeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.applied[changeID]
	return ok
}
