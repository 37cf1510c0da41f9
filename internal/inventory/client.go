package inventory

import (
	"context"
	"errors"
)

// Item is the inventory service's view of a product.
type Item struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// QuantityChange is a signed delta request against one inventory item. The id
// is an idempotency key: the inventory service must treat duplicates as
// already applied.
type QuantityChange struct {
	ID              string `json:"id"`
	InventoryItemID string `json:"inventory_item_id"`
	QuantityChange  int    `json:"quantity_change"`
}

// PageRequest bounds a batched lookup.
type PageRequest struct {
	Page int
	Size int
}

// Client is the outbound contract to the inventory service.
type Client interface {
	// SearchByProductIDs returns the inventory items for the given product
	// ids in one page-sized call.
	SearchByProductIDs(ctx context.Context, productIDs []string, page PageRequest) ([]Item, error)
	// ChangeQuantity applies all deltas together or none of them.
	ChangeQuantity(ctx context.Context, changes []QuantityChange) ([]QuantityChange, error)
}

// ErrUnavailable signals a transient inventory service failure.
var ErrUnavailable = errors.New("inventory service unavailable")

// ErrUnknownItem signals a delta referenced an inventory item that does not exist.
var ErrUnknownItem = errors.New("unknown inventory item")
