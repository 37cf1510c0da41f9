package saga

import "github.com/google/uuid"

// Namespace under which quantity-change ids are derived. Changing it would
// break deduplication of in-flight compensations, so it is fixed.
var changeIDNamespace = uuid.MustParse("9d2c67a4-31f0-4bb8-8a5e-6f1d20c4a7b3")

// ChangeID derives the idempotency key for the quantity change applied to one
// inventory item on behalf of one order. The same (order, item) pair always
// yields the same id, which lets the inventory service deduplicate repeated
// decrements and compensations under at-least-once delivery.
func ChangeID(orderID, inventoryItemID string) string {
	return uuid.NewSHA1(changeIDNamespace, []byte(orderID+"/"+inventoryItemID)).String()
}
