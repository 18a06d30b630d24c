package inventory

// EventEmitter is the interface the inventory package uses to emit events.
type EventEmitter interface {
	EmitLowStock(itemID int, name string, available int)
	EmitRestocked(itemID int, name string, quantity, available int)
}
