package orders

// EventEmitter is the interface the orders package uses to emit events.
type EventEmitter interface {
	EmitOrderConfirmed(order Order)
	EmitOrderStatusChanged(number int64, oldStatus, newStatus Status, detail string)
}
