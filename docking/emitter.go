package docking

import "warehouse/sharedstate"

// EventEmitter is the interface the docking package uses to emit events.
type EventEmitter interface {
	EmitTruckDocked(dock int, kind sharedstate.Kind)
	EmitDockAssigned(dock int, orderNumber int64)
	EmitDockDone(dock int)
}
