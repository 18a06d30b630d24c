package engine

import (
	"warehouse/docking"
	"warehouse/inventory"
	"warehouse/orders"
	"warehouse/sharedstate"
	"warehouse/workers"
)

var (
	_ inventory.EventEmitter = (*inventoryEmitter)(nil)
	_ orders.EventEmitter    = (*orderEmitter)(nil)
	_ docking.EventEmitter   = (*dockEmitter)(nil)
	_ workers.EventEmitter   = (*robotEmitter)(nil)
)

// inventoryEmitter bridges the ledger's stock notifications to the EventBus.
type inventoryEmitter struct {
	bus *EventBus
}

func (e *inventoryEmitter) EmitLowStock(itemID int, name string, available int) {
	e.bus.Emit(Event{Type: EventLowStock, Payload: StockEvent{ItemID: itemID, Name: name, Available: available}})
}

func (e *inventoryEmitter) EmitRestocked(itemID int, name string, quantity, available int) {
	e.bus.Emit(Event{Type: EventRestocked, Payload: StockEvent{
		ItemID:    itemID,
		Name:      name,
		Quantity:  quantity,
		Available: available,
	}})
}

type orderEmitter struct {
	bus *EventBus
}

func (e *orderEmitter) EmitOrderConfirmed(order orders.Order) {
	e.bus.Emit(Event{Type: EventOrderConfirmed, Payload: OrderConfirmedEvent{Order: order}})
}

func (e *orderEmitter) EmitOrderStatusChanged(number int64, oldStatus, newStatus orders.Status, detail string) {
	e.bus.Emit(Event{Type: EventOrderStatusChanged, Payload: OrderStatusChangedEvent{
		Number:    number,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Detail:    detail,
	}})
}

type dockEmitter struct {
	bus *EventBus
}

func (e *dockEmitter) EmitTruckDocked(dock int, kind sharedstate.Kind) {
	e.bus.Emit(Event{Type: EventTruckDocked, Payload: DockEvent{Dock: dock, Kind: kind}})
}

func (e *dockEmitter) EmitDockAssigned(dock int, orderNumber int64) {
	e.bus.Emit(Event{Type: EventDockAssigned, Payload: DockEvent{Dock: dock, Kind: sharedstate.KindDelivery, OrderNumber: orderNumber}})
}

func (e *dockEmitter) EmitDockDone(dock int) {
	e.bus.Emit(Event{Type: EventDockDone, Payload: DockEvent{Dock: dock}})
}

type robotEmitter struct {
	bus *EventBus
}

func (e *robotEmitter) EmitRobotAdded(id int) {
	e.bus.Emit(Event{Type: EventRobotAdded, Payload: RobotAddedEvent{RobotID: id}})
}
