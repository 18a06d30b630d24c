package engine

import (
	"fmt"

	"warehouse/orders"
	"warehouse/protocol"
	"warehouse/store"
)

// wireEventHandlers journals every event to the store and queues its
// envelope on the outbox.
func (e *Engine) wireEventHandlers() {
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(OrderConfirmedEvent)
		e.handleOrderConfirmed(ev.Order)
	}, EventOrderConfirmed)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(OrderStatusChangedEvent)
		e.handleOrderStatusChanged(ev)
	}, EventOrderStatusChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(StockEvent)
		e.audit("item", int64(ev.ItemID), "low_stock", "", fmt.Sprintf("available=%d", ev.Available))
		e.enqueue(protocol.TypeLowStock, &protocol.StockEvent{ItemID: ev.ItemID, Name: ev.Name, Available: ev.Available})
	}, EventLowStock)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(StockEvent)
		e.audit("item", int64(ev.ItemID), "restocked", "", fmt.Sprintf("+%d available=%d", ev.Quantity, ev.Available))
		e.enqueue(protocol.TypeRestocked, &protocol.StockEvent{
			ItemID: ev.ItemID, Name: ev.Name, Quantity: ev.Quantity, Available: ev.Available,
		})
	}, EventRestocked)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DockEvent)
		e.recordDock(ev, "truck_docked", protocol.TypeTruckDocked)
	}, EventTruckDocked)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DockEvent)
		e.recordDock(ev, "assigned", protocol.TypeDockAssigned)
	}, EventDockAssigned)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DockEvent)
		e.recordDock(ev, "done", protocol.TypeDockDone)
	}, EventDockDone)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RobotAddedEvent)
		e.logFn("engine: robot %d joined the fleet", ev.RobotID)
		e.audit("robot", int64(ev.RobotID), "added", "", "")
		e.enqueue(protocol.TypeRobotAdded, &protocol.RobotEvent{RobotID: ev.RobotID})
	}, EventRobotAdded)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		e.logFn("engine: %s: %s", evt.Type, ev.Detail)
	}, EventFleetConnected, EventFleetDisconnected, EventMessagingConnected, EventMessagingDisconnected)
}

func (e *Engine) handleOrderConfirmed(o orders.Order) {
	rec := &store.Order{Number: o.Number, Status: string(o.Status), CreatedAt: o.CreatedAt}
	lines := make([]protocol.CartLine, len(o.Lines))
	for i, l := range o.Lines {
		rec.Lines = append(rec.Lines, store.OrderLine{ItemID: l.ItemID, Name: l.Name, Quantity: l.Quantity})
		lines[i] = protocol.CartLine{ItemID: l.ItemID, Name: l.Name, Quantity: l.Quantity}
	}
	if err := e.db.RecordOrder(rec); err != nil {
		e.logFn("engine: record order %d: %v", o.Number, err)
	}
	e.audit("order", o.Number, "confirmed", "", fmt.Sprintf("%d lines", len(o.Lines)))
	e.enqueue(protocol.TypeOrderConfirmed, &protocol.OrderConfirmedEvent{OrderNum: o.Number, Lines: lines})
}

func (e *Engine) handleOrderStatusChanged(ev OrderStatusChangedEvent) {
	if err := e.db.UpdateOrderStatus(ev.Number, string(ev.OldStatus), string(ev.NewStatus), ev.Detail); err != nil {
		e.logFn("engine: update order %d status: %v", ev.Number, err)
	}
	e.audit("order", ev.Number, "status", string(ev.OldStatus), string(ev.NewStatus))
	e.enqueue(protocol.TypeOrderStatus, &protocol.OrderStatusEvent{
		OrderNum:  ev.Number,
		OldStatus: string(ev.OldStatus),
		NewStatus: string(ev.NewStatus),
		Detail:    ev.Detail,
	})
}

func (e *Engine) recordDock(ev DockEvent, name, eventType string) {
	if err := e.db.RecordDockEvent(ev.Dock, name, string(ev.Kind), ev.OrderNumber); err != nil {
		e.logFn("engine: record dock %d %s: %v", ev.Dock, name, err)
	}
	e.enqueue(eventType, &protocol.DockEvent{Dock: ev.Dock, Kind: string(ev.Kind), OrderNum: ev.OrderNumber})
}

func (e *Engine) audit(entityType string, id int64, action, oldValue, newValue string) {
	if err := e.db.AppendAudit(store.AuditEntry{
		EntityType: entityType, EntityID: id, Action: action, OldValue: oldValue, NewValue: newValue,
	}); err != nil {
		e.logFn("engine: audit %s %d %s: %v", entityType, id, action, err)
	}
}

// enqueue wraps payload in an envelope and stores it for the outbox drainer.
func (e *Engine) enqueue(eventType string, payload any) {
	env, err := protocol.NewEnvelope(eventType, e.cfg.Messaging.StationID, payload)
	if err != nil {
		e.logFn("engine: build %s envelope: %v", eventType, err)
		return
	}
	data, err := env.Encode()
	if err != nil {
		e.logFn("engine: encode %s envelope: %v", eventType, err)
		return
	}
	if err := e.db.EnqueueOutbox(e.cfg.Messaging.EventsTopic, data, eventType, e.cfg.Messaging.StationID); err != nil {
		e.logFn("engine: enqueue %s: %v", eventType, err)
	}
}
