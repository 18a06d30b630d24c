package engine

import (
	"warehouse/orders"
	"warehouse/sharedstate"
)

const (
	EventOrderConfirmed EventType = iota + 1
	EventOrderStatusChanged
	EventLowStock
	EventRestocked
	EventTruckDocked
	EventDockAssigned
	EventDockDone
	EventRobotAdded
	EventFleetConnected
	EventFleetDisconnected
	EventMessagingConnected
	EventMessagingDisconnected
)

var eventNames = map[EventType]string{
	EventOrderConfirmed:        "order_confirmed",
	EventOrderStatusChanged:    "order_status_changed",
	EventLowStock:              "low_stock",
	EventRestocked:             "restocked",
	EventTruckDocked:           "truck_docked",
	EventDockAssigned:          "dock_assigned",
	EventDockDone:              "dock_done",
	EventRobotAdded:            "robot_added",
	EventFleetConnected:        "fleet_connected",
	EventFleetDisconnected:     "fleet_disconnected",
	EventMessagingConnected:    "messaging_connected",
	EventMessagingDisconnected: "messaging_disconnected",
}

// String is the name used on the SSE stream.
func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

// --- Event payloads ---

type OrderConfirmedEvent struct {
	Order orders.Order `json:"order"`
}

type OrderStatusChangedEvent struct {
	Number    int64         `json:"number"`
	OldStatus orders.Status `json:"old_status"`
	NewStatus orders.Status `json:"new_status"`
	Detail    string        `json:"detail"`
}

type StockEvent struct {
	ItemID    int    `json:"item_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity,omitempty"`
	Available int    `json:"available"`
}

type DockEvent struct {
	Dock        int              `json:"dock"`
	Kind        sharedstate.Kind `json:"kind,omitempty"`
	OrderNumber int64            `json:"order_number,omitempty"`
}

type RobotAddedEvent struct {
	RobotID int `json:"robot_id"`
}

type ConnectionEvent struct {
	Detail string `json:"detail"`
}
