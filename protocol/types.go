package protocol

import "fmt"

// Tag is the one-byte message kind that leads every frame.
type Tag byte

const (
	TagAdd Tag = iota
	TagAddResponse
	TagRemove
	TagRemoveResponse
	TagSearch
	TagSearchResponse
	TagConfirmOrder
	TagConfirmOrderResponse
	TagCancelOrder
	TagCancelOrderResponse
	TagGoodbye
)

var tagNames = map[Tag]string{
	TagAdd:                  "add",
	TagAddResponse:          "add_response",
	TagRemove:               "remove",
	TagRemoveResponse:       "remove_response",
	TagSearch:               "search",
	TagSearchResponse:       "search_response",
	TagConfirmOrder:         "confirm",
	TagConfirmOrderResponse: "confirm_response",
	TagCancelOrder:          "cancel",
	TagCancelOrderResponse:  "cancel_response",
	TagGoodbye:              "goodbye",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return fmt.Sprintf("tag(%d)", byte(t))
}

// Status of a response.
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// Event types published on the events topic.
const (
	TypeOrderConfirmed = "order.confirmed"
	TypeOrderStatus    = "order.status"
	TypeLowStock       = "inventory.low_stock"
	TypeRestocked      = "inventory.restocked"
	TypeTruckDocked    = "dock.truck_docked"
	TypeDockAssigned   = "dock.assigned"
	TypeDockDone       = "dock.done"
	TypeRobotAdded     = "robot.added"
)

// Protocol version.
const Version = 1
