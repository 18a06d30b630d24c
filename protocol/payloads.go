package protocol

import "encoding/json"

// NoItem is the ItemID of an Add or Search that names no id. A payload that
// omits item_ID decodes to it rather than to item 0.
const NoItem = -1

// Message is one client/controller frame. The set of implementations is
// closed; Tag selects the frame's leading byte.
type Message interface {
	Tag() Tag
	isMessage()
}

// Item is one inventory row as seen by a client.
type Item struct {
	ID        int     `json:"item_ID"`
	Name      string  `json:"item_name"`
	Available int     `json:"item_quantity"`
	OnHold    int     `json:"item_on_hold"`
	Price     string  `json:"item_price"`
	Weight    float64 `json:"item_weight"`
}

// CartLine is one (item, quantity) pair of a client's order.
type CartLine struct {
	ItemID   int    `json:"item_ID"`
	Name     string `json:"item_name,omitempty"`
	Quantity int    `json:"item_quantity"`
}

// Add asks the controller to hold Quantity units of the single item matching
// ItemName or ItemID.
type Add struct {
	ItemName string `json:"item_name_regex"`
	ItemID   int    `json:"item_ID"`
	Quantity int    `json:"item_quantity"`
}

func (m *Add) UnmarshalJSON(data []byte) error {
	type plain Add
	p := plain{ItemID: NoItem}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Add(p)
	return nil
}

type AddResponse struct {
	Results []Item `json:"results"`
	Status  Status `json:"status"`
	Info    string `json:"info"`
}

// Remove returns held units of a cart line to stock.
type Remove struct {
	ItemID   int `json:"item_ID"`
	Quantity int `json:"item_quantity"`
}

type RemoveResponse struct {
	Status Status `json:"status"`
	Info   string `json:"info"`
}

// Search looks items up by name regex or id. ItemID < 0 means no id.
type Search struct {
	ItemName string `json:"item_name_regex"`
	ItemID   int    `json:"item_ID"`
}

func (m *Search) UnmarshalJSON(data []byte) error {
	type plain Search
	p := plain{ItemID: NoItem}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Search(p)
	return nil
}

type SearchResponse struct {
	Results []Item `json:"results"`
	Status  Status `json:"status"`
	Info    string `json:"info"`
}

// ConfirmOrder turns held cart lines into an order. An empty Cart confirms the
// whole session cart.
type ConfirmOrder struct {
	Cart []CartLine `json:"cart"`
}

type ConfirmOrderResponse struct {
	OrderNum int64  `json:"order_num"`
	Status   Status `json:"status"`
	Info     string `json:"info"`
}

type CancelOrder struct {
	OrderNum int64 `json:"order_num"`
}

type CancelOrderResponse struct {
	Status Status `json:"status"`
	Info   string `json:"info"`
}

// Goodbye ends a session. Unconfirmed holds are returned to stock.
type Goodbye struct{}

func (*Add) Tag() Tag                  { return TagAdd }
func (*AddResponse) Tag() Tag          { return TagAddResponse }
func (*Remove) Tag() Tag               { return TagRemove }
func (*RemoveResponse) Tag() Tag       { return TagRemoveResponse }
func (*Search) Tag() Tag               { return TagSearch }
func (*SearchResponse) Tag() Tag       { return TagSearchResponse }
func (*ConfirmOrder) Tag() Tag         { return TagConfirmOrder }
func (*ConfirmOrderResponse) Tag() Tag { return TagConfirmOrderResponse }
func (*CancelOrder) Tag() Tag          { return TagCancelOrder }
func (*CancelOrderResponse) Tag() Tag  { return TagCancelOrderResponse }
func (*Goodbye) Tag() Tag              { return TagGoodbye }

func (*Add) isMessage()                  {}
func (*AddResponse) isMessage()          {}
func (*Remove) isMessage()               {}
func (*RemoveResponse) isMessage()       {}
func (*Search) isMessage()               {}
func (*SearchResponse) isMessage()       {}
func (*ConfirmOrder) isMessage()         {}
func (*ConfirmOrderResponse) isMessage() {}
func (*CancelOrder) isMessage()          {}
func (*CancelOrderResponse) isMessage()  {}
func (*Goodbye) isMessage()              {}

// newMessage returns an empty message for tag, or nil for an unknown tag.
func newMessage(t Tag) Message {
	switch t {
	case TagAdd:
		return &Add{ItemID: NoItem}
	case TagAddResponse:
		return &AddResponse{}
	case TagRemove:
		return &Remove{}
	case TagRemoveResponse:
		return &RemoveResponse{}
	case TagSearch:
		return &Search{ItemID: NoItem}
	case TagSearchResponse:
		return &SearchResponse{}
	case TagConfirmOrder:
		return &ConfirmOrder{}
	case TagConfirmOrderResponse:
		return &ConfirmOrderResponse{}
	case TagCancelOrder:
		return &CancelOrder{}
	case TagCancelOrderResponse:
		return &CancelOrderResponse{}
	case TagGoodbye:
		return &Goodbye{}
	}
	return nil
}

// --- Event payloads (events topic) ---

type OrderConfirmedEvent struct {
	OrderNum int64      `json:"order_num"`
	Lines    []CartLine `json:"lines"`
}

type OrderStatusEvent struct {
	OrderNum  int64  `json:"order_num"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Detail    string `json:"detail,omitempty"`
}

type StockEvent struct {
	ItemID    int    `json:"item_ID"`
	Name      string `json:"item_name"`
	Quantity  int    `json:"quantity,omitempty"`
	Available int    `json:"available"`
}

type DockEvent struct {
	Dock     int    `json:"dock"`
	Kind     string `json:"kind,omitempty"`
	OrderNum int64  `json:"order_num,omitempty"`
}

type RobotEvent struct {
	RobotID int `json:"robot_id"`
}
