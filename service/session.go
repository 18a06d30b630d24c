package service

import (
	"errors"
	"fmt"
	"sort"

	"warehouse/inventory"
	"warehouse/orders"
	"warehouse/pipeline"
	"warehouse/protocol"
)

const (
	infoHeld        = "Item placed on hold successfully!"
	infoNotAdded    = "Unable to add product"
	infoRemoved     = "Item removed from cart"
	infoNoResults   = "No items found"
	infoConfirmed   = "Order confirmed"
	infoEmptyCart   = "Cart is empty"
	infoCancelled   = "Cancelled"
	infoEnroute     = "Enroute to Delivery"
	infoAlreadyGone = "Already Cancelled"
	infoNoSuchOrder = "Order not found"
	infoMalformed   = "Malformed request"
)

// Core is the controller state every session works against.
type Core struct {
	Ledger   *inventory.Ledger
	Orders   *orders.Book
	Pipeline *pipeline.Pipeline
	LogFunc  LogFunc
}

// Session serves one client connection. Items it holds stay in its cart until
// they are confirmed into an order or handed back.
type Session struct {
	id   int
	core *Core
	cart map[int]int
	done bool
}

// NewSession starts an empty session.
func (c *Core) NewSession(id int) *Session {
	return &Session{id: id, core: c, cart: make(map[int]int)}
}

var _ protocol.Handler = (*Session)(nil)

func (s *Session) logf(format string, args ...any) {
	s.core.LogFunc("service: client %d: "+format, append([]any{s.id}, args...)...)
}

// Cart returns the held quantity per item id.
func (s *Session) Cart() map[int]int {
	out := make(map[int]int, len(s.cart))
	for id, q := range s.cart {
		out[id] = q
	}
	return out
}

// Done reports whether the client said goodbye.
func (s *Session) Done() bool { return s.done }

func (s *Session) HandleAdd(m *protocol.Add) *protocol.AddResponse {
	results := s.core.Ledger.Find(m.ItemName, m.ItemID)
	if len(results) != 1 {
		return &protocol.AddResponse{Results: toItems(results), Status: protocol.StatusError, Info: infoNotAdded}
	}
	e, err := s.core.Ledger.Hold(results[0].ID, m.Quantity)
	if err != nil {
		s.logf("hold %d x %d: %v", m.Quantity, results[0].ID, err)
		return &protocol.AddResponse{Results: toItems(results), Status: protocol.StatusError, Info: infoNotAdded}
	}
	s.cart[e.ID] += m.Quantity
	s.logf("%d x %s placed on hold", m.Quantity, e.Name)
	return &protocol.AddResponse{Results: toItems([]inventory.ItemEntry{e}), Status: protocol.StatusOK, Info: infoHeld}
}

func (s *Session) HandleRemove(m *protocol.Remove) *protocol.RemoveResponse {
	if m.Quantity <= 0 || s.cart[m.ItemID] < m.Quantity {
		return &protocol.RemoveResponse{Status: protocol.StatusError,
			Info: fmt.Sprintf("Only %d of item %d in cart", s.cart[m.ItemID], m.ItemID)}
	}
	if _, err := s.core.Ledger.Unhold(m.ItemID, m.Quantity); err != nil {
		s.logf("unhold %d x %d: %v", m.Quantity, m.ItemID, err)
		return &protocol.RemoveResponse{Status: protocol.StatusError, Info: err.Error()}
	}
	s.take(m.ItemID, m.Quantity)
	return &protocol.RemoveResponse{Status: protocol.StatusOK, Info: infoRemoved}
}

func (s *Session) HandleSearch(m *protocol.Search) *protocol.SearchResponse {
	s.logf("searching for %q (id %d)", m.ItemName, m.ItemID)
	results := s.core.Ledger.Find(m.ItemName, m.ItemID)
	if len(results) == 0 {
		return &protocol.SearchResponse{Results: []protocol.Item{}, Status: protocol.StatusError, Info: infoNoResults}
	}
	return &protocol.SearchResponse{Results: toItems(results), Status: protocol.StatusOK}
}

func (s *Session) HandleConfirmOrder(m *protocol.ConfirmOrder) *protocol.ConfirmOrderResponse {
	lines, reason := s.orderLines(m.Cart)
	if reason != "" {
		return &protocol.ConfirmOrderResponse{Status: protocol.StatusError, Info: reason}
	}
	o, err := s.core.Orders.Confirm(lines)
	if err != nil {
		return &protocol.ConfirmOrderResponse{Status: protocol.StatusError, Info: err.Error()}
	}
	for _, l := range lines {
		s.take(l.ItemID, l.Quantity)
	}
	s.core.Pipeline.Intake.Push(pipeline.PickRequest{Order: o})
	s.logf("confirmed order #%d", o.Number)
	return &protocol.ConfirmOrderResponse{OrderNum: o.Number, Status: protocol.StatusOK, Info: infoConfirmed}
}

// orderLines turns the requested lines into order lines, checking each is
// covered by the cart. No lines means the whole cart. A non-empty reason
// explains a refusal.
func (s *Session) orderLines(req []protocol.CartLine) ([]orders.Line, string) {
	if len(req) == 0 {
		for id, q := range s.cart {
			req = append(req, protocol.CartLine{ItemID: id, Quantity: q})
		}
		sort.Slice(req, func(i, j int) bool { return req[i].ItemID < req[j].ItemID })
	}
	if len(req) == 0 {
		return nil, infoEmptyCart
	}

	want := make(map[int]int)
	lines := make([]orders.Line, 0, len(req))
	for _, c := range req {
		if c.Quantity <= 0 {
			return nil, fmt.Sprintf("Bad quantity %d for item %d", c.Quantity, c.ItemID)
		}
		want[c.ItemID] += c.Quantity
		if want[c.ItemID] > s.cart[c.ItemID] {
			return nil, fmt.Sprintf("Item %d: %d requested, %d on hold", c.ItemID, want[c.ItemID], s.cart[c.ItemID])
		}
		name := c.Name
		if e, err := s.core.Ledger.Get(c.ItemID); err == nil {
			name = e.Name
		}
		lines = append(lines, orders.Line{ItemID: c.ItemID, Name: name, Quantity: c.Quantity})
	}
	return lines, ""
}

func (s *Session) HandleCancelOrder(m *protocol.CancelOrder) *protocol.CancelOrderResponse {
	o, err := s.core.Orders.Cancel(m.OrderNum)
	if err != nil {
		s.logf("cancel #%d: %v", m.OrderNum, err)
		return &protocol.CancelOrderResponse{Status: protocol.StatusError, Info: cancelInfo(err)}
	}
	for _, l := range o.Lines {
		if _, err := s.core.Ledger.Unhold(l.ItemID, l.Quantity); err != nil {
			s.logf("cancel #%d: return %d x %d: %v", o.Number, l.Quantity, l.ItemID, err)
		}
	}
	s.logf("cancelled order #%d", o.Number)
	return &protocol.CancelOrderResponse{Status: protocol.StatusOK, Info: infoCancelled}
}

func cancelInfo(err error) string {
	var te *orders.TransitionError
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return infoNoSuchOrder
	case errors.As(err, &te) && te.Current == orders.StatusCancelled:
		return infoAlreadyGone
	default:
		return infoEnroute
	}
}

func (s *Session) HandleGoodbye(*protocol.Goodbye) {
	s.done = true
	s.Close()
}

// Close hands every unconfirmed hold back to stock.
func (s *Session) Close() {
	for id, q := range s.cart {
		if _, err := s.core.Ledger.Unhold(id, q); err != nil {
			s.logf("return %d x %d: %v", q, id, err)
		}
		delete(s.cart, id)
	}
}

func (s *Session) take(id, qty int) {
	s.cart[id] -= qty
	if s.cart[id] <= 0 {
		delete(s.cart, id)
	}
}

func toItems(entries []inventory.ItemEntry) []protocol.Item {
	out := make([]protocol.Item, len(entries))
	for i, e := range entries {
		out[i] = protocol.Item{
			ID:        e.ID,
			Name:      e.Name,
			Available: e.Available,
			OnHold:    e.OnHold,
			Price:     e.UnitCost.StringFixed(2),
			Weight:    e.UnitWeight,
		}
	}
	return out
}
