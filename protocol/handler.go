package protocol

import "log"

// Handler answers the request kinds a controller accepts. Embed NoOpHandler
// and override only the methods you need.
type Handler interface {
	HandleAdd(m *Add) *AddResponse
	HandleRemove(m *Remove) *RemoveResponse
	HandleSearch(m *Search) *SearchResponse
	HandleConfirmOrder(m *ConfirmOrder) *ConfirmOrderResponse
	HandleCancelOrder(m *CancelOrder) *CancelOrderResponse
	HandleGoodbye(m *Goodbye)
}

// Dispatch routes m to h and returns the reply to send, if any. Response kinds
// sent to a controller are logged and dropped.
func Dispatch(h Handler, m Message) Message {
	switch m := m.(type) {
	case *Add:
		return reply(h.HandleAdd(m))
	case *Remove:
		return reply(h.HandleRemove(m))
	case *Search:
		return reply(h.HandleSearch(m))
	case *ConfirmOrder:
		return reply(h.HandleConfirmOrder(m))
	case *CancelOrder:
		return reply(h.HandleCancelOrder(m))
	case *Goodbye:
		h.HandleGoodbye(m)
		return nil
	default:
		log.Printf("protocol: unexpected %s from client", m.Tag())
		return nil
	}
}

// reply keeps a nil response pointer from becoming a non-nil Message.
func reply[T any, P interface {
	*T
	Message
}](r P) Message {
	if r == nil {
		return nil
	}
	return r
}

// ErrorReply builds the ERROR response matching a request tag, for requests
// that could not be decoded. It returns nil for tags with no reply kind.
func ErrorReply(t Tag, info string) Message {
	switch t {
	case TagAdd:
		return &AddResponse{Status: StatusError, Info: info}
	case TagRemove:
		return &RemoveResponse{Status: StatusError, Info: info}
	case TagSearch:
		return &SearchResponse{Status: StatusError, Info: info}
	case TagConfirmOrder:
		return &ConfirmOrderResponse{Status: StatusError, Info: info}
	case TagCancelOrder:
		return &CancelOrderResponse{Status: StatusError, Info: info}
	}
	return nil
}
