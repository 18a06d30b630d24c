package protocol

const notSupported = "not supported"

// NoOpHandler answers every request with an ERROR reply.
type NoOpHandler struct{}

func (NoOpHandler) HandleAdd(*Add) *AddResponse {
	return &AddResponse{Status: StatusError, Info: notSupported}
}

func (NoOpHandler) HandleRemove(*Remove) *RemoveResponse {
	return &RemoveResponse{Status: StatusError, Info: notSupported}
}

func (NoOpHandler) HandleSearch(*Search) *SearchResponse {
	return &SearchResponse{Status: StatusError, Info: notSupported}
}

func (NoOpHandler) HandleConfirmOrder(*ConfirmOrder) *ConfirmOrderResponse {
	return &ConfirmOrderResponse{Status: StatusError, Info: notSupported}
}

func (NoOpHandler) HandleCancelOrder(*CancelOrder) *CancelOrderResponse {
	return &CancelOrderResponse{Status: StatusError, Info: notSupported}
}

func (NoOpHandler) HandleGoodbye(*Goodbye) {}

// Compile-time check that NoOpHandler implements Handler.
var _ Handler = NoOpHandler{}
