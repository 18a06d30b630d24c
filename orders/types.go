package orders

import "time"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusLoading   Status = "loading"
	StatusEnroute   Status = "enroute_to_delivery"
	StatusCancelled Status = "cancelled"
)

// FirstNumber is the number assigned to the first confirmed order.
const FirstNumber int64 = 1001

// validTransitions lists the statuses reachable from each status.
var validTransitions = map[Status][]Status{
	StatusConfirmed: {StatusLoading, StatusCancelled},
	StatusLoading:   {StatusEnroute},
}

// IsValidTransition reports whether from → to is allowed.
func IsValidTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s Status) bool {
	return len(validTransitions[s]) == 0
}

// Line is one (item, quantity) pair of an order.
type Line struct {
	ItemID   int    `json:"item_id"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity"`
}

type Order struct {
	Number    int64     `json:"number"`
	Lines     []Line    `json:"lines"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) clone() Order {
	c := *o
	c.Lines = append([]Line(nil), o.Lines...)
	return c
}
