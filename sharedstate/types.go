package sharedstate

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotInitialized = errors.New("shared warehouse state not initialized (is the controller running?)")
	ErrNoFreeDock     = errors.New("no free dock")
	ErrWrongPhase     = errors.New("dock in wrong phase")
	ErrBadIndex       = errors.New("dock index out of range")
	ErrNotRegistered  = errors.New("robot not registered")
)

// initMarker is written by the controller when it creates the dock bay.
const initMarker = "4321"

// Kind is the type of truck occupying a dock.
type Kind string

const (
	KindNone     Kind = ""
	KindDelivery Kind = "delivery"
	KindRestock  Kind = "restock"
)

// Phase is the handshake state of one dock slot.
type Phase string

const (
	PhaseWaiting  Phase = "waiting_for_arrival"
	PhaseAssigned Phase = "awaiting_assignment"
	PhaseDocking  Phase = "docking"
	PhaseLoading  Phase = "loading"
	PhaseDone     Phase = "done"
)

// phaseOrder is the linear progression of a dock slot.
var phaseOrder = []Phase{
	PhaseWaiting,
	PhaseAssigned,
	PhaseDocking,
	PhaseLoading,
	PhaseDone,
	PhaseWaiting, // slot reset
}

// NextPhase returns the phase that follows p.
func NextPhase(p Phase) (Phase, bool) {
	for i, s := range phaseOrder {
		if s == p && i < len(phaseOrder)-1 {
			return phaseOrder[i+1], true
		}
	}
	return "", false
}

// PhaseError reports a compare-and-set that found the dock in another phase.
type PhaseError struct {
	Index   int
	Current Phase
	Wanted  Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("dock %d is %s, want %s", e.Index, e.Current, e.Wanted)
}

func (e *PhaseError) Unwrap() error { return ErrWrongPhase }

// CargoItem is one manifest line carried by a truck.
type CargoItem struct {
	ItemID   int     `json:"item_id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Weight   float64 `json:"weight"`
}

// CargoWeight sums the weight of every line.
func CargoWeight(items []CargoItem) float64 {
	var w float64
	for _, it := range items {
		w += it.Weight * float64(it.Quantity)
	}
	return w
}

// Dock is one slot of the dock bay.
type Dock struct {
	Index        int         `json:"index"`
	Occupied     bool        `json:"occupied"`
	Kind         Kind        `json:"kind"`
	LoadComplete bool        `json:"load_complete"`
	Phase        Phase       `json:"phase"`
	Cargo        []CargoItem `json:"cargo"`
}

func freeDock(i int) Dock {
	return Dock{Index: i, Phase: PhaseWaiting}
}

// Robot is one entry of the robot roster.
type Robot struct {
	ID        int       `json:"id"`
	Position  string    `json:"position"`
	Busy      bool      `json:"busy"`
	UpdatedAt time.Time `json:"updated_at"`
}
