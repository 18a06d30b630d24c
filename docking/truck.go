package docking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rs/xid"

	"warehouse/sharedstate"
)

// MaxCargoWeight is the most a restock truck may carry.
const MaxCargoWeight = 200.0

var (
	ErrShutdown   = errors.New("warehouse is shutting down")
	ErrOverweight = errors.New("restock cargo too heavy")
	ErrBadKind    = errors.New("truck kind must be delivery or restock")
)

// Trip is what a truck took away from its dock.
type Trip struct {
	TruckID string
	Kind    sharedstate.Kind
	Dock    int
	Cargo   []sharedstate.CargoItem
	Waited  time.Duration
	Docked  time.Duration
}

type TruckConfig struct {
	State *sharedstate.State
	Kind  sharedstate.Kind
	// Cargo is the restock manifest. Delivery trucks arrive empty.
	Cargo []sharedstate.CargoItem
	// QuitPoll is how often the truck checks the shared quit flag.
	QuitPoll time.Duration
	LogFunc  LogFunc
}

// Truck runs the truck side of the handshake once.
type Truck struct {
	id       string
	bay      sharedstate.Bay
	sig      sharedstate.Signals
	kind     sharedstate.Kind
	cargo    []sharedstate.CargoItem
	quitPoll time.Duration
	logFn    LogFunc
}

func NewTruck(c TruckConfig) (*Truck, error) {
	switch c.Kind {
	case sharedstate.KindDelivery:
		if len(c.Cargo) > 0 {
			return nil, fmt.Errorf("delivery truck arrives empty, got %d cargo lines", len(c.Cargo))
		}
	case sharedstate.KindRestock:
		if w := sharedstate.CargoWeight(c.Cargo); w > MaxCargoWeight {
			return nil, fmt.Errorf("%w: %.1f > %.1f", ErrOverweight, w, MaxCargoWeight)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadKind, c.Kind)
	}
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	poll := c.QuitPoll
	if poll <= 0 {
		poll = time.Second
	}
	return &Truck{
		id:       xid.New().String(),
		bay:      c.State.Bay,
		sig:      c.State.Signals,
		kind:     c.Kind,
		cargo:    append([]sharedstate.CargoItem(nil), c.Cargo...),
		quitPoll: poll,
		logFn:    logFn,
	}, nil
}

func (t *Truck) ID() string { return t.id }

// Run arrives, docks, waits for the warehouse to finish with the dock and
// departs. It fails with ErrNotInitialized when no controller has set up the
// bay and with ErrShutdown when the controller quits mid-visit.
func (t *Truck) Run(ctx context.Context) (Trip, error) {
	trip := Trip{TruckID: t.id, Kind: t.kind, Dock: -1}

	ok, err := t.bay.Initialized(ctx)
	if err != nil {
		return trip, err
	}
	if !ok {
		return trip, sharedstate.ErrNotInitialized
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go t.watchQuit(ctx, cancel)

	wrap := func(err error) error {
		if cause := context.Cause(ctx); errors.Is(cause, ErrShutdown) {
			return ErrShutdown
		}
		return err
	}

	start := time.Now()
	if err := t.sig.Arrive(ctx); err != nil {
		return trip, wrap(err)
	}
	t.logFn("truck %s: %s truck arrived, waiting for a dock", t.id, t.kind)

	index, err := t.sig.AwaitDock(ctx)
	if err != nil {
		return trip, wrap(err)
	}
	trip.Dock = index
	trip.Waited = time.Since(start)

	if err := t.bay.SetKind(ctx, index, t.kind, t.cargo); err != nil {
		return trip, wrap(fmt.Errorf("dock %d: %w", index, err))
	}
	if err := t.sig.Docked(ctx, index); err != nil {
		return trip, wrap(err)
	}
	t.logFn("truck %s: docked at %d", t.id, index)

	dockedAt := time.Now()
	if err := t.sig.AwaitFinish(ctx, index); err != nil {
		return trip, wrap(err)
	}

	before, err := t.bay.Release(ctx, index)
	if err != nil {
		return trip, wrap(fmt.Errorf("release dock %d: %w", index, err))
	}
	if err := t.sig.Freed(ctx, index); err != nil {
		return trip, wrap(err)
	}
	trip.Cargo = before.Cargo
	trip.Docked = time.Since(dockedAt)
	t.logFn("truck %s: departed dock %d with %d cargo lines", t.id, index, len(trip.Cargo))
	return trip, nil
}

func (t *Truck) watchQuit(ctx context.Context, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(t.quitPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			quit, err := t.bay.Quit(ctx)
			if err != nil {
				continue
			}
			if quit {
				cancel(ErrShutdown)
				return
			}
		}
	}
}
