// Package workers is the robot pool. Every worker polls the pipeline queues in
// turn, so none of them blocks on one queue while another has work.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"warehouse/fleet"
	"warehouse/inventory"
	"warehouse/orders"
	"warehouse/pipeline"
	"warehouse/sharedstate"
)

const positionHome = "home"

// DockController finishes a dock visit once a worker is done with it.
type DockController interface {
	LoadComplete(ctx context.Context, dock int, cargo []sharedstate.CargoItem) error
}

type LogFunc func(format string, args ...any)

// Deps is everything a worker touches. All of it is safe for concurrent use.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Ledger   *inventory.Ledger
	Orders   *orders.Book
	Fleet    fleet.Backend
	Docks    DockController
	Bay      sharedstate.Bay
	Roster   sharedstate.Roster
	// Idle is how long a worker sleeps when every queue is empty.
	Idle    time.Duration
	LogFunc LogFunc
}

type worker struct {
	id int
	Deps
}

func (w *worker) logf(format string, args ...any) {
	w.LogFunc("workers: robot %d: "+format, append([]any{w.id}, args...)...)
}

func (w *worker) run(ctx context.Context) {
	if err := w.Roster.Register(ctx, w.id, positionHome); err != nil {
		w.logf("register: %v", err)
	}
	defer w.Roster.Remove(context.WithoutCancel(ctx), w.id)

	for ctx.Err() == nil {
		if !w.step(ctx) {
			w.idle(ctx)
		}
	}
}

// step performs at most one task from each queue and reports whether any
// work was found.
func (w *worker) step(ctx context.Context) bool {
	worked := false
	if req, ok := w.Pipeline.Intake.TryPop(); ok {
		w.pick(ctx, req)
		worked = true
	}
	if a, ok := w.Pipeline.Load.TryPop(); ok {
		w.load(ctx, a)
		worked = true
	}
	if a, ok := w.Pipeline.Restock.TryPop(); ok {
		w.unload(ctx, a)
		worked = true
	}
	return worked
}

func (w *worker) idle(ctx context.Context) {
	t := time.NewTimer(w.Idle)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *worker) move(ctx context.Context, position string, busy bool) {
	if err := w.Roster.Move(ctx, w.id, position, busy); err != nil && ctx.Err() == nil {
		w.logf("roster: %v", err)
	}
}

// pick fulfils a confirmed order and hands it to the dock monitor. Orders
// cancelled while queued are dropped.
func (w *worker) pick(ctx context.Context, req pipeline.PickRequest) {
	o, err := w.Orders.Get(req.Order.Number)
	if err != nil {
		w.logf("pick order %d: %v", req.Order.Number, err)
		return
	}
	if o.Status != orders.StatusConfirmed {
		w.logf("order %d is %s, not picking", o.Number, o.Status)
		return
	}

	w.move(ctx, "shelves", true)
	defer w.move(ctx, positionHome, false)

	held, err := w.Fleet.FulfillOrder(ctx, w.id, o)
	if err != nil {
		if ctx.Err() == nil {
			w.logf("pick order %d failed, requeueing: %v", o.Number, err)
			w.Pipeline.Intake.Push(req)
		}
		return
	}
	o.Lines = held
	w.Pipeline.Completed.Push(o)
	w.logf("picked order %d (%d lines)", o.Number, len(held))
}

// load carries an order onto a delivery truck. Held stock leaves the ledger
// and becomes the truck's cargo. A robot that cannot reach the dock puts the
// assignment back for another try; the truck waits until someone finishes it.
func (w *worker) load(ctx context.Context, a pipeline.DockAssignment) {
	w.move(ctx, dockPosition(a.Dock), true)
	defer w.move(ctx, positionHome, false)

	if err := w.Fleet.MoveTo(ctx, w.id, a.Dock); err != nil {
		if ctx.Err() == nil {
			w.logf("move to dock %d failed, requeueing order %d: %v", a.Dock, a.Order.Number, err)
			w.Pipeline.Load.Push(a)
		}
		return
	}

	cargo := make([]sharedstate.CargoItem, 0, len(a.Order.Lines))
	for _, l := range a.Order.Lines {
		e, err := w.Ledger.Release(l.ItemID, l.Quantity, 0)
		if err != nil {
			w.logf("order %d: %v", a.Order.Number, err)
			continue
		}
		cargo = append(cargo, sharedstate.CargoItem{
			ItemID:   l.ItemID,
			Name:     e.Name,
			Quantity: l.Quantity,
			Weight:   e.UnitWeight,
		})
	}

	if err := w.Docks.LoadComplete(ctx, a.Dock, cargo); err != nil {
		w.logf("load complete: %v", err)
		return
	}
	if _, err := w.Orders.Transition(a.Order.Number, orders.StatusLoading, orders.StatusEnroute,
		fmt.Sprintf("left on dock %d", a.Dock)); err != nil {
		w.logf("order %d: %v", a.Order.Number, err)
		return
	}
	w.logf("order %d loaded at dock %d", a.Order.Number, a.Dock)
}

// unload moves a restock truck's manifest into the ledger.
func (w *worker) unload(ctx context.Context, a pipeline.RestockAssignment) {
	w.move(ctx, dockPosition(a.Dock), true)
	defer w.move(ctx, positionHome, false)

	if err := w.Fleet.MoveTo(ctx, w.id, a.Dock); err != nil {
		if ctx.Err() == nil {
			w.logf("move to dock %d failed, requeueing unload: %v", a.Dock, err)
			w.Pipeline.Restock.Push(a)
		}
		return
	}
	d, err := w.Bay.Dock(ctx, a.Dock)
	if err != nil {
		if ctx.Err() == nil {
			w.logf("read dock %d failed, requeueing unload: %v", a.Dock, err)
			w.Pipeline.Restock.Push(a)
		}
		return
	}
	for _, c := range d.Cargo {
		if _, err := w.Ledger.Restock(c.ItemID, c.Quantity, c.Name); err != nil {
			if errors.Is(err, inventory.ErrInvalidQuantity) {
				w.logf("dock %d: skipping manifest line %+v", a.Dock, c)
				continue
			}
			w.logf("restock item %d: %v", c.ItemID, err)
		}
	}
	if err := w.Docks.LoadComplete(ctx, a.Dock, []sharedstate.CargoItem{}); err != nil {
		w.logf("unload complete: %v", err)
		return
	}
	w.logf("unloaded %d lines at dock %d", len(d.Cargo), a.Dock)
}

func dockPosition(dock int) string {
	return fmt.Sprintf("dock %d", dock)
}

func defaultLog(format string, args ...any) { log.Printf(format, args...) }
