// Package docking runs the dock handshake: the controller's Monitor pairs
// truck arrivals with free docks and routes work to the pool, and Truck
// plays the other side from a truck process.
package docking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"warehouse/orders"
	"warehouse/pipeline"
	"warehouse/sharedstate"
)

type LogFunc func(format string, args ...any)

type MonitorConfig struct {
	State    *sharedstate.State
	Pipeline *pipeline.Pipeline
	Orders   *orders.Book
	Emitter  EventEmitter
	// PollInterval bounds how long the monitor waits for a released dock
	// before re-scanning the bay.
	PollInterval time.Duration
	LogFunc      LogFunc
}

// Monitor is the controller side of the dock handshake. One Monitor serves
// every dock; it handles one arrival at a time but never waits for loading.
type Monitor struct {
	bay     sharedstate.Bay
	sig     sharedstate.Signals
	pipe    *pipeline.Pipeline
	book    *orders.Book
	emitter EventEmitter
	poll    time.Duration
	logFn   LogFunc
	wg      sync.WaitGroup
}

func NewMonitor(c MonitorConfig) *Monitor {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	poll := c.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Monitor{
		bay:     c.State.Bay,
		sig:     c.State.Signals,
		pipe:    c.Pipeline,
		book:    c.Orders,
		emitter: c.Emitter,
		poll:    poll,
		logFn:   logFn,
	}
}

// Run serves truck arrivals until ctx is done. It returns nil on cancellation
// and the first shared-state failure otherwise.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.wg.Wait()
	m.logFn("docking: monitor started")
	for {
		err := m.serveArrival(ctx)
		if ctx.Err() != nil {
			m.logFn("docking: monitor stopped")
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (m *Monitor) serveArrival(ctx context.Context) error {
	if err := m.sig.AwaitArrival(ctx); err != nil {
		return err
	}
	index, err := m.claim(ctx)
	if err != nil {
		return err
	}
	m.logFn("docking: truck arrived, dock %d assigned", index)
	if err := m.sig.OfferDock(ctx, index); err != nil {
		return fmt.Errorf("offer dock %d: %w", index, err)
	}

	docked, err := m.sig.AwaitDocked(ctx)
	if err != nil {
		return err
	}
	if docked != index {
		m.logFn("docking: docked signal for dock %d, assigned %d", docked, index)
	}

	dock, err := m.bay.BeginLoading(ctx, docked)
	if err != nil {
		var pe *sharedstate.PhaseError
		if errors.As(err, &pe) {
			m.logFn("docking: %v", err)
			return m.sendAway(ctx, index)
		}
		return fmt.Errorf("begin loading dock %d: %w", docked, err)
	}
	m.logFn("docking: %s truck docked at %d", dock.Kind, docked)
	if m.emitter != nil {
		m.emitter.EmitTruckDocked(docked, dock.Kind)
	}

	switch dock.Kind {
	case sharedstate.KindDelivery:
		m.wg.Add(1)
		go m.routeDelivery(ctx, docked)
	case sharedstate.KindRestock:
		m.pipe.Restock.Push(pipeline.RestockAssignment{Dock: docked})
	default:
		m.logFn("docking: dock %d has unknown truck kind %q, sending it away", docked, dock.Kind)
		return m.LoadComplete(ctx, docked, nil)
	}
	return nil
}

// claim takes the lowest free dock, waiting for a release while all are taken.
// The arrival stays paired with this claim, so later trucks keep waiting.
func (m *Monitor) claim(ctx context.Context) (int, error) {
	for {
		index, err := m.bay.Claim(ctx)
		if err == nil {
			return index, nil
		}
		if !errors.Is(err, sharedstate.ErrNoFreeDock) {
			return -1, fmt.Errorf("claim dock: %w", err)
		}
		if _, err := m.sig.AwaitFreed(ctx, m.poll); err != nil {
			return -1, err
		}
	}
}

// routeDelivery hands the next still-confirmed picked order to the dock.
func (m *Monitor) routeDelivery(ctx context.Context, dock int) {
	defer m.wg.Done()
	for {
		o, err := m.pipe.Completed.Pop(ctx)
		if err != nil {
			return
		}
		loading, err := m.book.Transition(o.Number, orders.StatusConfirmed, orders.StatusLoading,
			fmt.Sprintf("assigned to dock %d", dock))
		if err != nil {
			m.logFn("docking: skipping order %d: %v", o.Number, err)
			continue
		}
		m.pipe.Load.Push(pipeline.DockAssignment{Order: loading, Dock: dock})
		m.logFn("docking: order %d assigned to dock %d", o.Number, dock)
		if m.emitter != nil {
			m.emitter.EmitDockAssigned(dock, o.Number)
		}
		return
	}
}

// sendAway finishes the claimed dock when its handshake broke before any
// work was routed to it, so the truck departs and the slot frees up.
func (m *Monitor) sendAway(ctx context.Context, dock int) error {
	if _, err := m.bay.Abort(ctx, dock); err != nil {
		var pe *sharedstate.PhaseError
		if errors.As(err, &pe) {
			m.logFn("docking: dock %d is %s, leaving it", dock, pe.Current)
			return nil
		}
		return fmt.Errorf("abort dock %d: %w", dock, err)
	}
	m.logFn("docking: dock %d stranded mid-handshake, sending its truck away", dock)
	return m.finish(ctx, dock)
}

// LoadComplete marks a loading dock done and lets its truck depart. cargo,
// when non-nil, replaces the dock's cargo record.
func (m *Monitor) LoadComplete(ctx context.Context, dock int, cargo []sharedstate.CargoItem) error {
	if err := m.bay.SetDone(ctx, dock, cargo); err != nil {
		return fmt.Errorf("dock %d done: %w", dock, err)
	}
	return m.finish(ctx, dock)
}

func (m *Monitor) finish(ctx context.Context, dock int) error {
	if err := m.sig.Finish(ctx, dock); err != nil {
		return fmt.Errorf("dock %d finish signal: %w", dock, err)
	}
	m.logFn("docking: dock %d done", dock)
	if m.emitter != nil {
		m.emitter.EmitDockDone(dock)
	}
	return nil
}
