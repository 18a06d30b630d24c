// Package sharedstate is the warehouse state shared between the controller
// and truck processes: the dock bay record, the handshake signals and the
// robot roster. Every Bay method is one atomic step under the bay lock;
// callers never scan and then mark in separate steps.
package sharedstate

import (
	"context"
	"time"
)

// Bay is the mutex-guarded dock bay record.
type Bay interface {
	// Init creates a bay of n free docks, clears the quit flag and writes the
	// init marker. Controller only.
	Init(ctx context.Context, n int) error
	// Initialized reports whether the init marker is present.
	Initialized(ctx context.Context) (bool, error)
	// Size returns the number of docks.
	Size(ctx context.Context) (int, error)

	// Claim marks the lowest-index free dock as assigned and returns its index.
	Claim(ctx context.Context) (int, error)
	// SetKind records the truck kind and its cargo manifest on an assigned dock.
	SetKind(ctx context.Context, index int, kind Kind, cargo []CargoItem) error
	// BeginLoading moves a docked slot to loading and returns it.
	BeginLoading(ctx context.Context, index int) (Dock, error)
	// SetDone flags a loading dock complete. A non-nil cargo replaces the
	// dock's cargo.
	SetDone(ctx context.Context, index int, cargo []CargoItem) error
	// Abort flags an assigned or docking slot done without loading, so its
	// truck departs. Slots that are free, loading or done are left alone.
	Abort(ctx context.Context, index int) (Dock, error)
	// Release resets a done dock to free and returns its state before the reset.
	Release(ctx context.Context, index int) (Dock, error)

	Dock(ctx context.Context, index int) (Dock, error)
	Snapshot(ctx context.Context) ([]Dock, error)

	SetQuit(ctx context.Context) error
	Quit(ctx context.Context) (bool, error)
	// Teardown removes the init marker. Controller only.
	Teardown(ctx context.Context) error
}

// Signals are the counting semaphores of the dock handshake. Each raise adds
// one token; each await consumes one, blocking until a token exists or ctx
// is done.
type Signals interface {
	Arrive(ctx context.Context) error
	AwaitArrival(ctx context.Context) error

	OfferDock(ctx context.Context, index int) error
	AwaitDock(ctx context.Context) (int, error)

	Docked(ctx context.Context, index int) error
	AwaitDocked(ctx context.Context) (int, error)

	Finish(ctx context.Context, index int) error
	AwaitFinish(ctx context.Context, index int) error

	// Freed raises the release token. Unconsumed release tokens collapse
	// into one.
	Freed(ctx context.Context, index int) error
	// AwaitFreed waits up to timeout for a released dock. It returns false on
	// timeout.
	AwaitFreed(ctx context.Context, timeout time.Duration) (bool, error)

	// Reset drops every pending token. Controller only, before anything runs.
	Reset(ctx context.Context) error
}

// Roster is the shared robot roster.
type Roster interface {
	Register(ctx context.Context, id int, position string) error
	Move(ctx context.Context, id int, position string, busy bool) error
	Remove(ctx context.Context, id int) error
	Robots(ctx context.Context) ([]Robot, error)
}

// State bundles the three views of the shared warehouse state.
type State struct {
	Bay     Bay
	Signals Signals
	Roster  Roster
}
