// Package fleet is the movement collaborator the worker pool drives. The core
// never sees grid traversal; it only asks a robot to pick an order and to
// travel to a dock.
package fleet

import (
	"context"
	"errors"

	"warehouse/orders"
)

var ErrUnavailable = errors.New("fleet unavailable")

// Backend is the vendor-neutral interface for robot fleets.
type Backend interface {
	// FulfillOrder sends robot around the shelves and returns the lines it
	// is holding when it is done.
	FulfillOrder(ctx context.Context, robot int, order orders.Order) ([]orders.Line, error)

	// MoveTo drives robot to a dock and returns once it has arrived.
	MoveTo(ctx context.Context, robot, dock int) error

	// Ping checks connectivity to the fleet backend.
	Ping(ctx context.Context) error

	// Name returns a human-readable name for this backend.
	Name() string
}
