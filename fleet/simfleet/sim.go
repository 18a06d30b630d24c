// Package simfleet is an in-process fleet whose robots take a fixed time per
// shelf visit and per dock trip.
package simfleet

import (
	"context"
	"time"

	"warehouse/orders"
)

type Config struct {
	PickTime   time.Duration // per order line
	TravelTime time.Duration // per dock trip
}

type Fleet struct {
	cfg Config
}

func New(cfg Config) *Fleet {
	return &Fleet{cfg: cfg}
}

func (f *Fleet) Name() string { return "simulator" }

func (f *Fleet) Ping(context.Context) error { return nil }

func (f *Fleet) FulfillOrder(ctx context.Context, _ int, order orders.Order) ([]orders.Line, error) {
	held := make([]orders.Line, 0, len(order.Lines))
	for _, l := range order.Lines {
		if err := wait(ctx, f.cfg.PickTime); err != nil {
			return nil, err
		}
		held = append(held, l)
	}
	return held, nil
}

func (f *Fleet) MoveTo(ctx context.Context, _, _ int) error {
	return wait(ctx, f.cfg.TravelTime)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
