package simfleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"warehouse/orders"
)

func TestFulfillOrderReturnsLines(t *testing.T) {
	f := New(Config{PickTime: time.Millisecond})
	o := orders.Order{Number: 1001, Lines: []orders.Line{{ItemID: 1, Quantity: 2}, {ItemID: 4, Quantity: 1}}}

	held, err := f.FulfillOrder(context.Background(), 0, o)
	if err != nil {
		t.Fatalf("FulfillOrder: %v", err)
	}
	if len(held) != 2 || held[1].ItemID != 4 {
		t.Errorf("held = %+v", held)
	}
}

func TestCancelledTrip(t *testing.T) {
	f := New(Config{TravelTime: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.MoveTo(ctx, 1, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("MoveTo err = %v, want context.Canceled", err)
	}
}
