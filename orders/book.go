package orders

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound       = errors.New("order not found")
	ErrEmpty          = errors.New("order has no lines")
	ErrNotCancellable = errors.New("order cannot be cancelled")
	ErrBadTransition  = errors.New("invalid status transition")
)

// TransitionError reports the status an order was in when a transition was refused.
type TransitionError struct {
	Number  int64
	Current Status
	Wanted  Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %d: %s -> %s not allowed", e.Number, e.Current, e.Wanted)
}

func (e *TransitionError) Unwrap() error { return ErrBadTransition }

// Book holds every order confirmed during this run.
type Book struct {
	mu      sync.Mutex
	orders  map[int64]*Order
	next    int64
	emitter EventEmitter
}

func NewBook(emitter EventEmitter) *Book {
	return &Book{
		orders:  make(map[int64]*Order),
		next:    FirstNumber,
		emitter: emitter,
	}
}

// Confirm records a new order in StatusConfirmed and assigns its number.
func (b *Book) Confirm(lines []Line) (Order, error) {
	if len(lines) == 0 {
		return Order{}, ErrEmpty
	}
	now := time.Now()
	b.mu.Lock()
	o := &Order{
		Number:    b.next,
		Lines:     append([]Line(nil), lines...),
		Status:    StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.next++
	b.orders[o.Number] = o
	snap := o.clone()
	b.mu.Unlock()

	if b.emitter != nil {
		b.emitter.EmitOrderConfirmed(snap)
	}
	return snap, nil
}

// Get returns a copy of the order.
func (b *Book) Get(number int64) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[number]
	if !ok {
		return Order{}, fmt.Errorf("order %d: %w", number, ErrNotFound)
	}
	return o.clone(), nil
}

// List returns copies of all orders by ascending number.
func (b *Book) List() []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Transition moves an order from `from` to `to` only if it is currently in
// `from`. It is the single compare-and-set used by every status change.
func (b *Book) Transition(number int64, from, to Status, detail string) (Order, error) {
	if !IsValidTransition(from, to) {
		return Order{}, &TransitionError{Number: number, Current: from, Wanted: to}
	}
	b.mu.Lock()
	o, ok := b.orders[number]
	if !ok {
		b.mu.Unlock()
		return Order{}, fmt.Errorf("order %d: %w", number, ErrNotFound)
	}
	if o.Status != from {
		cur := o.Status
		b.mu.Unlock()
		return Order{}, &TransitionError{Number: number, Current: cur, Wanted: to}
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	snap := o.clone()
	b.mu.Unlock()

	if b.emitter != nil {
		b.emitter.EmitOrderStatusChanged(number, from, to, detail)
	}
	return snap, nil
}

// Cancel moves a Confirmed order to Cancelled. Any other status yields an
// error wrapping both ErrNotCancellable and the *TransitionError.
func (b *Book) Cancel(number int64) (Order, error) {
	o, err := b.Transition(number, StatusConfirmed, StatusCancelled, "cancelled by client")
	var te *TransitionError
	if errors.As(err, &te) {
		return Order{}, fmt.Errorf("%w: %w", ErrNotCancellable, te)
	}
	return o, err
}
