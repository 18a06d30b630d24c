// Package queue provides an unbounded FIFO with blocking and non-blocking pop.
package queue

import (
	"context"
	"sync"
)

// Queue is a FIFO safe for concurrent producers and consumers.
// Push never blocks. Pop parks the caller until an element is pushed or the
// context is done; TryPop reports "no work" with ok=false.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	head    int
	waiters []chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends v and wakes at most one parked consumer.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.wakeOneLocked()
	q.mu.Unlock()
}

// TryPop removes the head element without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Pop removes the head element, waiting for one if the queue is empty.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if v, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return v, nil
		}
		w := make(chan struct{})
		q.waiters = append(q.waiters, w)
		q.mu.Unlock()

		select {
		case <-w:
			// woken by Push; a TryPop caller may have taken the element first,
			// in which case we park again
		case <-ctx.Done():
			q.mu.Lock()
			if !q.removeWaiterLocked(w) {
				// a Push already handed us the wake-up; pass it on
				q.wakeOneLocked()
			}
			q.mu.Unlock()
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Waiting returns the number of consumers parked in Pop.
func (q *Queue[T]) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if q.head == len(q.items) {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v, true
}

func (q *Queue[T]) wakeOneLocked() {
	if len(q.waiters) == 0 || q.head == len(q.items) {
		return
	}
	w := q.waiters[0]
	q.waiters[0] = nil
	q.waiters = q.waiters[1:]
	close(w)
}

func (q *Queue[T]) removeWaiterLocked(w chan struct{}) bool {
	for i, c := range q.waiters {
		if c == w {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return true
		}
	}
	return false
}
