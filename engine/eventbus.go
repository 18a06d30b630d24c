package engine

import (
	"sync"
	"time"
)

type EventType int

type SubscriberID int

// Event is one notification on the bus. Seq and Timestamp are stamped by
// Emit; Seq increases by one per emitted event.
type Event struct {
	Seq       uint64
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type handler struct {
	id SubscriberID
	fn func(Event)
}

// EventBus fans events out synchronously, in the emitter's goroutine.
// Handlers run in subscription order whether they take every type or a few.
type EventBus struct {
	mu       sync.Mutex
	wildcard []handler
	byType   map[EventType][]handler
	types    map[SubscriberID][]EventType
	nextID   SubscriberID
	seq      uint64
}

func NewEventBus() *EventBus {
	return &EventBus{
		byType: make(map[EventType][]handler),
		types:  make(map[SubscriberID][]EventType),
	}
}

// Subscribe registers fn for every event type.
func (eb *EventBus) Subscribe(fn func(Event)) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	eb.wildcard = append(eb.wildcard, handler{id: eb.nextID, fn: fn})
	return eb.nextID
}

// SubscribeTypes registers fn for the listed types only. A type listed twice
// is delivered once.
func (eb *EventBus) SubscribeTypes(fn func(Event), types ...EventType) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	h := handler{id: eb.nextID, fn: fn}
	seen := make(map[EventType]bool, len(types))
	for _, t := range types {
		if seen[t] {
			continue
		}
		seen[t] = true
		eb.byType[t] = append(eb.byType[t], h)
		eb.types[h.id] = append(eb.types[h.id], t)
	}
	return h.id
}

func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if ts, ok := eb.types[id]; ok {
		for _, t := range ts {
			eb.byType[t] = without(eb.byType[t], id)
		}
		delete(eb.types, id)
		return
	}
	eb.wildcard = without(eb.wildcard, id)
}

func without(hs []handler, id SubscriberID) []handler {
	out := make([]handler, 0, len(hs))
	for _, h := range hs {
		if h.id != id {
			out = append(out, h)
		}
	}
	return out
}

// Emit stamps evt and delivers it. Handlers subscribed while Emit runs see
// only later events.
func (eb *EventBus) Emit(evt Event) {
	eb.mu.Lock()
	eb.seq++
	evt.Seq = eb.seq
	all, typed := eb.wildcard, eb.byType[evt.Type]
	eb.mu.Unlock()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	// both lists are in id order; merge them to keep subscription order
	for len(all) > 0 || len(typed) > 0 {
		var h handler
		if len(typed) == 0 || (len(all) > 0 && all[0].id < typed[0].id) {
			h, all = all[0], all[1:]
		} else {
			h, typed = typed[0], typed[1:]
		}
		h.fn(evt)
	}
}
