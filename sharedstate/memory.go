package sharedstate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"warehouse/queue"
)

// NewMemory returns shared state living in this process. It serves an
// embedded controller and tests; separate truck processes need NewRedis.
func NewMemory() *State {
	return &State{
		Bay:     &MemoryBay{},
		Signals: NewMemorySignals(),
		Roster:  &MemoryRoster{robots: make(map[int]Robot)},
	}
}

// MemoryBay keeps the dock bay under one mutex.
type MemoryBay struct {
	mu          sync.Mutex
	docks       []Dock
	initialized bool
	quit        bool
}

func (b *MemoryBay) Init(_ context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("init bay: %d docks: %w", n, ErrBadIndex)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docks = make([]Dock, n)
	for i := range b.docks {
		b.docks[i] = freeDock(i)
	}
	b.quit = false
	b.initialized = true
	return nil
}

func (b *MemoryBay) Initialized(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized, nil
}

func (b *MemoryBay) Size(context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return 0, ErrNotInitialized
	}
	return len(b.docks), nil
}

func (b *MemoryBay) Claim(context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return -1, ErrNotInitialized
	}
	for i := range b.docks {
		if b.docks[i].Phase == PhaseWaiting {
			b.docks[i] = Dock{Index: i, Occupied: true, Phase: PhaseAssigned}
			return i, nil
		}
	}
	return -1, ErrNoFreeDock
}

func (b *MemoryBay) SetKind(_ context.Context, index int, kind Kind, cargo []CargoItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.slotLocked(index, PhaseAssigned)
	if err != nil {
		return err
	}
	d.Kind = kind
	d.Cargo = append([]CargoItem(nil), cargo...)
	d.Phase = PhaseDocking
	return nil
}

func (b *MemoryBay) BeginLoading(_ context.Context, index int) (Dock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.slotLocked(index, PhaseDocking)
	if err != nil {
		return Dock{}, err
	}
	d.Phase = PhaseLoading
	return cloneDock(*d), nil
}

func (b *MemoryBay) SetDone(_ context.Context, index int, cargo []CargoItem) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.slotLocked(index, PhaseLoading)
	if err != nil {
		return err
	}
	if cargo != nil {
		d.Cargo = append([]CargoItem{}, cargo...)
	}
	d.LoadComplete = true
	d.Phase = PhaseDone
	return nil
}

func (b *MemoryBay) Abort(_ context.Context, index int) (Dock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return Dock{}, ErrNotInitialized
	}
	if index < 0 || index >= len(b.docks) {
		return Dock{}, fmt.Errorf("dock %d: %w", index, ErrBadIndex)
	}
	d := &b.docks[index]
	if d.Phase != PhaseAssigned && d.Phase != PhaseDocking {
		return Dock{}, &PhaseError{Index: index, Current: d.Phase, Wanted: PhaseAssigned}
	}
	d.LoadComplete = true
	d.Phase = PhaseDone
	return cloneDock(*d), nil
}

func (b *MemoryBay) Release(_ context.Context, index int) (Dock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.slotLocked(index, PhaseDone)
	if err != nil {
		return Dock{}, err
	}
	before := cloneDock(*d)
	*d = freeDock(index)
	return before, nil
}

func (b *MemoryBay) Dock(_ context.Context, index int) (Dock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return Dock{}, ErrNotInitialized
	}
	if index < 0 || index >= len(b.docks) {
		return Dock{}, fmt.Errorf("dock %d: %w", index, ErrBadIndex)
	}
	return cloneDock(b.docks[index]), nil
}

func (b *MemoryBay) Snapshot(context.Context) ([]Dock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]Dock, len(b.docks))
	for i, d := range b.docks {
		out[i] = cloneDock(d)
	}
	return out, nil
}

func (b *MemoryBay) SetQuit(context.Context) error {
	b.mu.Lock()
	b.quit = true
	b.mu.Unlock()
	return nil
}

func (b *MemoryBay) Quit(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.quit, nil
}

func (b *MemoryBay) Teardown(context.Context) error {
	b.mu.Lock()
	b.initialized = false
	b.quit = true
	b.mu.Unlock()
	return nil
}

// slotLocked returns the dock at index if it is in the wanted phase.
func (b *MemoryBay) slotLocked(index int, want Phase) (*Dock, error) {
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	if index < 0 || index >= len(b.docks) {
		return nil, fmt.Errorf("dock %d: %w", index, ErrBadIndex)
	}
	d := &b.docks[index]
	if d.Phase != want {
		return nil, &PhaseError{Index: index, Current: d.Phase, Wanted: want}
	}
	return d, nil
}

func cloneDock(d Dock) Dock {
	d.Cargo = append([]CargoItem(nil), d.Cargo...)
	return d
}

// MemorySignals implements Signals with in-process queues of tokens.
type MemorySignals struct {
	mu        sync.Mutex
	arrival   *queue.Queue[int]
	available *queue.Queue[int]
	docked    *queue.Queue[int]
	freed     *queue.Queue[int]
	done      map[int]*queue.Queue[int]
}

func NewMemorySignals() *MemorySignals {
	s := &MemorySignals{}
	s.reset()
	return s
}

func (s *MemorySignals) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arrival = queue.New[int]()
	s.available = queue.New[int]()
	s.docked = queue.New[int]()
	s.freed = queue.New[int]()
	s.done = make(map[int]*queue.Queue[int])
}

func (s *MemorySignals) doneQueue(index int) *queue.Queue[int] {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.done[index]
	if !ok {
		q = queue.New[int]()
		s.done[index] = q
	}
	return q
}

// current returns the queue *q points at. Reset swaps the pointers, so
// every read goes through the lock.
func (s *MemorySignals) current(q **queue.Queue[int]) *queue.Queue[int] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *q
}

func (s *MemorySignals) Arrive(context.Context) error {
	s.current(&s.arrival).Push(1)
	return nil
}

func (s *MemorySignals) AwaitArrival(ctx context.Context) error {
	_, err := s.current(&s.arrival).Pop(ctx)
	return err
}

func (s *MemorySignals) OfferDock(_ context.Context, index int) error {
	s.current(&s.available).Push(index)
	return nil
}

func (s *MemorySignals) AwaitDock(ctx context.Context) (int, error) {
	return s.current(&s.available).Pop(ctx)
}

func (s *MemorySignals) Docked(_ context.Context, index int) error {
	s.current(&s.docked).Push(index)
	return nil
}

func (s *MemorySignals) AwaitDocked(ctx context.Context) (int, error) {
	return s.current(&s.docked).Pop(ctx)
}

func (s *MemorySignals) Finish(_ context.Context, index int) error {
	s.doneQueue(index).Push(index)
	return nil
}

func (s *MemorySignals) AwaitFinish(ctx context.Context, index int) error {
	_, err := s.doneQueue(index).Pop(ctx)
	return err
}

// Freed raises the release token unless one is already pending; a waiting
// monitor only needs to wake once.
func (s *MemorySignals) Freed(_ context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.freed.Len() == 0 {
		s.freed.Push(index)
	}
	return nil
}

func (s *MemorySignals) AwaitFreed(ctx context.Context, timeout time.Duration) (bool, error) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := s.current(&s.freed).Pop(wctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return false, nil
	}
	return false, err
}

func (s *MemorySignals) Reset(context.Context) error {
	s.reset()
	return nil
}

// Pending returns the number of unconsumed arrival tokens.
func (s *MemorySignals) Pending() int {
	return s.current(&s.arrival).Len()
}

// MemoryRoster keeps the robot roster under one mutex.
type MemoryRoster struct {
	mu     sync.Mutex
	robots map[int]Robot
}

func (r *MemoryRoster) Register(_ context.Context, id int, position string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.robots[id] = Robot{ID: id, Position: position, UpdatedAt: time.Now()}
	return nil
}

func (r *MemoryRoster) Move(_ context.Context, id int, position string, busy bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.robots[id]; !ok {
		return fmt.Errorf("robot %d: %w", id, ErrNotRegistered)
	}
	r.robots[id] = Robot{ID: id, Position: position, Busy: busy, UpdatedAt: time.Now()}
	return nil
}

func (r *MemoryRoster) Remove(_ context.Context, id int) error {
	r.mu.Lock()
	delete(r.robots, id)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRoster) Robots(context.Context) ([]Robot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Robot, 0, len(r.robots))
	for _, rb := range r.robots {
		out = append(out, rb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
