package workers

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrStopped = errors.New("worker pool stopped")

// EventEmitter is notified when a robot joins the pool.
type EventEmitter interface {
	EmitRobotAdded(id int)
}

// Pool runs interchangeable workers over the same Deps. Robots can be added
// while it runs.
type Pool struct {
	deps    Deps
	emitter EventEmitter

	mu      sync.Mutex
	ctx     context.Context
	wg      sync.WaitGroup
	nextID  int
	pending int
	stopped bool
}

// NewPool creates a pool that starts size workers when Run is called.
func NewPool(deps Deps, size int, emitter EventEmitter) *Pool {
	if deps.Idle <= 0 {
		deps.Idle = 50 * time.Millisecond
	}
	if deps.LogFunc == nil {
		deps.LogFunc = defaultLog
	}
	return &Pool{deps: deps, emitter: emitter, nextID: 1, pending: size}
}

// Run starts the workers and blocks until ctx is done and every worker has
// returned.
func (p *Pool) Run(ctx context.Context) error {
	p.mu.Lock()
	p.ctx = ctx
	n := p.pending
	p.pending = 0
	for i := 0; i < n; i++ {
		p.startLocked()
	}
	p.mu.Unlock()

	<-ctx.Done()
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.wg.Wait()
	p.deps.LogFunc("workers: pool stopped")
	return nil
}

// Add grows the pool by one robot and returns its id. Before Run the robot is
// started with the rest.
func (p *Pool) Add() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return 0, ErrStopped
	}
	if p.ctx == nil {
		p.pending++
		return p.nextID + p.pending - 1, nil
	}
	return p.startLocked(), nil
}

// Size returns the number of robots started or waiting to start.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextID - 1 + p.pending
}

func (p *Pool) startLocked() int {
	id := p.nextID
	p.nextID++
	w := &worker{id: id, Deps: p.deps}
	ctx := p.ctx
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w.run(ctx)
	}()
	p.deps.LogFunc("workers: robot %d started", id)
	if p.emitter != nil {
		p.emitter.EmitRobotAdded(id)
	}
	return id
}
