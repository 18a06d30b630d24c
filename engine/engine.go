// Package engine assembles the controller: ledger, order book, queue
// pipeline, dock monitor, worker pool and client listener, with every event
// journaled to the store and queued for the messaging outbox.
package engine

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"warehouse/config"
	"warehouse/docking"
	"warehouse/fleet"
	"warehouse/inventory"
	"warehouse/messaging"
	"warehouse/orders"
	"warehouse/pipeline"
	"warehouse/service"
	"warehouse/sharedstate"
	"warehouse/store"
	"warehouse/workers"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig *config.Config
	DB        *store.DB
	State     *sharedstate.State
	Fleet     fleet.Backend
	// MsgClient may be nil, in which case the outbox is left for another
	// process to drain.
	MsgClient *messaging.Client
	LogFunc   LogFunc
	// HealthInterval is how often fleet and messaging connectivity is
	// checked. Zero means 10s.
	HealthInterval time.Duration
}

type Engine struct {
	cfg       *config.Config
	db        *store.DB
	state     *sharedstate.State
	fleet     fleet.Backend
	msgClient *messaging.Client
	logFn     LogFunc
	health    time.Duration

	ledger  *inventory.Ledger
	book    *orders.Book
	pipe    *pipeline.Pipeline
	monitor *docking.Monitor
	pool    *workers.Pool
	server  *service.Server
	drainer *messaging.OutboxDrainer

	Events *EventBus

	connMu         sync.Mutex
	fleetConnected bool
	msgConnected   bool
}

// New builds every subsystem and seeds the ledger from the configured
// inventory. Nothing runs until Run.
func New(c Config) (*Engine, error) {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	health := c.HealthInterval
	if health <= 0 {
		health = 10 * time.Second
	}
	e := &Engine{
		cfg:       c.AppConfig,
		db:        c.DB,
		state:     c.State,
		fleet:     c.Fleet,
		msgClient: c.MsgClient,
		logFn:     logFn,
		health:    health,
		Events:    NewEventBus(),
	}
	cfg := e.cfg

	e.ledger = inventory.NewLedger(cfg.Warehouse.LowStock, &inventoryEmitter{bus: e.Events})
	if err := e.seedLedger(cfg.Warehouse.Inventory); err != nil {
		return nil, err
	}
	e.book = orders.NewBook(&orderEmitter{bus: e.Events})
	e.pipe = pipeline.New()

	e.monitor = docking.NewMonitor(docking.MonitorConfig{
		State:        e.state,
		Pipeline:     e.pipe,
		Orders:       e.book,
		Emitter:      &dockEmitter{bus: e.Events},
		PollInterval: cfg.Shared.PollInterval,
		LogFunc:      docking.LogFunc(logFn),
	})
	e.pool = workers.NewPool(workers.Deps{
		Pipeline: e.pipe,
		Ledger:   e.ledger,
		Orders:   e.book,
		Fleet:    e.fleet,
		Docks:    e.monitor,
		Bay:      e.state.Bay,
		Roster:   e.state.Roster,
		Idle:     cfg.Warehouse.WorkerIdle,
		LogFunc:  workers.LogFunc(logFn),
	}, cfg.Warehouse.Robots, &robotEmitter{bus: e.Events})

	core := &service.Core{Ledger: e.ledger, Orders: e.book, Pipeline: e.pipe}
	e.server = service.NewServer(service.Config{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		MaxFrameSize: uint32(cfg.Server.MaxFrameSize),
		LogFunc:      service.LogFunc(logFn),
	}, core)

	if e.msgClient != nil {
		e.drainer = messaging.NewOutboxDrainer(e.db, e.msgClient, cfg.Messaging.OutboxDrainInterval, messaging.LogFunc(logFn))
	}

	e.wireEventHandlers()
	return e, nil
}

func (e *Engine) seedLedger(items []config.ItemConfig) error {
	for _, it := range items {
		cost := decimal.Zero
		if it.UnitCost != "" {
			d, err := decimal.NewFromString(it.UnitCost)
			if err != nil {
				return fmt.Errorf("engine: item %d unit cost %q: %w", it.ID, it.UnitCost, err)
			}
			cost = d
		}
		err := e.ledger.Add(inventory.ItemEntry{
			ID:         it.ID,
			Name:       it.Name,
			Available:  it.Quantity,
			UnitCost:   cost,
			UnitWeight: it.UnitWeight,
			Shelves:    it.Shelves,
		})
		if err != nil {
			return fmt.Errorf("engine: seed inventory: %w", err)
		}
	}
	e.logFn("engine: seeded %d inventory items", len(items))
	return nil
}

// Run initializes the shared bay, binds the client listener and runs every
// subsystem until ctx is done. On the way out it raises the quit flag so
// waiting trucks leave, then removes the init marker.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.state.Signals.Reset(ctx); err != nil {
		return fmt.Errorf("engine: reset signals: %w", err)
	}
	if err := e.state.Bay.Init(ctx, e.cfg.Shared.Docks); err != nil {
		return fmt.Errorf("engine: init bay: %w", err)
	}
	defer e.teardown()

	if err := e.server.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.monitor.Run(gctx) })
	g.Go(func() error { return e.pool.Run(gctx) })
	g.Go(func() error { return e.server.Serve(gctx) })
	if e.drainer != nil {
		g.Go(func() error { return e.drainer.Run(gctx) })
	}
	g.Go(func() error {
		e.healthLoop(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		qctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.state.Bay.SetQuit(qctx); err != nil {
			e.logFn("engine: set quit flag: %v", err)
		}
		return nil
	})

	e.logFn("engine: started: %d docks, %d robots, fleet %s", e.cfg.Shared.Docks, e.pool.Size(), e.fleet.Name())
	err := g.Wait()
	e.logFn("engine: stopped")
	return err
}

func (e *Engine) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.state.Bay.Teardown(ctx); err != nil {
		e.logFn("engine: teardown bay: %v", err)
	}
}

func (e *Engine) healthLoop(ctx context.Context) {
	e.checkConnectionStatus(ctx)
	ticker := time.NewTicker(e.health)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.checkConnectionStatus(ctx)
		}
	}
}

// checkConnectionStatus emits an event whenever fleet or messaging
// connectivity flips.
func (e *Engine) checkConnectionStatus(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	fleetErr := e.fleet.Ping(pctx)
	cancel()
	msgUp := e.msgClient != nil && e.msgClient.IsConnected()

	var evts []Event
	e.connMu.Lock()
	switch {
	case fleetErr == nil && !e.fleetConnected:
		e.fleetConnected = true
		evts = append(evts, Event{Type: EventFleetConnected, Payload: ConnectionEvent{Detail: e.fleet.Name() + " connected"}})
	case fleetErr != nil && e.fleetConnected:
		e.fleetConnected = false
		evts = append(evts, Event{Type: EventFleetDisconnected, Payload: ConnectionEvent{Detail: fleetErr.Error()}})
	}
	if e.msgClient != nil && msgUp != e.msgConnected {
		e.msgConnected = msgUp
		if msgUp {
			evts = append(evts, Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: e.msgClient.Backend() + " connected"}})
		} else {
			evts = append(evts, Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: e.msgClient.Backend() + " disconnected"}})
		}
	}
	e.connMu.Unlock()

	for _, evt := range evts {
		e.Events.Emit(evt)
	}
}

// AddRobot grows the worker pool by one robot.
func (e *Engine) AddRobot() (int, error) { return e.pool.Add() }

// Connectivity reports the last observed fleet and messaging state.
func (e *Engine) Connectivity() (fleetUp, messagingUp bool) {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	return e.fleetConnected, e.msgConnected
}

// Accessors
func (e *Engine) AppConfig() *config.Config { return e.cfg }
func (e *Engine) DB() *store.DB { return e.db }
func (e *Engine) State() *sharedstate.State { return e.state }
func (e *Engine) Fleet() fleet.Backend { return e.fleet }
func (e *Engine) MsgClient() *messaging.Client { return e.msgClient }
func (e *Engine) Ledger() *inventory.Ledger { return e.ledger }
func (e *Engine) Orders() *orders.Book { return e.book }
func (e *Engine) Pipeline() *pipeline.Pipeline { return e.pipe }
func (e *Engine) Pool() *workers.Pool { return e.pool }
func (e *Engine) Server() *service.Server { return e.server }
func (e *Engine) Drainer() *messaging.OutboxDrainer { return e.drainer }
