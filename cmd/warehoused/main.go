package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"warehouse/config"
	"warehouse/engine"
	"warehouse/fleet"
	"warehouse/fleet/httpfleet"
	"warehouse/fleet/simfleet"
	"warehouse/messaging"
	"warehouse/sharedstate"
	"warehouse/store"
	"warehouse/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "warehouse.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("warehoused", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("warehoused: database open (%s)", db.Driver())

	// Shared state
	var state *sharedstate.State
	switch cfg.Shared.Backend {
	case "memory":
		state = sharedstate.NewMemory()
		log.Printf("warehoused: shared state in memory, external trucks cannot attach")
	case "redis":
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Shared.Redis.Address,
			Password: cfg.Shared.Redis.Password,
			DB:       cfg.Shared.Redis.DB,
		})
		defer rc.Close()
		pctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rc.Ping(pctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("redis %s: %v", cfg.Shared.Redis.Address, err)
		}
		log.Printf("warehoused: redis connected (%s)", cfg.Shared.Redis.Address)
		state = sharedstate.NewRedis(rc, cfg.Shared.Redis.Prefix)
	default:
		log.Fatalf("unknown shared state backend: %s", cfg.Shared.Backend)
	}

	// Fleet backend
	var fleetBackend fleet.Backend
	switch cfg.Fleet.Backend {
	case "sim":
		fleetBackend = simfleet.New(simfleet.Config{PickTime: cfg.Fleet.PickTime, TravelTime: cfg.Fleet.TravelTime})
	case "http":
		fleetBackend = httpfleet.NewClient(cfg.Fleet.BaseURL, cfg.Fleet.Timeout)
	default:
		log.Fatalf("unknown fleet backend: %s", cfg.Fleet.Backend)
	}

	// Messaging client
	msgClient := messaging.NewClient(cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("warehoused: messaging connect failed (%v), events stay in the outbox", err)
	} else {
		log.Printf("warehoused: messaging connected (%s)", cfg.Messaging.Backend)
	}
	defer msgClient.Close()

	// Engine
	eng, err := engine.New(engine.Config{
		AppConfig: cfg,
		DB:        db,
		State:     state,
		Fleet:     fleetBackend,
		MsgClient: msgClient,
	})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engDone := make(chan error, 1)
	go func() { engDone <- eng.Run(ctx) }()

	// Web server
	var srv *http.Server
	stopWeb := func() {}
	if cfg.Web.Enabled {
		var handler http.Handler
		handler, stopWeb = www.NewRouter(eng)
		addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
		srv = &http.Server{Addr: addr, Handler: handler}
		go func() {
			log.Printf("warehoused: web server listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("web server: %v", err)
			}
		}()
	}

	log.Printf("warehoused: ready")

	select {
	case <-ctx.Done():
		log.Printf("warehoused: shutting down...")
		err = <-engDone
	case err = <-engDone:
	}
	stopWeb()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		srv.Shutdown(shutdownCtx)
		cancel()
	}
	if err != nil {
		log.Printf("warehoused: %v", err)
		os.Exit(1)
	}
	log.Printf("warehoused: stopped")
}
