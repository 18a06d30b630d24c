package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 52134 {
		t.Errorf("Server.Port = %d, want 52134", cfg.Server.Port)
	}
	if cfg.Shared.Docks != 3 {
		t.Errorf("Shared.Docks = %d, want 3", cfg.Shared.Docks)
	}
	if cfg.Warehouse.LowStock != 5 {
		t.Errorf("Warehouse.LowStock = %d, want 5", cfg.Warehouse.LowStock)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warehoused.yaml")
	data := `
shared:
  backend: memory
  docks: 9
warehouse:
  worker_idle: 10ms
  inventory:
    - id: 7
      name: Widget
      quantity: 10
      unit_cost: "2.50"
      shelves: [A1, B4]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Shared.Backend != "memory" {
		t.Errorf("Shared.Backend = %q, want memory", cfg.Shared.Backend)
	}
	if cfg.Shared.Docks != 9 {
		t.Errorf("Shared.Docks = %d, want 9", cfg.Shared.Docks)
	}
	if cfg.Warehouse.WorkerIdle != 10*time.Millisecond {
		t.Errorf("WorkerIdle = %v, want 10ms", cfg.Warehouse.WorkerIdle)
	}
	// untouched sections keep their defaults
	if cfg.Server.Port != 52134 {
		t.Errorf("Server.Port = %d, want 52134", cfg.Server.Port)
	}
	if len(cfg.Warehouse.Inventory) != 1 {
		t.Fatalf("inventory len = %d, want 1", len(cfg.Warehouse.Inventory))
	}
	item := cfg.Warehouse.Inventory[0]
	if item.ID != 7 || item.Name != "Widget" || item.Quantity != 10 || item.UnitCost != "2.50" {
		t.Errorf("item = %+v", item)
	}
	if len(item.Shelves) != 2 {
		t.Errorf("shelves = %v, want 2 entries", item.Shelves)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Defaults()
	cfg.Fleet.Backend = "http"
	cfg.Messaging.Backend = "kafka"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Fleet.Backend != "http" {
		t.Errorf("Fleet.Backend = %q, want http", got.Fleet.Backend)
	}
	if got.Messaging.Backend != "kafka" {
		t.Errorf("Messaging.Backend = %q, want kafka", got.Messaging.Backend)
	}
}
