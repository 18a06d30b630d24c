package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"warehouse/config"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInMemoryDatabase(t *testing.T) {
	db, err := Open(&config.DatabaseConfig{Driver: "sqlite", SQLite: config.SQLiteConfig{Path: ":memory:"}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := db.AppendAudit(AuditEntry{EntityType: "order", EntityID: 1, Action: "confirmed", NewValue: "confirmed"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, err := db.ListAudit(AuditFilter{Limit: 10})
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %d, err = %v", len(entries), err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := Open(&config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOrderJournal(t *testing.T) {
	db := testDB(t)

	o := &Order{Number: 1001, Status: "confirmed", Lines: []OrderLine{
		{ItemID: 7, Name: "Widget", Quantity: 4},
		{ItemID: 8, Name: "Gizmo", Quantity: 1},
	}}
	if err := db.RecordOrder(o); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := db.UpdateOrderStatus(1001, "confirmed", "loading", "assigned to dock 0"); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := db.GetOrder(1001)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "loading" {
		t.Errorf("Status = %q, want loading", got.Status)
	}
	if len(got.Lines) != 2 || got.Lines[0].Name != "Widget" || got.Lines[1].Quantity != 1 {
		t.Errorf("Lines = %+v", got.Lines)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	hist, err := db.ListOrderHistory(1001)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history len = %d, want 2", len(hist))
	}
	if hist[1].OldStatus != "confirmed" || hist[1].NewStatus != "loading" || hist[1].Detail != "assigned to dock 0" {
		t.Errorf("history[1] = %+v", hist[1])
	}

	list, err := db.ListOrders(10)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %d, err = %v", len(list), err)
	}
}

func TestUnknownOrder(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetOrder(42); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("get err = %v, want ErrOrderNotFound", err)
	}
	if err := db.UpdateOrderStatus(42, "confirmed", "cancelled", ""); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("update err = %v, want ErrOrderNotFound", err)
	}
}

func TestDockEvents(t *testing.T) {
	db := testDB(t)
	db.RecordDockEvent(0, "docked", "delivery", 0)
	db.RecordDockEvent(0, "assigned", "delivery", 1001)
	db.RecordDockEvent(0, "done", "", 0)

	events, err := db.ListDockEvents(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Event != "done" || events[1].OrderNumber != 1001 {
		t.Errorf("events = %+v %+v", events[0], events[1])
	}
}

func TestAuditLog(t *testing.T) {
	db := testDB(t)
	db.AppendAudit(AuditEntry{EntityType: "order", EntityID: 1001, Action: "status", OldValue: "confirmed", NewValue: "loading"})
	db.AppendAudit(AuditEntry{EntityType: "item", EntityID: 7, Action: "low_stock", NewValue: "3"})
	db.AppendAudit(AuditEntry{EntityType: "order", EntityID: 1001, Action: "status", OldValue: "loading", NewValue: "enroute_to_delivery", Actor: "manager"})

	all, err := db.ListAudit(AuditFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].NewValue != "enroute_to_delivery" {
		t.Errorf("all = %d entries, first %+v", len(all), all[0])
	}

	if all[1].Actor != ActorSystem || all[0].Actor != "manager" {
		t.Errorf("actors = %q, %q", all[1].Actor, all[0].Actor)
	}
	if all[0].CreatedAt.IsZero() {
		t.Error("created_at not scanned")
	}

	order, err := db.ListAudit(AuditFilter{EntityType: "order", EntityID: 1001})
	if err != nil {
		t.Fatalf("entity: %v", err)
	}
	if len(order) != 2 {
		t.Errorf("order entries = %d, want 2", len(order))
	}

	latest, _ := db.ListAudit(AuditFilter{Limit: 1})
	if len(latest) != 1 {
		t.Errorf("limited entries = %d, want 1", len(latest))
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)
	db.EnqueueOutbox("warehouse.events", []byte(`{"a":1}`), "order.confirmed", "wh-1")
	db.EnqueueOutbox("warehouse.events", []byte(`{"a":2}`), "dock.done", "wh-1")

	msgs, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(msgs) != 2 || string(msgs[0].Payload) != `{"a":1}` || msgs[0].StationID != "wh-1" {
		t.Fatalf("msgs = %+v", msgs)
	}

	if err := db.IncrementOutboxRetries(msgs[1].ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := db.AckOutbox(msgs[0].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	msgs, _ = db.ListPendingOutbox(10)
	if len(msgs) != 1 || msgs[0].Retries != 1 {
		t.Errorf("after ack: %+v", msgs)
	}
	if n, _ := db.CountPendingOutbox(); n != 1 {
		t.Errorf("pending count = %d, want 1", n)
	}
}

func TestPostgresBind(t *testing.T) {
	cases := []struct{ in, want string }{
		{`UPDATE outbox SET retries=? WHERE id=?`, `UPDATE outbox SET retries=$1 WHERE id=$2`},
		{`SELECT 1 FROM audit_log WHERE action='why?' AND id=?`, `SELECT 1 FROM audit_log WHERE action='why?' AND id=$1`},
	}
	for _, c := range cases {
		if got := (postgresDialect{}).Bind(c.in); got != c.want {
			t.Errorf("Bind(%q) = %q", c.in, got)
		}
	}
	if got := (sqliteDialect{}).Bind(cases[0].in); got != cases[0].in {
		t.Errorf("sqlite Bind = %q", got)
	}
}

func TestTimestampScan(t *testing.T) {
	var ts time.Time
	if err := at(&ts).Scan("2026-03-04 05:06:07"); err != nil {
		t.Fatalf("scan text: %v", err)
	}
	if ts.Year() != 2026 || ts.Hour() != 5 {
		t.Errorf("text = %v", ts)
	}
	now := time.Now()
	at(&ts).Scan(now)
	if !ts.Equal(now) {
		t.Errorf("time = %v, want %v", ts, now)
	}
	at(&ts).Scan(nil)
	if !ts.IsZero() {
		t.Errorf("nil = %v", ts)
	}
	if err := at(&ts).Scan(42); err == nil {
		t.Error("int accepted")
	}
}
