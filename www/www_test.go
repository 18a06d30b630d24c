package www

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"warehouse/config"
	"warehouse/engine"
	"warehouse/fleet/simfleet"
	"warehouse/orders"
	"warehouse/pipeline"
	"warehouse/sharedstate"
	"warehouse/store"
)

func newTestServer(t *testing.T) (*engine.Engine, *httptest.Server) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Warehouse.Robots = 1
	cfg.Shared.Docks = 2
	cfg.Warehouse.Inventory = []config.ItemConfig{
		{ID: 1, Name: "Widget", Quantity: 10, UnitCost: "3.00"},
		{ID: 2, Name: "Gadget", Quantity: 4},
	}

	db, err := store.Open(&config.DatabaseConfig{Driver: "sqlite", SQLite: config.SQLiteConfig{Path: ":memory:"}})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := sharedstate.NewMemory()
	eng, err := engine.New(engine.Config{
		AppConfig: cfg,
		DB:        db,
		State:     st,
		Fleet:     simfleet.New(simfleet.Config{}),
		LogFunc:   func(string, ...any) {},
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()
	deadline := time.Now().Add(3 * time.Second)
	for {
		if ok, _ := st.Bay.Initialized(context.Background()); ok && eng.Server().Addr() != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("engine did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	handler, stop := NewRouter(eng)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		stop()
		cancel()
		<-done
	})
	return eng, srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)
	var body map[string]any
	if code := getJSON(t, srv.URL+"/api/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" || body["fleet"] != true {
		t.Errorf("health = %v", body)
	}
}

func TestDocks(t *testing.T) {
	_, srv := newTestServer(t)
	var docks []sharedstate.Dock
	getJSON(t, srv.URL+"/api/docks", &docks)
	if len(docks) != 2 {
		t.Fatalf("docks = %d, want 2", len(docks))
	}
	if docks[0].Phase != sharedstate.PhaseWaiting || docks[0].Occupied {
		t.Errorf("dock 0 = %+v", docks[0])
	}
}

func TestInventory(t *testing.T) {
	_, srv := newTestServer(t)

	var items []map[string]any
	getJSON(t, srv.URL+"/api/inventory", &items)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}

	getJSON(t, srv.URL+"/api/inventory?q=Gad", &items)
	if len(items) != 1 || items[0]["name"] != "Gadget" {
		t.Errorf("search = %v", items)
	}

	var item map[string]any
	if code := getJSON(t, srv.URL+"/api/inventory/1", &item); code != http.StatusOK {
		t.Fatalf("get item status = %d", code)
	}
	if item["available"] != float64(10) {
		t.Errorf("item = %v", item)
	}
	if code := getJSON(t, srv.URL+"/api/inventory/99", nil); code != http.StatusNotFound {
		t.Errorf("missing item status = %d", code)
	}
	if code := getJSON(t, srv.URL+"/api/inventory/abc", nil); code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", code)
	}
}

func TestOrders(t *testing.T) {
	eng, srv := newTestServer(t)
	// no truck ever docks, so the order stays confirmed
	if _, err := eng.Ledger().Hold(1, 2); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	o, err := eng.Orders().Confirm([]orders.Line{{ItemID: 1, Name: "Widget", Quantity: 2}})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	var list []orders.Order
	getJSON(t, srv.URL+"/api/orders?status=confirmed", &list)
	if len(list) != 1 || list[0].Number != o.Number {
		t.Errorf("orders = %+v", list)
	}
	getJSON(t, srv.URL+"/api/orders?status=cancelled", &list)
	if len(list) != 0 {
		t.Errorf("cancelled orders = %+v", list)
	}

	var detail struct {
		Number  int64                 `json:"number"`
		Status  string                `json:"status"`
		History []*store.OrderHistory `json:"history"`
	}
	url := srv.URL + "/api/orders/" + strconv.FormatInt(o.Number, 10)
	if code := getJSON(t, url, &detail); code != http.StatusOK {
		t.Fatalf("order detail status = %d", code)
	}
	if detail.Number != o.Number || len(detail.History) != 1 || detail.History[0].NewStatus != "confirmed" {
		t.Errorf("detail = %+v", detail)
	}
	if code := getJSON(t, srv.URL+"/api/orders/4242", nil); code != http.StatusNotFound {
		t.Errorf("missing order status = %d", code)
	}

	var journal []*store.Order
	getJSON(t, srv.URL+"/api/orders?source=journal", &journal)
	if len(journal) != 1 {
		t.Errorf("journal orders = %d, want 1", len(journal))
	}
}

func TestQueues(t *testing.T) {
	_, srv := newTestServer(t)
	var depths pipeline.Depths
	if code := getJSON(t, srv.URL+"/api/queues", &depths); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if depths != (pipeline.Depths{}) {
		t.Errorf("depths = %+v, want empty", depths)
	}
}

func TestAddRobot(t *testing.T) {
	eng, srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/robots", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]int
	json.NewDecoder(resp.Body).Decode(&body)
	if body["id"] != 2 || eng.Pool().Size() != 2 {
		t.Errorf("body = %v, pool size = %d", body, eng.Pool().Size())
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		var robots []sharedstate.Robot
		getJSON(t, srv.URL+"/api/robots", &robots)
		if len(robots) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("robots = %+v, want 2", robots)
		}
		time.Sleep(10 * time.Millisecond)
	}

	var audit []*store.AuditEntry
	getJSON(t, srv.URL+"/api/audit?limit=5", &audit)
	found := false
	for _, a := range audit {
		if a.EntityType == "robot" && a.EntityID == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("no audit entry for robot 2 in %+v", audit)
	}

	getJSON(t, srv.URL+"/api/audit?entity=robot&id=2", &audit)
	if len(audit) != 1 || audit[0].Action != "added" {
		t.Errorf("robot 2 audit = %+v", audit)
	}
	if code := getJSON(t, srv.URL+"/api/audit?entity=robot", nil); code != http.StatusBadRequest {
		t.Errorf("missing id status = %d", code)
	}
}

func TestEventStream(t *testing.T) {
	eng, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// the client is registered once headers are flushed; wait for it
	deadline := time.Now().Add(3 * time.Second)
	for {
		var body map[string]any
		getJSON(t, srv.URL+"/api/health", &body)
		if body["sse_clients"] == float64(1) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("sse client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := eng.AddRobot(); err != nil {
		t.Fatalf("AddRobot: %v", err)
	}

	lines := make(chan string, 64)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	timeout := time.After(3 * time.Second)
	var event, id string
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed")
			}
			if strings.HasPrefix(line, "id: ") {
				id = strings.TrimPrefix(line, "id: ")
			}
			if strings.HasPrefix(line, "event: ") {
				event = strings.TrimPrefix(line, "event: ")
			}
			if strings.HasPrefix(line, "data: ") && event == "robot-update" {
				data := strings.TrimPrefix(line, "data: ")
				if !strings.Contains(data, `"type":"robot_added"`) || !strings.Contains(data, `"robot_id":2`) {
					t.Errorf("data = %s", data)
				}
				if n, err := strconv.ParseUint(id, 10, 64); err != nil || n == 0 {
					t.Errorf("event id = %q", id)
				}
				return
			}
		case <-timeout:
			t.Fatal("no robot-update event")
		}
	}
}
