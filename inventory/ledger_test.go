package inventory

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

type mockEmitter struct {
	mu        sync.Mutex
	lowStock  []int
	restocked []int
}

func (m *mockEmitter) EmitLowStock(itemID int, _ string, _ int) {
	m.mu.Lock()
	m.lowStock = append(m.lowStock, itemID)
	m.mu.Unlock()
}

func (m *mockEmitter) EmitRestocked(itemID int, _ string, _, _ int) {
	m.mu.Lock()
	m.restocked = append(m.restocked, itemID)
	m.mu.Unlock()
}

func testLedger(t *testing.T) (*Ledger, *mockEmitter) {
	t.Helper()
	em := &mockEmitter{}
	l := NewLedger(5, em)
	seed := []ItemEntry{
		{ID: 7, Name: "Widget", Available: 10, UnitCost: decimal.RequireFromString("2.50"), UnitWeight: 1.5, Shelves: []string{"A1"}},
		{ID: 9, Name: "Gadget", Available: 3},
		{ID: 12, Name: "Gadget XL", Available: 20},
	}
	for _, e := range seed {
		if err := l.Add(e); err != nil {
			t.Fatalf("seed %d: %v", e.ID, err)
		}
	}
	return l, em
}

func TestHoldMovesStock(t *testing.T) {
	l, _ := testLedger(t)

	e, err := l.Hold(7, 4)
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if e.Available != 6 || e.OnHold != 4 {
		t.Errorf("after hold: available=%d onHold=%d, want 6/4", e.Available, e.OnHold)
	}
}

func TestHoldInsufficientIsNoOp(t *testing.T) {
	l, _ := testLedger(t)

	_, err := l.Hold(7, 11)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	e, _ := l.Get(7)
	if e.Available != 10 || e.OnHold != 0 {
		t.Errorf("counters changed: %d/%d", e.Available, e.OnHold)
	}

	if _, err := l.Hold(404, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown item err = %v, want ErrNotFound", err)
	}
	if _, err := l.Hold(7, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("zero qty err = %v, want ErrInvalidQuantity", err)
	}
}

func TestReleaseRejectsExcess(t *testing.T) {
	l, _ := testLedger(t)
	l.Hold(7, 4)

	if _, err := l.Release(7, 5, 0); !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("release over hold: err = %v", err)
	}
	if _, err := l.Release(7, 0, 7); !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("release over available: err = %v", err)
	}
	e, _ := l.Get(7)
	if e.Available != 6 || e.OnHold != 4 {
		t.Errorf("rejected release mutated counters: %d/%d", e.Available, e.OnHold)
	}

	e, err := l.Release(7, 4, 1)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if e.Available != 5 || e.OnHold != 0 {
		t.Errorf("after release: %d/%d, want 5/0", e.Available, e.OnHold)
	}
}

func TestUnholdReturnsStock(t *testing.T) {
	l, _ := testLedger(t)
	l.Hold(7, 4)

	e, err := l.Unhold(7, 3)
	if err != nil {
		t.Fatalf("Unhold: %v", err)
	}
	if e.Available != 9 || e.OnHold != 1 {
		t.Errorf("after unhold: %d/%d, want 9/1", e.Available, e.OnHold)
	}
	if _, err := l.Unhold(7, 2); !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("unhold over hold: err = %v", err)
	}
}

func TestRestockCreatesEntry(t *testing.T) {
	l, em := testLedger(t)

	e, err := l.Restock(7, 5, "ignored")
	if err != nil {
		t.Fatalf("Restock: %v", err)
	}
	if e.Available != 15 || e.Name != "Widget" {
		t.Errorf("existing restock: %+v", e)
	}

	e, err = l.Restock(30, 8, "Sprocket")
	if err != nil {
		t.Fatalf("Restock new: %v", err)
	}
	if e.Name != "Sprocket" || e.Available != 8 || e.OnHold != 0 {
		t.Errorf("new entry: %+v", e)
	}
	if len(em.restocked) != 2 {
		t.Errorf("restocked events = %d, want 2", len(em.restocked))
	}
}

func TestLowStockWarning(t *testing.T) {
	l, em := testLedger(t)

	l.Hold(7, 4) // 6 left
	if len(em.lowStock) != 0 {
		t.Errorf("unexpected low stock event: %v", em.lowStock)
	}
	l.Hold(7, 1) // 5 left
	if len(em.lowStock) != 1 || em.lowStock[0] != 7 {
		t.Errorf("lowStock = %v, want [7]", em.lowStock)
	}
}

func TestFind(t *testing.T) {
	l, _ := testLedger(t)

	got := l.Find("Widget", NoID)
	if len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("Find(Widget) = %+v, want the single Widget entry", got)
	}

	got = l.Find("Gadget", NoID)
	if len(got) != 2 || got[0].ID != 9 || got[1].ID != 12 {
		t.Errorf("Find(Gadget) = %+v, want ids 9 and 12", got)
	}

	got = l.Find("", 9)
	if len(got) != 1 || got[0].Name != "Gadget" {
		t.Errorf("Find by id = %+v", got)
	}

	if got := l.Find("Doohickey", NoID); len(got) != 0 {
		t.Errorf("unmatched search returned %+v", got)
	}
	if got := l.Find("", NoID); len(got) != 0 {
		t.Errorf("empty search returned %+v", got)
	}
	// invalid regexp falls back to a literal match
	if got := l.Find("Gadget (", NoID); len(got) != 0 {
		t.Errorf("literal fallback returned %+v", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	l, _ := testLedger(t)
	e, _ := l.Get(7)
	e.Available = 999
	e.Shelves[0] = "Z9"

	again, _ := l.Get(7)
	if again.Available != 10 || again.Shelves[0] != "A1" {
		t.Errorf("ledger entry mutated through copy: %+v", again)
	}
}

func TestCountersNeverNegativeUnderConcurrency(t *testing.T) {
	l, _ := testLedger(t)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 500; i++ {
				qty := r.Intn(4) + 1
				switch r.Intn(4) {
				case 0:
					l.Hold(7, qty)
				case 1:
					l.Unhold(7, qty)
				case 2:
					l.Release(7, r.Intn(3), r.Intn(2))
				case 3:
					l.Restock(7, 1, "")
				}
				e, _ := l.Get(7)
				if e.Available < 0 || e.OnHold < 0 {
					t.Errorf("negative counters: %d/%d", e.Available, e.OnHold)
					return
				}
			}
		}(int64(g))
	}
	wg.Wait()
}
