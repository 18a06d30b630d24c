package inventory

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// NoID is passed to Find when only the name pattern should be matched.
const NoID = -1

// ItemEntry is one row of the ledger.
type ItemEntry struct {
	ID         int             `json:"id"`
	Name       string          `json:"name"`
	Available  int             `json:"available"`
	OnHold     int             `json:"on_hold"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	UnitWeight float64         `json:"unit_weight"`
	Shelves    []string        `json:"shelves"`
}

func (e *ItemEntry) clone() ItemEntry {
	c := *e
	c.Shelves = append([]string(nil), e.Shelves...)
	return c
}

// Ledger is the authoritative item table. Every counter change happens under mu.
type Ledger struct {
	mu       sync.Mutex
	items    map[int]*ItemEntry
	lowStock int
	emitter  EventEmitter
}

// NewLedger creates an empty ledger. Holds that leave an item at or below
// lowStock available units are reported to the emitter.
func NewLedger(lowStock int, emitter EventEmitter) *Ledger {
	return &Ledger{
		items:    make(map[int]*ItemEntry),
		lowStock: lowStock,
		emitter:  emitter,
	}
}

// Add inserts or replaces an entry. Used to seed the ledger at startup.
func (l *Ledger) Add(e ItemEntry) error {
	if e.Available < 0 || e.OnHold < 0 {
		return fmt.Errorf("item %d: %w", e.ID, ErrInvalidQuantity)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	c := e.clone()
	l.items[e.ID] = &c
	return nil
}

// Get returns a copy of one entry.
func (l *Ledger) Get(id int) (ItemEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.items[id]
	if !ok {
		return ItemEntry{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return e.clone(), nil
}

// List returns copies of all entries ordered by id.
func (l *Ledger) List() []ItemEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ItemEntry, 0, len(l.items))
	for _, e := range l.items {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Find returns entries whose id equals id or whose name matches pattern.
// An empty pattern matches no names and a negative id matches no ids.
// A pattern that is not a valid regular expression is matched literally.
func (l *Ledger) Find(pattern string, id int) []ItemEntry {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			re = regexp.MustCompile(regexp.QuoteMeta(pattern))
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ItemEntry
	for _, e := range l.items {
		if (id >= 0 && e.ID == id) || (re != nil && re.MatchString(e.Name)) {
			out = append(out, e.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Hold moves qty units from available to on-hold.
func (l *Ledger) Hold(id, qty int) (ItemEntry, error) {
	if qty <= 0 {
		return ItemEntry{}, ErrInvalidQuantity
	}
	l.mu.Lock()
	e, ok := l.items[id]
	if !ok {
		l.mu.Unlock()
		return ItemEntry{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if e.Available < qty {
		avail := e.Available
		l.mu.Unlock()
		return ItemEntry{}, fmt.Errorf("item %d: want %d, have %d: %w", id, qty, avail, ErrInsufficientStock)
	}
	e.Available -= qty
	e.OnHold += qty
	snap := e.clone()
	l.mu.Unlock()

	if snap.Available <= l.lowStock {
		log.Printf("inventory: low stock on item %d (%s): %d available", snap.ID, snap.Name, snap.Available)
		if l.emitter != nil {
			l.emitter.EmitLowStock(snap.ID, snap.Name, snap.Available)
		}
	}
	return snap, nil
}

// Unhold moves qty units from on-hold back to available.
func (l *Ledger) Unhold(id, qty int) (ItemEntry, error) {
	if qty <= 0 {
		return ItemEntry{}, ErrInvalidQuantity
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.items[id]
	if !ok {
		return ItemEntry{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if e.OnHold < qty {
		return ItemEntry{}, fmt.Errorf("item %d: unhold %d, on hold %d: %w", id, qty, e.OnHold, ErrInsufficientStock)
	}
	e.OnHold -= qty
	e.Available += qty
	return e.clone(), nil
}

// Release removes quantities from the on-hold and available counters, e.g. when
// held stock leaves on a truck. Either quantity may be zero. Nothing changes if
// either exceeds its counter.
func (l *Ledger) Release(id, fromHold, fromAvailable int) (ItemEntry, error) {
	if fromHold < 0 || fromAvailable < 0 {
		return ItemEntry{}, ErrInvalidQuantity
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.items[id]
	if !ok {
		return ItemEntry{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if fromHold > e.OnHold || fromAvailable > e.Available {
		return ItemEntry{}, fmt.Errorf("item %d: release %d/%d, have %d/%d: %w",
			id, fromHold, fromAvailable, e.OnHold, e.Available, ErrInsufficientStock)
	}
	e.OnHold -= fromHold
	e.Available -= fromAvailable
	return e.clone(), nil
}

// Restock adds qty available units, creating the entry if the id is unseen.
// name is only used for a new entry.
func (l *Ledger) Restock(id, qty int, name string) (ItemEntry, error) {
	if qty <= 0 {
		return ItemEntry{}, ErrInvalidQuantity
	}
	l.mu.Lock()
	e, ok := l.items[id]
	if !ok {
		e = &ItemEntry{ID: id, Name: name}
		l.items[id] = e
	}
	e.Available += qty
	snap := e.clone()
	l.mu.Unlock()

	if l.emitter != nil {
		l.emitter.EmitRestocked(snap.ID, snap.Name, qty, snap.Available)
	}
	return snap, nil
}
