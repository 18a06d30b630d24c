package store

import "time"

type DockEvent struct {
	ID          int64     `json:"id"`
	Dock        int       `json:"dock"`
	Event       string    `json:"event"`
	Kind        string    `json:"kind"`
	OrderNumber int64     `json:"order_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (db *DB) RecordDockEvent(dock int, event, kind string, orderNumber int64) error {
	_, err := db.Exec(db.Q(`INSERT INTO dock_events (dock, event, kind, order_number) VALUES (?, ?, ?, ?)`),
		dock, event, kind, orderNumber)
	return err
}

// ListDockEvents returns the most recent events first.
func (db *DB) ListDockEvents(limit int) ([]*DockEvent, error) {
	rows, err := db.Query(db.Q(`SELECT id, dock, event, kind, order_number, created_at FROM dock_events ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*DockEvent
	for rows.Next() {
		var e DockEvent
		if err := rows.Scan(&e.ID, &e.Dock, &e.Event, &e.Kind, &e.OrderNumber, at(&e.CreatedAt)); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
