package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type OrderLine struct {
	ItemID   int    `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type Order struct {
	Number    int64       `json:"number"`
	Status    string      `json:"status"`
	Lines     []OrderLine `json:"lines"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type OrderHistory struct {
	ID          int64     `json:"id"`
	OrderNumber int64     `json:"order_number"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	Detail      string    `json:"detail"`
	CreatedAt   time.Time `json:"created_at"`
}

var ErrOrderNotFound = errors.New("order not in journal")

// RecordOrder journals a newly confirmed order and its first history row.
func (db *DB) RecordOrder(o *Order) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(db.Q(`INSERT INTO orders (number, status) VALUES (?, ?)`), o.Number, o.Status); err != nil {
		return fmt.Errorf("insert order %d: %w", o.Number, err)
	}
	for _, l := range o.Lines {
		if _, err := tx.Exec(db.Q(`INSERT INTO order_lines (order_number, item_id, name, quantity) VALUES (?, ?, ?, ?)`),
			o.Number, l.ItemID, l.Name, l.Quantity); err != nil {
			return fmt.Errorf("insert order %d line: %w", o.Number, err)
		}
	}
	if _, err := tx.Exec(db.Q(`INSERT INTO order_history (order_number, old_status, new_status, detail) VALUES (?, '', ?, 'confirmed')`),
		o.Number, o.Status); err != nil {
		return fmt.Errorf("insert order %d history: %w", o.Number, err)
	}
	return tx.Commit()
}

// UpdateOrderStatus journals a status change.
func (db *DB) UpdateOrderStatus(number int64, oldStatus, newStatus, detail string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(db.Q(`UPDATE orders SET status=?, updated_at=`+db.dialect.Now()+` WHERE number=?`), newStatus, number)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %d: %w", number, ErrOrderNotFound)
	}
	if _, err := tx.Exec(db.Q(`INSERT INTO order_history (order_number, old_status, new_status, detail) VALUES (?, ?, ?, ?)`),
		number, oldStatus, newStatus, detail); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) GetOrder(number int64) (*Order, error) {
	var o Order
	err := db.QueryRow(db.Q(`SELECT number, status, created_at, updated_at FROM orders WHERE number=?`), number).
		Scan(&o.Number, &o.Status, at(&o.CreatedAt), at(&o.UpdatedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", number, ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}
	o.Lines, err = db.orderLines(number)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns the most recent orders first, without lines.
func (db *DB) ListOrders(limit int) ([]*Order, error) {
	rows, err := db.Query(db.Q(`SELECT number, status, created_at, updated_at FROM orders ORDER BY number DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.Number, &o.Status, at(&o.CreatedAt), at(&o.UpdatedAt)); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (db *DB) orderLines(number int64) ([]OrderLine, error) {
	rows, err := db.Query(db.Q(`SELECT item_id, name, quantity FROM order_lines WHERE order_number=? ORDER BY id`), number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ItemID, &l.Name, &l.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (db *DB) ListOrderHistory(number int64) ([]*OrderHistory, error) {
	rows, err := db.Query(db.Q(`SELECT id, order_number, old_status, new_status, detail, created_at FROM order_history WHERE order_number=? ORDER BY id`), number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*OrderHistory
	for rows.Next() {
		var h OrderHistory
		if err := rows.Scan(&h.ID, &h.OrderNumber, &h.OldStatus, &h.NewStatus, &h.Detail, at(&h.CreatedAt)); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}
