package store

import (
	"strings"
	"time"
)

// ActorSystem marks changes made by the controller itself.
const ActorSystem = "system"

// AuditEntry is one row of the audit log. Entity types in use are "order",
// "item" and "robot".
type AuditEntry struct {
	ID         int64     `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Action     string    `json:"action"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditFilter narrows ListAudit. An empty EntityType matches every entity;
// Limit <= 0 returns everything.
type AuditFilter struct {
	EntityType string
	EntityID   int64
	Limit      int
}

// AppendAudit records e. ID and CreatedAt are assigned by the database and
// an empty Actor is recorded as ActorSystem.
func (db *DB) AppendAudit(e AuditEntry) error {
	if e.Actor == "" {
		e.Actor = ActorSystem
	}
	_, err := db.Exec(db.Q(`INSERT INTO audit_log (entity_type, entity_id, action, old_value, new_value, actor) VALUES (?, ?, ?, ?, ?, ?)`),
		e.EntityType, e.EntityID, e.Action, e.OldValue, e.NewValue, e.Actor)
	return err
}

// ListAudit returns matching entries, newest first.
func (db *DB) ListAudit(f AuditFilter) ([]*AuditEntry, error) {
	var q strings.Builder
	q.WriteString(`SELECT id, entity_type, entity_id, action, old_value, new_value, actor, created_at FROM audit_log`)
	var args []any
	if f.EntityType != "" {
		q.WriteString(` WHERE entity_type=? AND entity_id=?`)
		args = append(args, f.EntityType, f.EntityID)
	}
	q.WriteString(` ORDER BY id DESC`)
	if f.Limit > 0 {
		q.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := db.Query(db.Q(q.String()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.OldValue, &e.NewValue, &e.Actor, at(&e.CreatedAt)); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
