package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS orders (
    number      INTEGER PRIMARY KEY,
    status      TEXT NOT NULL,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS order_lines (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    order_number  INTEGER NOT NULL REFERENCES orders(number) ON DELETE CASCADE,
    item_id       INTEGER NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    quantity      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_number);

CREATE TABLE IF NOT EXISTS order_history (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    order_number  INTEGER NOT NULL REFERENCES orders(number) ON DELETE CASCADE,
    old_status    TEXT NOT NULL DEFAULT '',
    new_status    TEXT NOT NULL,
    detail        TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_history(order_number);

CREATE TABLE IF NOT EXISTS dock_events (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    dock          INTEGER NOT NULL,
    event         TEXT NOT NULL,
    kind          TEXT NOT NULL DEFAULT '',
    order_number  INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT NOT NULL,
    payload     BLOB NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    station_id  TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    sent_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    entity_id   INTEGER NOT NULL DEFAULT 0,
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
`
