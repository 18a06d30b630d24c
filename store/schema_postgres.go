package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS orders (
    number      BIGINT PRIMARY KEY,
    status      TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS order_lines (
    id            BIGSERIAL PRIMARY KEY,
    order_number  BIGINT NOT NULL REFERENCES orders(number) ON DELETE CASCADE,
    item_id       INTEGER NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    quantity      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_number);

CREATE TABLE IF NOT EXISTS order_history (
    id            BIGSERIAL PRIMARY KEY,
    order_number  BIGINT NOT NULL REFERENCES orders(number) ON DELETE CASCADE,
    old_status    TEXT NOT NULL DEFAULT '',
    new_status    TEXT NOT NULL,
    detail        TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_history(order_number);

CREATE TABLE IF NOT EXISTS dock_events (
    id            BIGSERIAL PRIMARY KEY,
    dock          INTEGER NOT NULL,
    event         TEXT NOT NULL,
    kind          TEXT NOT NULL DEFAULT '',
    order_number  BIGINT NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS outbox (
    id          BIGSERIAL PRIMARY KEY,
    topic       TEXT NOT NULL,
    payload     BYTEA NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    station_id  TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_log (
    id          BIGSERIAL PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id   BIGINT NOT NULL DEFAULT 0,
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
`
