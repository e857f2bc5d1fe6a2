package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS orders (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    order_number  TEXT NOT NULL UNIQUE,
    customer_ref  TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'pending',
    priority      TEXT NOT NULL DEFAULT 'normal',
    total         TEXT NOT NULL DEFAULT '0',
    due_date      TEXT,
    notes         TEXT NOT NULL DEFAULT '',
    version       INTEGER NOT NULL DEFAULT 1,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    completed_at  TEXT
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

CREATE TABLE IF NOT EXISTS stage_log (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id        INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    stage           TEXT NOT NULL,
    note            TEXT NOT NULL DEFAULT '',
    actor           TEXT NOT NULL DEFAULT 'system',
    idempotency_key TEXT UNIQUE,
    created_at      TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_stage_log_order ON stage_log(order_id);

CREATE TABLE IF NOT EXISTS production_tasks (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id       INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    title          TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'pending',
    assignee       TEXT NOT NULL DEFAULT '',
    priority       TEXT NOT NULL DEFAULT 'normal',
    due_date       TEXT,
    quality_status TEXT NOT NULL DEFAULT '',
    quality_notes  TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_tasks_order ON production_tasks(order_id);

CREATE TABLE IF NOT EXISTS materials (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    name          TEXT NOT NULL UNIQUE,
    category      TEXT NOT NULL DEFAULT '',
    unit          TEXT NOT NULL DEFAULT 'ea',
    current_stock TEXT NOT NULL DEFAULT '0',
    reorder_level TEXT NOT NULL DEFAULT '0',
    unit_cost     TEXT NOT NULL DEFAULT '0',
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);

CREATE TABLE IF NOT EXISTS inventory_movements (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    material_id     INTEGER NOT NULL REFERENCES materials(id),
    movement_type   TEXT NOT NULL,
    quantity        TEXT NOT NULL,
    delta           TEXT NOT NULL,
    stock_after     TEXT NOT NULL,
    unit_cost       TEXT NOT NULL DEFAULT '0',
    total_cost      TEXT NOT NULL DEFAULT '0',
    order_id        INTEGER REFERENCES orders(id) ON DELETE SET NULL,
    notes           TEXT NOT NULL DEFAULT '',
    actor           TEXT NOT NULL DEFAULT 'system',
    idempotency_key TEXT UNIQUE,
    created_at      TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_movements_material ON inventory_movements(material_id);

CREATE TABLE IF NOT EXISTS reorder_alerts (
    id                     INTEGER PRIMARY KEY AUTOINCREMENT,
    material_id            INTEGER NOT NULL REFERENCES materials(id),
    stock_snapshot         TEXT NOT NULL,
    reorder_level_snapshot TEXT NOT NULL,
    priority               TEXT NOT NULL DEFAULT 'medium',
    status                 TEXT NOT NULL DEFAULT 'pending',
    notes                  TEXT NOT NULL DEFAULT '',
    created_by             TEXT NOT NULL DEFAULT 'system',
    acknowledged_by        TEXT NOT NULL DEFAULT '',
    acknowledged_at        TEXT,
    ordered_at             TEXT,
    resolved_at            TEXT,
    created_at             TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at             TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON reorder_alerts(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_one_active ON reorder_alerts(material_id) WHERE status IN ('pending', 'acknowledged');

CREATE TABLE IF NOT EXISTS quality_checks (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id       INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    checklist      TEXT NOT NULL DEFAULT '[]',
    overall_status TEXT NOT NULL,
    inspector      TEXT NOT NULL DEFAULT '',
    notes          TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_quality_checks_order ON quality_checks(order_id);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT NOT NULL,
    payload     BLOB NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
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

CREATE TABLE IF NOT EXISTS admin_users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'staff',
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
`
