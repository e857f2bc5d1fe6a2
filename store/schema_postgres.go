package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS orders (
    id            BIGSERIAL PRIMARY KEY,
    order_number  TEXT NOT NULL UNIQUE,
    customer_ref  TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'pending',
    priority      TEXT NOT NULL DEFAULT 'normal',
    total         NUMERIC(14,2) NOT NULL DEFAULT 0,
    due_date      DATE,
    notes         TEXT NOT NULL DEFAULT '',
    version       BIGINT NOT NULL DEFAULT 1,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

CREATE TABLE IF NOT EXISTS stage_log (
    id              BIGSERIAL PRIMARY KEY,
    order_id        BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    stage           TEXT NOT NULL,
    note            TEXT NOT NULL DEFAULT '',
    actor           TEXT NOT NULL DEFAULT 'system',
    idempotency_key TEXT UNIQUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_stage_log_order ON stage_log(order_id);

CREATE TABLE IF NOT EXISTS production_tasks (
    id             BIGSERIAL PRIMARY KEY,
    order_id       BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    title          TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'pending',
    assignee       TEXT NOT NULL DEFAULT '',
    priority       TEXT NOT NULL DEFAULT 'normal',
    due_date       DATE,
    quality_status TEXT NOT NULL DEFAULT '',
    quality_notes  TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_tasks_order ON production_tasks(order_id);

CREATE TABLE IF NOT EXISTS materials (
    id            BIGSERIAL PRIMARY KEY,
    name          TEXT NOT NULL UNIQUE,
    category      TEXT NOT NULL DEFAULT '',
    unit          TEXT NOT NULL DEFAULT 'ea',
    current_stock NUMERIC(14,3) NOT NULL DEFAULT 0,
    reorder_level NUMERIC(14,3) NOT NULL DEFAULT 0,
    unit_cost     NUMERIC(14,4) NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS inventory_movements (
    id              BIGSERIAL PRIMARY KEY,
    material_id     BIGINT NOT NULL REFERENCES materials(id),
    movement_type   TEXT NOT NULL,
    quantity        NUMERIC(14,3) NOT NULL,
    delta           NUMERIC(14,3) NOT NULL,
    stock_after     NUMERIC(14,3) NOT NULL,
    unit_cost       NUMERIC(14,4) NOT NULL DEFAULT 0,
    total_cost      NUMERIC(16,4) NOT NULL DEFAULT 0,
    order_id        BIGINT REFERENCES orders(id) ON DELETE SET NULL,
    notes           TEXT NOT NULL DEFAULT '',
    actor           TEXT NOT NULL DEFAULT 'system',
    idempotency_key TEXT UNIQUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_movements_material ON inventory_movements(material_id);

CREATE TABLE IF NOT EXISTS reorder_alerts (
    id                     BIGSERIAL PRIMARY KEY,
    material_id            BIGINT NOT NULL REFERENCES materials(id),
    stock_snapshot         NUMERIC(14,3) NOT NULL,
    reorder_level_snapshot NUMERIC(14,3) NOT NULL,
    priority               TEXT NOT NULL DEFAULT 'medium',
    status                 TEXT NOT NULL DEFAULT 'pending',
    notes                  TEXT NOT NULL DEFAULT '',
    created_by             TEXT NOT NULL DEFAULT 'system',
    acknowledged_by        TEXT NOT NULL DEFAULT '',
    acknowledged_at        TIMESTAMPTZ,
    ordered_at             TIMESTAMPTZ,
    resolved_at            TIMESTAMPTZ,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON reorder_alerts(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_one_active ON reorder_alerts(material_id) WHERE status IN ('pending', 'acknowledged');

CREATE TABLE IF NOT EXISTS quality_checks (
    id             BIGSERIAL PRIMARY KEY,
    order_id       BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    checklist      JSONB NOT NULL DEFAULT '[]',
    overall_status TEXT NOT NULL,
    inspector      TEXT NOT NULL DEFAULT '',
    notes          TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_quality_checks_order ON quality_checks(order_id);

CREATE TABLE IF NOT EXISTS outbox (
    id          BIGSERIAL PRIMARY KEY,
    topic       TEXT NOT NULL,
    payload     BYTEA NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
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

CREATE TABLE IF NOT EXISTS admin_users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'staff',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
