package store

import (
	"context"
	"time"
)

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

func (c *queries) AppendAudit(ctx context.Context, entityType string, entityID int64, action, oldValue, newValue, actor string) error {
	if actor == "" {
		actor = "system"
	}
	_, err := c.q.ExecContext(ctx, c.Q(`INSERT INTO audit_log (entity_type, entity_id, action, old_value, new_value, actor) VALUES (?, ?, ?, ?, ?, ?)`),
		entityType, entityID, action, oldValue, newValue, actor)
	return err
}

func (c *queries) ListAuditLog(ctx context.Context, limit int) ([]*AuditEntry, error) {
	return c.listAudit(ctx, `SELECT id, entity_type, entity_id, action, old_value, new_value, actor, created_at FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
}

func (c *queries) ListEntityAudit(ctx context.Context, entityType string, entityID int64) ([]*AuditEntry, error) {
	return c.listAudit(ctx, `SELECT id, entity_type, entity_id, action, old_value, new_value, actor, created_at FROM audit_log WHERE entity_type=? AND entity_id=? ORDER BY id DESC`, entityType, entityID)
}

func (c *queries) listAudit(ctx context.Context, query string, args ...any) ([]*AuditEntry, error) {
	rows, err := c.q.QueryContext(ctx, c.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var createdAt any
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.OldValue, &e.NewValue, &e.Actor, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
