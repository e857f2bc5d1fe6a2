package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ReorderAlert struct {
	ID                   int64           `json:"id"`
	MaterialID           int64           `json:"material_id"`
	StockSnapshot        decimal.Decimal `json:"stock_snapshot"`
	ReorderLevelSnapshot decimal.Decimal `json:"reorder_level_snapshot"`
	Priority             string          `json:"priority"`
	Status               string          `json:"status"`
	Notes                string          `json:"notes"`
	CreatedBy            string          `json:"created_by"`
	AcknowledgedBy       string          `json:"acknowledged_by"`
	AcknowledgedAt       *time.Time      `json:"acknowledged_at,omitempty"`
	OrderedAt            *time.Time      `json:"ordered_at,omitempty"`
	ResolvedAt           *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	// Joined
	MaterialName string `json:"material_name,omitempty"`
}

const alertSelectCols = `a.id, a.material_id, a.stock_snapshot, a.reorder_level_snapshot, a.priority, a.status, a.notes, a.created_by, a.acknowledged_by, a.acknowledged_at, a.ordered_at, a.resolved_at, a.created_at, a.updated_at, m.name`

func scanAlert(row interface{ Scan(...any) error }) (*ReorderAlert, error) {
	var a ReorderAlert
	var ackAt, orderedAt, resolvedAt, createdAt, updatedAt any
	err := row.Scan(&a.ID, &a.MaterialID, &a.StockSnapshot, &a.ReorderLevelSnapshot, &a.Priority, &a.Status, &a.Notes,
		&a.CreatedBy, &a.AcknowledgedBy, &ackAt, &orderedAt, &resolvedAt, &createdAt, &updatedAt, &a.MaterialName)
	if err != nil {
		return nil, err
	}
	a.AcknowledgedAt = parseTimePtr(ackAt)
	a.OrderedAt = parseTimePtr(orderedAt)
	a.ResolvedAt = parseTimePtr(resolvedAt)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func (c *queries) CreateAlert(ctx context.Context, a *ReorderAlert) error {
	id, err := c.insertReturningID(ctx, `INSERT INTO reorder_alerts (material_id, stock_snapshot, reorder_level_snapshot, priority, status, notes, created_by) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.MaterialID, a.StockSnapshot, a.ReorderLevelSnapshot, a.Priority, a.Status, a.Notes, a.CreatedBy)
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	a.ID = id
	return nil
}

func (c *queries) GetAlert(ctx context.Context, id int64) (*ReorderAlert, error) {
	row := c.q.QueryRowContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM reorder_alerts a JOIN materials m ON a.material_id=m.id WHERE a.id=?`, alertSelectCols)), id)
	return scanAlert(row)
}

// GetActiveAlert returns the pending or acknowledged alert for a material.
func (c *queries) GetActiveAlert(ctx context.Context, materialID int64) (*ReorderAlert, error) {
	row := c.q.QueryRowContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM reorder_alerts a JOIN materials m ON a.material_id=m.id WHERE a.material_id=? AND a.status IN ('pending', 'acknowledged') ORDER BY a.id DESC LIMIT 1`, alertSelectCols)), materialID)
	return scanAlert(row)
}

// UpdateAlertStatus sets status and notes, stamping the timestamp that
// belongs to the new status. Acknowledgement also records the actor.
func (c *queries) UpdateAlertStatus(ctx context.Context, id int64, status, notes, actor string) error {
	var stamp string
	args := []any{status, notes}
	switch status {
	case "acknowledged":
		stamp = `, acknowledged_by=?, acknowledged_at=datetime('now','localtime')`
		args = append(args, actor)
	case "ordered":
		stamp = `, ordered_at=datetime('now','localtime')`
	case "resolved":
		stamp = `, resolved_at=datetime('now','localtime')`
	}
	args = append(args, id)
	_, err := c.q.ExecContext(ctx, c.Q(`UPDATE reorder_alerts SET status=?, notes=?, updated_at=datetime('now','localtime')`+stamp+` WHERE id=?`), args...)
	return err
}

func (c *queries) ListAlerts(ctx context.Context, status string, limit int) ([]*ReorderAlert, error) {
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = c.q.QueryContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM reorder_alerts a JOIN materials m ON a.material_id=m.id WHERE a.status=? ORDER BY a.id DESC LIMIT ?`, alertSelectCols)), status, limit)
	} else {
		rows, err = c.q.QueryContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM reorder_alerts a JOIN materials m ON a.material_id=m.id ORDER BY a.id DESC LIMIT ?`, alertSelectCols)), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var alerts []*ReorderAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
