package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ChecklistItem is one line of an inspection checklist.
type ChecklistItem struct {
	Item   string `json:"item"`
	Passed bool   `json:"passed"`
	Note   string `json:"notes,omitempty"`
}

type QualityCheck struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	Checklist     []ChecklistItem `json:"checklist"`
	OverallStatus string          `json:"overall_status"`
	Inspector     string          `json:"inspector"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (c *queries) InsertQualityCheck(ctx context.Context, qc *QualityCheck) error {
	if qc.Checklist == nil {
		qc.Checklist = []ChecklistItem{}
	}
	checklist, err := json.Marshal(qc.Checklist)
	if err != nil {
		return fmt.Errorf("marshal checklist: %w", err)
	}
	id, err := c.insertReturningID(ctx, `INSERT INTO quality_checks (order_id, checklist, overall_status, inspector, notes) VALUES (?, ?, ?, ?, ?)`,
		qc.OrderID, string(checklist), qc.OverallStatus, qc.Inspector, qc.Notes)
	if err != nil {
		return fmt.Errorf("insert quality check: %w", err)
	}
	qc.ID = id
	return nil
}

// ListQualityChecks returns an order's inspections oldest first.
func (c *queries) ListQualityChecks(ctx context.Context, orderID int64) ([]*QualityCheck, error) {
	rows, err := c.q.QueryContext(ctx, c.Q(`SELECT id, order_id, checklist, overall_status, inspector, notes, created_at FROM quality_checks WHERE order_id=? ORDER BY id`), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var checks []*QualityCheck
	for rows.Next() {
		var qc QualityCheck
		var checklist string
		var createdAt any
		if err := rows.Scan(&qc.ID, &qc.OrderID, &checklist, &qc.OverallStatus, &qc.Inspector, &qc.Notes, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(checklist), &qc.Checklist); err != nil {
			return nil, fmt.Errorf("decode checklist for check %d: %w", qc.ID, err)
		}
		qc.CreatedAt = parseTime(createdAt)
		checks = append(checks, &qc)
	}
	return checks, rows.Err()
}
