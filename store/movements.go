package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Movement is an append-only inventory ledger row. Delta is the signed
// change it applied to the material's stock; StockAfter the level it left.
type Movement struct {
	ID             int64           `json:"id"`
	MaterialID     int64           `json:"material_id"`
	Type           string          `json:"type"`
	Quantity       decimal.Decimal `json:"quantity"`
	Delta          decimal.Decimal `json:"delta"`
	StockAfter     decimal.Decimal `json:"stock_after"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	OrderID        *int64          `json:"order_id,omitempty"`
	Notes          string          `json:"notes"`
	Actor          string          `json:"actor"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

const movementSelectCols = `id, material_id, movement_type, quantity, delta, stock_after, unit_cost, total_cost, order_id, notes, actor, idempotency_key, created_at`

func scanMovement(row interface{ Scan(...any) error }) (*Movement, error) {
	var m Movement
	var orderID sql.NullInt64
	var key sql.NullString
	var createdAt any
	err := row.Scan(&m.ID, &m.MaterialID, &m.Type, &m.Quantity, &m.Delta, &m.StockAfter, &m.UnitCost, &m.TotalCost,
		&orderID, &m.Notes, &m.Actor, &key, &createdAt)
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		m.OrderID = &orderID.Int64
	}
	m.IdempotencyKey = key.String
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

func (c *queries) InsertMovement(ctx context.Context, m *Movement) error {
	if m.Actor == "" {
		m.Actor = "system"
	}
	id, err := c.insertReturningID(ctx, `INSERT INTO inventory_movements (material_id, movement_type, quantity, delta, stock_after, unit_cost, total_cost, order_id, notes, actor, idempotency_key) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MaterialID, m.Type, m.Quantity, m.Delta, m.StockAfter, m.UnitCost, m.TotalCost,
		int64Arg(m.OrderID), m.Notes, m.Actor, stringArg(m.IdempotencyKey))
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	m.ID = id
	return nil
}

func (c *queries) GetMovementByKey(ctx context.Context, key string) (*Movement, error) {
	row := c.q.QueryRowContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM inventory_movements WHERE idempotency_key=?`, movementSelectCols)), key)
	return scanMovement(row)
}

// ListMovements returns a material's ledger newest first. limit <= 0 returns all rows.
func (c *queries) ListMovements(ctx context.Context, materialID int64, limit int) ([]*Movement, error) {
	query := fmt.Sprintf(`SELECT %s FROM inventory_movements WHERE material_id=? ORDER BY id DESC`, movementSelectCols)
	args := []any{materialID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := c.q.QueryContext(ctx, c.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []*Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
