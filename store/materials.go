package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Material struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BelowReorder reports whether stock has reached the reorder threshold.
func (m *Material) BelowReorder() bool {
	return m.CurrentStock.LessThanOrEqual(m.ReorderLevel)
}

const materialSelectCols = `id, name, category, unit, current_stock, reorder_level, unit_cost, created_at, updated_at`

func scanMaterial(row interface{ Scan(...any) error }) (*Material, error) {
	var m Material
	var createdAt, updatedAt any
	err := row.Scan(&m.ID, &m.Name, &m.Category, &m.Unit, &m.CurrentStock, &m.ReorderLevel, &m.UnitCost, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

func scanMaterials(rows *sql.Rows) ([]*Material, error) {
	var materials []*Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

// CreateMaterial inserts a material with zero stock. Opening stock goes
// through the ledger as an adjustment.
func (c *queries) CreateMaterial(ctx context.Context, m *Material) error {
	id, err := c.insertReturningID(ctx, `INSERT INTO materials (name, category, unit, current_stock, reorder_level, unit_cost) VALUES (?, ?, ?, 0, ?, ?)`,
		m.Name, m.Category, m.Unit, m.ReorderLevel, m.UnitCost)
	if err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	m.ID = id
	m.CurrentStock = decimal.Zero
	return nil
}

// UpdateMaterial edits descriptive fields and thresholds; current_stock is
// only written by SetMaterialStock.
func (c *queries) UpdateMaterial(ctx context.Context, m *Material) error {
	_, err := c.q.ExecContext(ctx, c.Q(`UPDATE materials SET name=?, category=?, unit=?, reorder_level=?, unit_cost=?, updated_at=datetime('now','localtime') WHERE id=?`),
		m.Name, m.Category, m.Unit, m.ReorderLevel, m.UnitCost, m.ID)
	return err
}

func (c *queries) SetMaterialStock(ctx context.Context, id int64, stock decimal.Decimal) error {
	_, err := c.q.ExecContext(ctx, c.Q(`UPDATE materials SET current_stock=?, updated_at=datetime('now','localtime') WHERE id=?`), stock, id)
	return err
}

func (c *queries) GetMaterial(ctx context.Context, id int64) (*Material, error) {
	row := c.q.QueryRowContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM materials WHERE id=?`, materialSelectCols)), id)
	return scanMaterial(row)
}

func (c *queries) GetMaterialForUpdate(ctx context.Context, id int64) (*Material, error) {
	row := c.q.QueryRowContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM materials WHERE id=?%s`, materialSelectCols, c.dialect.ForUpdate())), id)
	return scanMaterial(row)
}

func (c *queries) ListMaterials(ctx context.Context) ([]*Material, error) {
	rows, err := c.q.QueryContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM materials ORDER BY name`, materialSelectCols)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMaterials(rows)
}

// ListLowStockMaterials returns materials whose stock is at or below their
// reorder level. SQLite keeps decimals as text, so the comparison runs here.
func (c *queries) ListLowStockMaterials(ctx context.Context) ([]*Material, error) {
	all, err := c.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}
	var low []*Material
	for _, m := range all {
		if m.BelowReorder() {
			low = append(low, m)
		}
	}
	return low, nil
}
