package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"order_number"`
	CustomerRef string          `json:"customer_ref"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	Total       decimal.Decimal `json:"total"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Notes       string          `json:"notes"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// StageLogEntry is one append-only row of an order's stage history.
type StageLogEntry struct {
	ID             int64     `json:"id"`
	OrderID        int64     `json:"order_id"`
	Stage          string    `json:"stage"`
	Note           string    `json:"note"`
	Actor          string    `json:"actor"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

const orderSelectCols = `id, order_number, customer_ref, status, priority, total, due_date, notes, version, created_at, updated_at, completed_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var o Order
	var dueDate, createdAt, updatedAt, completedAt any
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerRef, &o.Status, &o.Priority, &o.Total,
		&dueDate, &o.Notes, &o.Version, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	o.DueDate = parseTimePtr(dueDate)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	o.CompletedAt = parseTimePtr(completedAt)
	return &o, nil
}

func scanOrders(rows *sql.Rows) ([]*Order, error) {
	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (c *queries) CreateOrder(ctx context.Context, o *Order) error {
	if o.Version == 0 {
		o.Version = 1
	}
	id, err := c.insertReturningID(ctx, `INSERT INTO orders (order_number, customer_ref, status, priority, total, due_date, notes, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderNumber, o.CustomerRef, o.Status, o.Priority, o.Total, dateArg(o.DueDate), o.Notes, o.Version)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	o.ID = id
	return nil
}

func (c *queries) GetOrder(ctx context.Context, id int64) (*Order, error) {
	row := c.q.QueryRowContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM orders WHERE id=?`, orderSelectCols)), id)
	return scanOrder(row)
}

// GetOrderForUpdate reads an order and, on PostgreSQL, locks its row until
// the enclosing transaction ends.
func (c *queries) GetOrderForUpdate(ctx context.Context, id int64) (*Order, error) {
	row := c.q.QueryRowContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM orders WHERE id=?%s`, orderSelectCols, c.dialect.ForUpdate())), id)
	return scanOrder(row)
}

func (c *queries) ListOrders(ctx context.Context, status string, limit int) ([]*Order, error) {
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = c.q.QueryContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM orders WHERE status=? ORDER BY id DESC LIMIT ?`, orderSelectCols)), status, limit)
	} else {
		rows, err = c.q.QueryContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM orders ORDER BY id DESC LIMIT ?`, orderSelectCols)), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListOrdersByStatuses returns orders in any of statuses, oldest due date first.
func (c *queries) ListOrdersByStatuses(ctx context.Context, statuses []string) ([]*Order, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	in := "?"
	args := []any{statuses[0]}
	for _, s := range statuses[1:] {
		in += ", ?"
		args = append(args, s)
	}
	rows, err := c.q.QueryContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM orders WHERE status IN (%s) ORDER BY due_date IS NULL, due_date, id`, orderSelectCols, in)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// SetOrderStatus writes a new status and bumps the version. When
// expectedVersion is non-nil the write only happens if the stored version
// still matches; ok is false when it does not (or the order is gone).
func (c *queries) SetOrderStatus(ctx context.Context, id int64, status string, expectedVersion *int64) (ok bool, err error) {
	query := `UPDATE orders SET status=?, version=version+1, updated_at=datetime('now','localtime')`
	if status == "completed" {
		query += `, completed_at=datetime('now','localtime')`
	}
	query += ` WHERE id=?`
	args := []any{status, id}
	if expectedVersion != nil {
		query += ` AND version=?`
		args = append(args, *expectedVersion)
	}
	res, err := c.q.ExecContext(ctx, c.Q(query), args...)
	if err != nil {
		return false, fmt.Errorf("set order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteOrder removes an order with its stage log, tasks and quality checks.
// Movements keep their ledger rows with the order reference cleared.
func (c *queries) DeleteOrder(ctx context.Context, id int64) error {
	for _, stmt := range []string{
		`UPDATE inventory_movements SET order_id=NULL WHERE order_id=?`,
		`DELETE FROM stage_log WHERE order_id=?`,
		`DELETE FROM production_tasks WHERE order_id=?`,
		`DELETE FROM quality_checks WHERE order_id=?`,
		`DELETE FROM orders WHERE id=?`,
	} {
		if _, err := c.q.ExecContext(ctx, c.Q(stmt), id); err != nil {
			return fmt.Errorf("delete order %d: %w", id, err)
		}
	}
	return nil
}

func (c *queries) AppendStageLog(ctx context.Context, e *StageLogEntry) error {
	if e.Actor == "" {
		e.Actor = "system"
	}
	id, err := c.insertReturningID(ctx, `INSERT INTO stage_log (order_id, stage, note, actor, idempotency_key) VALUES (?, ?, ?, ?, ?)`,
		e.OrderID, e.Stage, e.Note, e.Actor, stringArg(e.IdempotencyKey))
	if err != nil {
		return fmt.Errorf("append stage log: %w", err)
	}
	e.ID = id
	return nil
}

const stageLogSelectCols = `id, order_id, stage, note, actor, idempotency_key, created_at`

func scanStageLogEntry(row interface{ Scan(...any) error }) (*StageLogEntry, error) {
	var e StageLogEntry
	var key sql.NullString
	var createdAt any
	if err := row.Scan(&e.ID, &e.OrderID, &e.Stage, &e.Note, &e.Actor, &key, &createdAt); err != nil {
		return nil, err
	}
	e.IdempotencyKey = key.String
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

// GetStageLogByKey finds the stage-log row written under an idempotency key.
func (c *queries) GetStageLogByKey(ctx context.Context, key string) (*StageLogEntry, error) {
	row := c.q.QueryRowContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM stage_log WHERE idempotency_key=?`, stageLogSelectCols)), key)
	return scanStageLogEntry(row)
}

func (c *queries) ListStageLog(ctx context.Context, orderID int64) ([]*StageLogEntry, error) {
	rows, err := c.q.QueryContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM stage_log WHERE order_id=? ORDER BY id`, stageLogSelectCols)), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*StageLogEntry
	for rows.Next() {
		e, err := scanStageLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
