package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type ProductionTask struct {
	ID            int64      `json:"id"`
	OrderID       int64      `json:"order_id"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	Assignee      string     `json:"assignee"`
	Priority      string     `json:"priority"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	QualityStatus string     `json:"quality_status"`
	QualityNotes  string     `json:"quality_notes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

const taskSelectCols = `id, order_id, title, status, assignee, priority, due_date, quality_status, quality_notes, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*ProductionTask, error) {
	var t ProductionTask
	var dueDate, createdAt, updatedAt any
	err := row.Scan(&t.ID, &t.OrderID, &t.Title, &t.Status, &t.Assignee, &t.Priority, &dueDate,
		&t.QualityStatus, &t.QualityNotes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.DueDate = parseTimePtr(dueDate)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*ProductionTask, error) {
	var tasks []*ProductionTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (c *queries) CreateTask(ctx context.Context, t *ProductionTask) error {
	id, err := c.insertReturningID(ctx, `INSERT INTO production_tasks (order_id, title, status, assignee, priority, due_date) VALUES (?, ?, ?, ?, ?, ?)`,
		t.OrderID, t.Title, t.Status, t.Assignee, t.Priority, dateArg(t.DueDate))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	t.ID = id
	return nil
}

func (c *queries) GetTask(ctx context.Context, id int64) (*ProductionTask, error) {
	row := c.q.QueryRowContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM production_tasks WHERE id=?`, taskSelectCols)), id)
	return scanTask(row)
}

func (c *queries) UpdateTaskStatus(ctx context.Context, id int64, status string) error {
	_, err := c.q.ExecContext(ctx, c.Q(`UPDATE production_tasks SET status=?, updated_at=datetime('now','localtime') WHERE id=?`), status, id)
	return err
}

// AnnotateOrderTasksQuality stamps the latest inspection outcome on every task of an order.
func (c *queries) AnnotateOrderTasksQuality(ctx context.Context, orderID int64, qualityStatus, notes string) error {
	_, err := c.q.ExecContext(ctx, c.Q(`UPDATE production_tasks SET quality_status=?, quality_notes=?, updated_at=datetime('now','localtime') WHERE order_id=?`),
		qualityStatus, notes, orderID)
	return err
}

func (c *queries) ListTasksByOrder(ctx context.Context, orderID int64) ([]*ProductionTask, error) {
	rows, err := c.q.QueryContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM production_tasks WHERE order_id=? ORDER BY id`, taskSelectCols)), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (c *queries) ListTasks(ctx context.Context, status string, limit int) ([]*ProductionTask, error) {
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = c.q.QueryContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM production_tasks WHERE status=? ORDER BY id DESC LIMIT ?`, taskSelectCols)), status, limit)
	} else {
		rows, err = c.q.QueryContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM production_tasks ORDER BY id DESC LIMIT ?`, taskSelectCols)), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListTasksByOrders returns the tasks of every listed order, grouped by order id.
func (c *queries) ListTasksByOrders(ctx context.Context, orderIDs []int64) (map[int64][]*ProductionTask, error) {
	out := make(map[int64][]*ProductionTask, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	in := "?" + strings.Repeat(", ?", len(orderIDs)-1)
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	rows, err := c.q.QueryContext(ctx, c.Q(fmt.Sprintf(`SELECT %s FROM production_tasks WHERE order_id IN (%s) ORDER BY id`, taskSelectCols, in)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		out[t.OrderID] = append(out[t.OrderID], t)
	}
	return out, nil
}
