// Package board projects open orders into stage columns and performs the
// stage moves requested from the Kanban view.
package board

import (
	"context"
	"strings"
	"time"

	"boxworks/apperr"
	"boxworks/orders"
	"boxworks/store"
)

// Task statuses
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskCancelled  = "cancelled"
)

func IsValidTaskStatus(s string) bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled:
		return true
	}
	return false
}

// EventEmitter is the interface the board uses to emit task events.
// Order moves are emitted by the order manager.
type EventEmitter interface {
	EmitTaskCreated(task *store.ProductionTask, actor string)
	EmitTaskStatusChanged(task *store.ProductionTask, oldStatus, newStatus, actor string)
}

type Card struct {
	*store.Order
	Tasks []*store.ProductionTask `json:"tasks"`
}

type Column struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Cards []*Card `json:"cards"`
}

type Board struct {
	Columns     []*Column `json:"columns"`
	GeneratedAt time.Time `json:"generated_at"`
}

// MoveRequest asks for an order to be placed in Target. Version and
// idempotency fields pass through to the order manager.
type MoveRequest struct {
	Target          string
	Note            string
	Actor           string
	ExpectedVersion *int64
	IdempotencyKey  string
}

type MoveResult struct {
	Order *store.Order `json:"order"`
	Moved bool         `json:"moved"`
}

type TaskRequest struct {
	OrderID  int64
	Title    string
	Assignee string
	Priority string
	DueDate  *time.Time
	Actor    string
}

type Coordinator struct {
	db      *store.DB
	orders  *orders.Manager
	emitter EventEmitter
}

func NewCoordinator(db *store.DB, mgr *orders.Manager, emitter EventEmitter) *Coordinator {
	return &Coordinator{db: db, orders: mgr, emitter: emitter}
}

// GetBoard reads every open order, grouped by stage in lifecycle order.
// Each column is present even when empty.
func (c *Coordinator) GetBoard(ctx context.Context) (*Board, error) {
	open, err := c.db.ListOrdersByStatuses(ctx, orders.OpenStatuses)
	if err != nil {
		return nil, apperr.Wrap(err, "list open orders")
	}
	ids := make([]int64, len(open))
	for i, o := range open {
		ids[i] = o.ID
	}
	tasks, err := c.db.ListTasksByOrders(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(err, "list board tasks")
	}

	b := &Board{GeneratedAt: time.Now()}
	byStage := make(map[string]*Column, len(orders.OpenStatuses))
	for _, stage := range orders.OpenStatuses {
		col := &Column{Stage: stage, Cards: []*Card{}}
		byStage[stage] = col
		b.Columns = append(b.Columns, col)
	}
	for _, o := range open {
		col := byStage[o.Status]
		t := tasks[o.ID]
		if t == nil {
			t = []*store.ProductionTask{}
		}
		col.Cards = append(col.Cards, &Card{Order: o, Tasks: t})
		col.Count++
	}
	return b, nil
}

// MoveOrder places an order in req.Target. Moving to the stage the order is
// already in does nothing and reports Moved false.
func (c *Coordinator) MoveOrder(ctx context.Context, orderID int64, req MoveRequest) (*MoveResult, error) {
	current, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status == req.Target {
		return &MoveResult{Order: current, Moved: false}, nil
	}

	updated, err := c.orders.Transition(ctx, orders.TransitionRequest{
		OrderID:         orderID,
		Target:          req.Target,
		Note:            req.Note,
		Actor:           req.Actor,
		ExpectedVersion: req.ExpectedVersion,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if apperr.Is(err, apperr.InvalidTransition) {
		// A concurrent move may have landed on the same stage first.
		if again, gerr := c.orders.Get(ctx, orderID); gerr == nil && again.Status == req.Target {
			return &MoveResult{Order: again, Moved: false}, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return &MoveResult{Order: updated, Moved: true}, nil
}

// MoveTask moves the order a task belongs to.
func (c *Coordinator) MoveTask(ctx context.Context, taskID int64, req MoveRequest) (*MoveResult, error) {
	task, err := c.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return c.MoveOrder(ctx, task.OrderID, req)
}

func (c *Coordinator) CreateTask(ctx context.Context, req TaskRequest) (*store.ProductionTask, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperr.New(apperr.InvalidArgument, "task title is required")
	}
	if req.Priority == "" {
		req.Priority = orders.PriorityNormal
	}
	if !orders.IsValidPriority(req.Priority) {
		return nil, apperr.New(apperr.InvalidArgument, "unknown priority %q", req.Priority)
	}
	if _, err := c.orders.Get(ctx, req.OrderID); err != nil {
		return nil, err
	}
	t := &store.ProductionTask{
		OrderID:  req.OrderID,
		Title:    req.Title,
		Status:   TaskPending,
		Assignee: req.Assignee,
		Priority: req.Priority,
		DueDate:  req.DueDate,
	}
	if err := c.db.CreateTask(ctx, t); err != nil {
		return nil, apperr.Wrap(err, "create task")
	}
	created, err := c.getTask(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	c.emitter.EmitTaskCreated(created, req.Actor)
	return created, nil
}

// UpdateTaskStatus sets a task's status. Tasks have no transition graph.
func (c *Coordinator) UpdateTaskStatus(ctx context.Context, taskID int64, status, actor string) (*store.ProductionTask, error) {
	if !IsValidTaskStatus(status) {
		return nil, apperr.New(apperr.InvalidArgument, "unknown task status %q", status)
	}
	task, err := c.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := c.db.UpdateTaskStatus(ctx, taskID, status); err != nil {
		return nil, apperr.Wrap(err, "update task %d", taskID)
	}
	updated, err := c.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	c.emitter.EmitTaskStatusChanged(updated, task.Status, status, actor)
	return updated, nil
}

// ListTasks returns the tasks of one order, or the most recent tasks across
// all orders when orderID is zero.
func (c *Coordinator) ListTasks(ctx context.Context, orderID int64, status string) ([]*store.ProductionTask, error) {
	if status != "" && !IsValidTaskStatus(status) {
		return nil, apperr.New(apperr.InvalidArgument, "unknown task status %q", status)
	}
	if orderID == 0 {
		tasks, err := c.db.ListTasks(ctx, status, 200)
		return tasks, apperr.Wrap(err, "list tasks")
	}
	if _, err := c.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	tasks, err := c.db.ListTasksByOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Wrap(err, "list tasks for order %d", orderID)
	}
	if status == "" {
		return tasks, nil
	}
	filtered := tasks[:0]
	for _, t := range tasks {
		if t.Status == status {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

func (c *Coordinator) getTask(ctx context.Context, id int64) (*store.ProductionTask, error) {
	t, err := c.db.GetTask(ctx, id)
	if store.IsNotFound(err) {
		return nil, apperr.New(apperr.NotFound, "task %d not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "get task %d", id)
	}
	return t, nil
}
