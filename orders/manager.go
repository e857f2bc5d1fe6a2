package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"boxworks/apperr"
	"boxworks/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Manager handles the order lifecycle state machine.
type Manager struct {
	db      *store.DB
	emitter EventEmitter
	log     logrus.FieldLogger
}

// NewManager creates an order manager.
func NewManager(db *store.DB, emitter EventEmitter, logger logrus.FieldLogger) *Manager {
	return &Manager{
		db:      db,
		emitter: emitter,
		log:     logger.WithField("module", "orders"),
	}
}

type CreateRequest struct {
	OrderNumber string
	CustomerRef string
	Priority    string
	Total       decimal.Decimal
	DueDate     *time.Time
	Notes       string
	Actor       string
}

// TransitionRequest moves an order to Target. ExpectedVersion, when set,
// must match the stored version. IdempotencyKey, when set, makes a retried
// request resolve to a Conflict instead of a second stage-log entry.
type TransitionRequest struct {
	OrderID         int64
	Target          string
	Note            string
	Actor           string
	ExpectedVersion *int64
	IdempotencyKey  string
}

// TotalScale is the stored precision of an order total.
const TotalScale = 2

var maxTotal = decimal.New(1, 12)

// NewOrderNumber generates a human order number such as GB-20260118-3f9a1c.
func NewOrderNumber(now time.Time) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("GB-%s-%s", now.Format("20060102"), id[:6])
}

// Create inserts a new order in pending status.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*store.Order, error) {
	if strings.TrimSpace(req.CustomerRef) == "" {
		return nil, apperr.New(apperr.InvalidArgument, "customer reference is required")
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !IsValidPriority(req.Priority) {
		return nil, apperr.New(apperr.InvalidArgument, "unknown priority %q", req.Priority)
	}
	if req.Total.IsNegative() {
		return nil, apperr.New(apperr.InvalidArgument, "total must not be negative")
	}
	if !req.Total.Equal(req.Total.Truncate(TotalScale)) || req.Total.GreaterThanOrEqual(maxTotal) {
		return nil, apperr.New(apperr.InvalidArgument, "total %s must fit %d decimal places", req.Total, TotalScale)
	}
	if req.OrderNumber == "" {
		req.OrderNumber = NewOrderNumber(time.Now())
	}

	o := &store.Order{
		OrderNumber: req.OrderNumber,
		CustomerRef: req.CustomerRef,
		Status:      StatusPending,
		Priority:    req.Priority,
		Total:       req.Total,
		DueDate:     req.DueDate,
		Notes:       req.Notes,
		Version:     1,
	}
	if err := m.db.CreateOrder(ctx, o); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperr.New(apperr.Conflict, "order number %q already exists", req.OrderNumber)
		}
		return nil, apperr.Wrap(err, "create order")
	}
	created, err := m.db.GetOrder(ctx, o.ID)
	if err != nil {
		return nil, apperr.Wrap(err, "reload order %d", o.ID)
	}
	m.emitter.EmitOrderCreated(created, req.Actor)
	return created, nil
}

// Transition validates and applies one edge of the lifecycle. The status
// write and the stage-log append commit together.
func (m *Manager) Transition(ctx context.Context, req TransitionRequest) (*store.Order, error) {
	if !IsValidStatus(req.Target) {
		return nil, apperr.New(apperr.InvalidArgument, "unknown order status %q", req.Target)
	}

	var oldStatus string
	var updated *store.Order
	err := m.db.WithTx(ctx, func(tx *store.Tx) error {
		if req.IdempotencyKey != "" {
			if err := replayedStageEntry(ctx, tx, req.IdempotencyKey); err != nil {
				return err
			}
		}

		order, err := lockOrder(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if req.ExpectedVersion != nil && *req.ExpectedVersion != order.Version {
			return apperr.WithExisting(order, "order %d is at version %d, not %d", order.ID, order.Version, *req.ExpectedVersion)
		}
		if !IsValidTransition(order.Status, req.Target) {
			if IsTerminal(order.Status) {
				return apperr.New(apperr.InvalidTransition, "order %d is %s and cannot move to %s", order.ID, order.Status, req.Target)
			}
			return apperr.New(apperr.InvalidTransition, "cannot move order %d from %s to %s (allowed: %s)",
				order.ID, order.Status, req.Target, strings.Join(AllowedTransitions(order.Status), ", "))
		}
		oldStatus = order.Status

		ok, err := tx.SetOrderStatus(ctx, order.ID, req.Target, &order.Version)
		if err != nil {
			return apperr.Wrap(err, "update order %d", order.ID)
		}
		if !ok {
			return apperr.WithExisting(order, "order %d changed concurrently", order.ID)
		}
		entry := &store.StageLogEntry{
			OrderID:        order.ID,
			Stage:          req.Target,
			Note:           req.Note,
			Actor:          req.Actor,
			IdempotencyKey: req.IdempotencyKey,
		}
		if err := tx.AppendStageLog(ctx, entry); err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.New(apperr.Conflict, "request %q already applied", req.IdempotencyKey)
			}
			return apperr.Wrap(err, "append stage log for order %d", order.ID)
		}

		updated, err = tx.GetOrder(ctx, order.ID)
		return apperr.Wrap(err, "reload order %d", order.ID)
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{"order_id": updated.ID, "from": oldStatus, "to": updated.Status}).Debug("order transitioned")
	m.emitter.EmitOrderStatusChanged(updated, oldStatus, updated.Status, req.Note, req.Actor)
	return updated, nil
}

// ForceComplete sets an order to completed without consulting the
// transition table. It runs inside the caller's transaction and is a no-op
// for an order that is already completed. The returned status is the one
// the order had before the call.
func (m *Manager) ForceComplete(ctx context.Context, tx *store.Tx, orderID int64, note, actor string) (order *store.Order, oldStatus string, changed bool, err error) {
	order, err = lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, "", false, err
	}
	oldStatus = order.Status
	if order.Status == StatusCompleted {
		return order, oldStatus, false, nil
	}
	if _, err := tx.SetOrderStatus(ctx, order.ID, StatusCompleted, nil); err != nil {
		return nil, "", false, apperr.Wrap(err, "complete order %d", order.ID)
	}
	if err := tx.AppendStageLog(ctx, &store.StageLogEntry{OrderID: order.ID, Stage: StatusCompleted, Note: note, Actor: actor}); err != nil {
		return nil, "", false, apperr.Wrap(err, "append stage log for order %d", order.ID)
	}
	order, err = tx.GetOrder(ctx, orderID)
	if err != nil {
		return nil, "", false, apperr.Wrap(err, "reload order %d", orderID)
	}
	return order, oldStatus, true, nil
}

// NotifyForcedCompletion emits the status change for a ForceComplete call
// once its transaction has committed.
func (m *Manager) NotifyForcedCompletion(order *store.Order, oldStatus, note, actor string) {
	m.log.WithFields(logrus.Fields{"order_id": order.ID, "from": oldStatus}).Info("order completed by quality check")
	m.emitter.EmitOrderStatusChanged(order, oldStatus, StatusCompleted, note, actor)
}

func (m *Manager) Get(ctx context.Context, id int64) (*store.Order, error) {
	o, err := m.db.GetOrder(ctx, id)
	if store.IsNotFound(err) {
		return nil, apperr.New(apperr.NotFound, "order %d not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "get order %d", id)
	}
	return o, nil
}

// List returns orders newest first, optionally filtered by status.
func (m *Manager) List(ctx context.Context, status string, limit int) ([]*store.Order, error) {
	if status != "" && !IsValidStatus(status) {
		return nil, apperr.New(apperr.InvalidArgument, "unknown order status %q", status)
	}
	if limit <= 0 {
		limit = 100
	}
	orders, err := m.db.ListOrders(ctx, status, limit)
	return orders, apperr.Wrap(err, "list orders")
}

// History returns the stage log of an order in the order it was written.
func (m *Manager) History(ctx context.Context, orderID int64) ([]*store.StageLogEntry, error) {
	if _, err := m.Get(ctx, orderID); err != nil {
		return nil, err
	}
	entries, err := m.db.ListStageLog(ctx, orderID)
	return entries, apperr.Wrap(err, "list stage log for order %d", orderID)
}

// Delete removes an order and everything that cascades with it.
func (m *Manager) Delete(ctx context.Context, orderID int64, actor string) error {
	var number string
	err := m.db.WithTx(ctx, func(tx *store.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		number = order.OrderNumber
		return apperr.Wrap(tx.DeleteOrder(ctx, orderID), "delete order %d", orderID)
	})
	if err != nil {
		return err
	}
	m.emitter.EmitOrderDeleted(orderID, number, actor)
	return nil
}

func lockOrder(ctx context.Context, tx *store.Tx, id int64) (*store.Order, error) {
	order, err := tx.GetOrderForUpdate(ctx, id)
	if store.IsNotFound(err) {
		return nil, apperr.New(apperr.NotFound, "order %d not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "get order %d", id)
	}
	return order, nil
}

// replayedStageEntry returns a Conflict carrying the current order when key
// was already used for a transition.
func replayedStageEntry(ctx context.Context, tx *store.Tx, key string) error {
	prior, err := tx.GetStageLogByKey(ctx, key)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return apperr.Wrap(err, "look up idempotency key")
	}
	order, err := tx.GetOrder(ctx, prior.OrderID)
	if err != nil {
		return apperr.Wrap(err, "get order %d", prior.OrderID)
	}
	return apperr.WithExisting(order, "request %q already applied to order %d", key, prior.OrderID)
}
