// Package quality records inspections. A passed inspection completes its
// order regardless of the order's current stage.
package quality

import (
	"context"
	"strings"

	"boxworks/apperr"
	"boxworks/orders"
	"boxworks/store"

	"github.com/sirupsen/logrus"
)

// Overall statuses
const (
	StatusPassed      = "passed"
	StatusFailed      = "failed"
	StatusNeedsRework = "needs_rework"
	StatusPending     = "pending"
)

func IsValidStatus(s string) bool {
	switch s {
	case StatusPassed, StatusFailed, StatusNeedsRework, StatusPending:
		return true
	}
	return false
}

// EventEmitter is the interface the quality gate uses to emit events.
type EventEmitter interface {
	EmitQualityCheckRecorded(check *store.QualityCheck, actor string)
}

type CheckRequest struct {
	OrderID       int64
	Checklist     []store.ChecklistItem
	OverallStatus string
	Inspector     string
	Notes         string
}

type CheckResult struct {
	Check          *store.QualityCheck `json:"check"`
	Order          *store.Order        `json:"order"`
	OrderCompleted bool                `json:"order_completed"`
}

type Gate struct {
	db      *store.DB
	orders  *orders.Manager
	emitter EventEmitter
	log     logrus.FieldLogger
}

func NewGate(db *store.DB, mgr *orders.Manager, emitter EventEmitter, logger logrus.FieldLogger) *Gate {
	return &Gate{db: db, orders: mgr, emitter: emitter, log: logger.WithField("module", "quality")}
}

// RecordCheck stores an inspection. The check, the task annotations and a
// forced completion on a pass commit together.
func (g *Gate) RecordCheck(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	if !IsValidStatus(req.OverallStatus) {
		return nil, apperr.New(apperr.InvalidArgument, "unknown overall status %q", req.OverallStatus)
	}
	for i, item := range req.Checklist {
		if strings.TrimSpace(item.Item) == "" {
			return nil, apperr.New(apperr.InvalidArgument, "checklist item %d has no description", i)
		}
	}
	if req.Inspector == "" {
		req.Inspector = "system"
	}

	var res CheckResult
	var oldStatus string
	err := g.db.WithTx(ctx, func(tx *store.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, req.OrderID)
		if store.IsNotFound(err) {
			return apperr.New(apperr.NotFound, "order %d not found", req.OrderID)
		}
		if err != nil {
			return apperr.Wrap(err, "get order %d", req.OrderID)
		}

		qc := &store.QualityCheck{
			OrderID:       order.ID,
			Checklist:     req.Checklist,
			OverallStatus: req.OverallStatus,
			Inspector:     req.Inspector,
			Notes:         req.Notes,
		}
		if err := tx.InsertQualityCheck(ctx, qc); err != nil {
			return apperr.Wrap(err, "insert quality check")
		}
		if err := tx.AnnotateOrderTasksQuality(ctx, order.ID, req.OverallStatus, req.Notes); err != nil {
			return apperr.Wrap(err, "annotate tasks of order %d", order.ID)
		}
		res.Check = qc
		res.Order = order

		if req.OverallStatus != StatusPassed {
			return nil
		}
		note := "quality check passed"
		if req.Notes != "" {
			note += ": " + req.Notes
		}
		completed, old, changed, err := g.orders.ForceComplete(ctx, tx, order.ID, note, req.Inspector)
		if err != nil {
			return err
		}
		res.Order = completed
		res.OrderCompleted = changed
		oldStatus = old
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"order_id": req.OrderID,
		"check_id": res.Check.ID,
		"status":   req.OverallStatus,
	}).Info("quality check recorded")
	g.emitter.EmitQualityCheckRecorded(res.Check, req.Inspector)
	if res.OrderCompleted {
		g.orders.NotifyForcedCompletion(res.Order, oldStatus, "quality check passed", req.Inspector)
	}
	return &res, nil
}

// ListChecks returns an order's inspections oldest first.
func (g *Gate) ListChecks(ctx context.Context, orderID int64) ([]*store.QualityCheck, error) {
	if _, err := g.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	checks, err := g.db.ListQualityChecks(ctx, orderID)
	return checks, apperr.Wrap(err, "list quality checks for order %d", orderID)
}
