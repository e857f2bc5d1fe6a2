// Package alerts raises and tracks reorder alerts, keeping at most one
// active (pending or acknowledged) alert per material.
package alerts

import (
	"context"
	"fmt"

	"boxworks/apperr"
	"boxworks/store"

	"github.com/sirupsen/logrus"
)

// Alert statuses
const (
	StatusPending      = "pending"
	StatusAcknowledged = "acknowledged"
	StatusOrdered      = "ordered"
	StatusResolved     = "resolved"
)

// Alert priorities
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusAcknowledged, StatusOrdered, StatusResolved:
		return true
	}
	return false
}

// IsActive reports whether an alert in status s blocks a new alert for the same material.
func IsActive(s string) bool {
	return s == StatusPending || s == StatusAcknowledged
}

func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// EventEmitter is the interface the alerts package uses to emit events.
type EventEmitter interface {
	EmitAlertCreated(alert *store.ReorderAlert, actor string)
	EmitAlertStatusChanged(alert *store.ReorderAlert, oldStatus, newStatus, actor string)
}

// Locker serializes alert creation per material across processes. The
// transaction and the partial unique index remain the guard when no lock
// can be had.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type CreateRequest struct {
	MaterialID int64
	Priority   string
	Notes      string
	Actor      string
}

type Deduplicator struct {
	db              *store.DB
	emitter         EventEmitter
	locker          Locker
	defaultPriority string
	log             logrus.FieldLogger
}

// NewDeduplicator builds the alert service. locker may be nil.
func NewDeduplicator(db *store.DB, emitter EventEmitter, locker Locker, defaultPriority string, logger logrus.FieldLogger) *Deduplicator {
	if !IsValidPriority(defaultPriority) {
		defaultPriority = PriorityMedium
	}
	return &Deduplicator{
		db:              db,
		emitter:         emitter,
		locker:          locker,
		defaultPriority: defaultPriority,
		log:             logger.WithField("module", "alerts"),
	}
}

// Create raises an alert for a material, snapshotting its stock and reorder
// level. When an active alert already exists the result is a Conflict
// carrying that alert.
func (d *Deduplicator) Create(ctx context.Context, req CreateRequest) (*store.ReorderAlert, error) {
	if req.Priority == "" {
		req.Priority = d.defaultPriority
	}
	if !IsValidPriority(req.Priority) {
		return nil, apperr.New(apperr.InvalidArgument, "unknown alert priority %q", req.Priority)
	}
	if req.Actor == "" {
		req.Actor = "system"
	}

	if d.locker != nil {
		unlock, err := d.locker.Lock(ctx, fmt.Sprintf("boxworks:alert:material:%d", req.MaterialID))
		if err != nil {
			d.log.WithError(err).WithField("material_id", req.MaterialID).Warn("alert lock not obtained; relying on transaction")
		} else {
			defer unlock()
		}
	}

	var created *store.ReorderAlert
	err := d.db.WithTx(ctx, func(tx *store.Tx) error {
		material, err := tx.GetMaterialForUpdate(ctx, req.MaterialID)
		if store.IsNotFound(err) {
			return apperr.New(apperr.NotFound, "material %d not found", req.MaterialID)
		}
		if err != nil {
			return apperr.Wrap(err, "get material %d", req.MaterialID)
		}

		active, err := tx.GetActiveAlert(ctx, material.ID)
		if err == nil {
			return apperr.WithExisting(active, "material %d already has an active alert", material.ID)
		}
		if !store.IsNotFound(err) {
			return apperr.Wrap(err, "look up active alert for material %d", material.ID)
		}

		a := &store.ReorderAlert{
			MaterialID:           material.ID,
			StockSnapshot:        material.CurrentStock,
			ReorderLevelSnapshot: material.ReorderLevel,
			Priority:             req.Priority,
			Status:               StatusPending,
			Notes:                req.Notes,
			CreatedBy:            req.Actor,
		}
		if err := tx.CreateAlert(ctx, a); err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.New(apperr.Conflict, "material %d already has an active alert", material.ID)
			}
			return apperr.Wrap(err, "create alert")
		}
		created, err = tx.GetAlert(ctx, a.ID)
		return apperr.Wrap(err, "reload alert %d", a.ID)
	})
	if err != nil {
		return nil, d.attachActive(ctx, req.MaterialID, err)
	}

	d.log.WithFields(logrus.Fields{"alert_id": created.ID, "material_id": created.MaterialID}).Info("reorder alert raised")
	d.emitter.EmitAlertCreated(created, req.Actor)
	return created, nil
}

// attachActive fills in the existing alert on a Conflict raised by the
// unique index, where the transaction could not read it.
func (d *Deduplicator) attachActive(ctx context.Context, materialID int64, err error) error {
	if !apperr.Is(err, apperr.Conflict) || apperr.ExistingOf(err) != nil {
		return err
	}
	active, lerr := d.db.GetActiveAlert(ctx, materialID)
	if lerr != nil {
		return err
	}
	return apperr.WithExisting(active, "material %d already has an active alert", materialID)
}

// UpdateStatus moves an alert to any allowed status. Empty notes keep the
// current notes.
func (d *Deduplicator) UpdateStatus(ctx context.Context, id int64, status, notes, actor string) (*store.ReorderAlert, error) {
	if !IsValidStatus(status) {
		return nil, apperr.New(apperr.InvalidArgument, "unknown alert status %q", status)
	}
	if actor == "" {
		actor = "system"
	}
	current, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if notes == "" {
		notes = current.Notes
	}
	if err := d.db.UpdateAlertStatus(ctx, id, status, notes, actor); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, d.attachActive(ctx, current.MaterialID, apperr.New(apperr.Conflict, "material %d already has an active alert", current.MaterialID))
		}
		return nil, apperr.Wrap(err, "update alert %d", id)
	}
	updated, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d.emitter.EmitAlertStatusChanged(updated, current.Status, status, actor)
	return updated, nil
}

// RaiseIfLow raises an alert when the material is at or below its reorder
// level. An already active alert is returned with created false.
func (d *Deduplicator) RaiseIfLow(ctx context.Context, materialID int64, actor string) (alert *store.ReorderAlert, created bool, err error) {
	m, err := d.db.GetMaterial(ctx, materialID)
	if store.IsNotFound(err) {
		return nil, false, apperr.New(apperr.NotFound, "material %d not found", materialID)
	}
	if err != nil {
		return nil, false, apperr.Wrap(err, "get material %d", materialID)
	}
	if !m.BelowReorder() {
		return nil, false, nil
	}
	alert, err = d.Create(ctx, CreateRequest{
		MaterialID: materialID,
		Notes:      fmt.Sprintf("stock %s at or below reorder level %s", m.CurrentStock, m.ReorderLevel),
		Actor:      actor,
	})
	if apperr.Is(err, apperr.Conflict) {
		existing, _ := apperr.ExistingOf(err).(*store.ReorderAlert)
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return alert, true, nil
}

func (d *Deduplicator) Get(ctx context.Context, id int64) (*store.ReorderAlert, error) {
	a, err := d.db.GetAlert(ctx, id)
	if store.IsNotFound(err) {
		return nil, apperr.New(apperr.NotFound, "alert %d not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "get alert %d", id)
	}
	return a, nil
}

func (d *Deduplicator) List(ctx context.Context, status string, limit int) ([]*store.ReorderAlert, error) {
	if status != "" && !IsValidStatus(status) {
		return nil, apperr.New(apperr.InvalidArgument, "unknown alert status %q", status)
	}
	if limit <= 0 {
		limit = 100
	}
	alerts, err := d.db.ListAlerts(ctx, status, limit)
	return alerts, apperr.Wrap(err, "list alerts")
}
