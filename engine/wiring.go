package engine

import (
	"context"
	"fmt"
	"time"

	"boxworks/orders"
	"boxworks/protocol"
	"boxworks/store"
)

const handlerTimeout = 5 * time.Second

func (e *Engine) wireEventHandlers() {
	// Every domain event lands in the audit log
	e.Events.Subscribe(func(evt Event) {
		entry, ok := auditFor(evt)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		if err := e.db.AppendAudit(ctx, entry.EntityType, entry.EntityID, entry.Action, entry.OldValue, entry.NewValue, entry.Actor); err != nil {
			e.log.WithError(err).Warnf("audit %s", evt.Type)
		}
	})

	// Publish domain events through the outbox when a broker is configured
	if e.publishingEnabled() {
		e.Events.Subscribe(e.enqueueEvent)
	}

	// Low stock raises a reorder alert
	e.Events.SubscribeTypes(func(evt Event) {
		if !e.cfg.Inventory.AutoReorderAlerts {
			return
		}
		ev := evt.Payload.(MaterialEvent)
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		alert, created, err := e.alerts.RaiseIfLow(ctx, ev.Material.ID, "system")
		if err != nil {
			e.log.WithError(err).Warnf("auto reorder alert for material %d", ev.Material.ID)
			return
		}
		if created {
			e.log.Infof("raised reorder alert %d for %s (stock %s)", alert.ID, ev.Material.Name, ev.Material.CurrentStock)
		}
	}, EventStockLow)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(OrderEvent)
		if ev.NewStatus == orders.StatusCompleted {
			e.log.Infof("order %s completed", ev.Order.OrderNumber)
		}
	}, EventOrderStatusChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		e.log.Info(ev.Detail)
	}, EventMessagingConnected, EventMessagingDisconnected)
}

func (e *Engine) publishingEnabled() bool {
	b := e.cfg.Messaging.Backend
	return b != "" && b != "none"
}

func (e *Engine) enqueueEvent(evt Event) {
	msgType, corID, payload, ok := envelopeFor(evt)
	if !ok {
		return
	}
	src := protocol.Address{Role: protocol.RoleService, Node: e.cfg.Messaging.Source}
	dst := protocol.Address{Role: protocol.RoleSubscriber, Node: "*"}
	env, err := protocol.NewCorrelated(msgType, src, dst, corID, payload)
	if err != nil {
		e.log.WithError(err).Errorf("build %s envelope", msgType)
		return
	}
	data, err := env.Encode()
	if err != nil {
		e.log.WithError(err).Errorf("encode %s envelope", msgType)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := e.db.EnqueueOutbox(ctx, e.cfg.Messaging.EventsTopic, data, msgType); err != nil {
		e.log.WithError(err).Errorf("enqueue %s", msgType)
	}
}

// auditFor maps a bus event to its audit row.
func auditFor(evt Event) (*store.AuditEntry, bool) {
	switch ev := evt.Payload.(type) {
	case OrderEvent:
		action := "status_changed"
		if evt.Type == EventOrderCreated {
			action = "created"
		}
		return &store.AuditEntry{EntityType: "order", EntityID: ev.Order.ID, Action: action,
			OldValue: ev.OldStatus, NewValue: ev.NewStatus, Actor: ev.Actor}, true
	case OrderDeletedEvent:
		return &store.AuditEntry{EntityType: "order", EntityID: ev.OrderID, Action: "deleted",
			OldValue: ev.OrderNumber, Actor: ev.Actor}, true
	case TaskEvent:
		action := "status_changed"
		if evt.Type == EventTaskCreated {
			action = "created"
		}
		return &store.AuditEntry{EntityType: "task", EntityID: ev.Task.ID, Action: action,
			OldValue: ev.OldStatus, NewValue: ev.NewStatus, Actor: ev.Actor}, true
	case MaterialEvent:
		var action string
		switch evt.Type {
		case EventMaterialCreated:
			action = "created"
		case EventMaterialUpdated:
			action = "updated"
		case EventStockLow:
			action = "stock_low"
		default:
			return nil, false
		}
		return &store.AuditEntry{EntityType: "material", EntityID: ev.Material.ID, Action: action,
			NewValue: ev.Material.CurrentStock.String(), Actor: ev.Actor}, true
	case MovementEvent:
		before := ev.Movement.StockAfter.Sub(ev.Movement.Delta)
		return &store.AuditEntry{EntityType: "material", EntityID: ev.Movement.MaterialID, Action: ev.Movement.Type,
			OldValue: before.String(), NewValue: ev.Movement.StockAfter.String(), Actor: ev.Actor}, true
	case AlertEvent:
		action := "status_changed"
		if evt.Type == EventAlertCreated {
			action = "created"
		}
		return &store.AuditEntry{EntityType: "alert", EntityID: ev.Alert.ID, Action: action,
			OldValue: ev.OldStatus, NewValue: ev.NewStatus, Actor: ev.Actor}, true
	case QualityCheckEvent:
		return &store.AuditEntry{EntityType: "order", EntityID: ev.Check.OrderID, Action: "quality_check",
			NewValue: fmt.Sprintf("%s (check %d)", ev.Check.OverallStatus, ev.Check.ID), Actor: ev.Actor}, true
	}
	return nil, false
}

// envelopeFor maps a bus event to its wire type, correlation key and payload.
// Events about one order or one material share a correlation key.
func envelopeFor(evt Event) (msgType, corID string, payload any, ok bool) {
	switch ev := evt.Payload.(type) {
	case OrderEvent:
		msgType = protocol.TypeOrderStatusChanged
		if evt.Type == EventOrderCreated {
			msgType = protocol.TypeOrderCreated
		}
		return msgType, orderKey(ev.Order.ID), &protocol.OrderEvent{
			OrderID:     ev.Order.ID,
			OrderNumber: ev.Order.OrderNumber,
			CustomerRef: ev.Order.CustomerRef,
			OldStatus:   ev.OldStatus,
			Status:      ev.NewStatus,
			Version:     ev.Order.Version,
			Note:        ev.Note,
			Actor:       ev.Actor,
		}, true
	case OrderDeletedEvent:
		return protocol.TypeOrderDeleted, orderKey(ev.OrderID), &protocol.OrderEvent{
			OrderID:     ev.OrderID,
			OrderNumber: ev.OrderNumber,
			Status:      "deleted",
			Actor:       ev.Actor,
		}, true
	case TaskEvent:
		msgType = protocol.TypeTaskStatusChanged
		if evt.Type == EventTaskCreated {
			msgType = protocol.TypeTaskCreated
		}
		return msgType, orderKey(ev.Task.OrderID), &protocol.TaskEvent{
			TaskID:    ev.Task.ID,
			OrderID:   ev.Task.OrderID,
			Title:     ev.Task.Title,
			Assignee:  ev.Task.Assignee,
			OldStatus: ev.OldStatus,
			Status:    ev.NewStatus,
			Actor:     ev.Actor,
		}, true
	case MaterialEvent:
		switch evt.Type {
		case EventMaterialCreated:
			msgType = protocol.TypeMaterialCreated
		case EventMaterialUpdated:
			msgType = protocol.TypeMaterialUpdated
		case EventStockLow:
			msgType = protocol.TypeStockLow
		default:
			return "", "", nil, false
		}
		m := ev.Material
		return msgType, materialKey(m.ID), &protocol.MaterialEvent{
			MaterialID:   m.ID,
			Name:         m.Name,
			Unit:         m.Unit,
			CurrentStock: m.CurrentStock,
			ReorderLevel: m.ReorderLevel,
			Actor:        ev.Actor,
		}, true
	case MovementEvent:
		mv := ev.Movement
		p := &protocol.MovementEvent{
			MovementID: mv.ID,
			MaterialID: mv.MaterialID,
			Type:       mv.Type,
			Quantity:   mv.Quantity,
			Delta:      mv.Delta,
			StockAfter: mv.StockAfter,
			TotalCost:  mv.TotalCost,
			OrderID:    mv.OrderID,
			Actor:      ev.Actor,
		}
		if ev.Material != nil {
			p.MaterialName = ev.Material.Name
		}
		return protocol.TypeMovementRecorded, materialKey(mv.MaterialID), p, true
	case AlertEvent:
		msgType = protocol.TypeAlertStatusChange
		if evt.Type == EventAlertCreated {
			msgType = protocol.TypeAlertCreated
		}
		a := ev.Alert
		return msgType, materialKey(a.MaterialID), &protocol.AlertEvent{
			AlertID:       a.ID,
			MaterialID:    a.MaterialID,
			MaterialName:  a.MaterialName,
			Priority:      a.Priority,
			OldStatus:     ev.OldStatus,
			Status:        ev.NewStatus,
			StockSnapshot: a.StockSnapshot,
			Actor:         ev.Actor,
		}, true
	case QualityCheckEvent:
		qc := ev.Check
		failed := 0
		for _, item := range qc.Checklist {
			if !item.Passed {
				failed++
			}
		}
		return protocol.TypeQualityCheckRecorded, orderKey(qc.OrderID), &protocol.QualityEvent{
			CheckID:       qc.ID,
			OrderID:       qc.OrderID,
			OverallStatus: qc.OverallStatus,
			Items:         len(qc.Checklist),
			FailedItems:   failed,
			Inspector:     qc.Inspector,
		}, true
	}
	return "", "", nil, false
}

func orderKey(id int64) string    { return fmt.Sprintf("order:%d", id) }
func materialKey(id int64) string { return fmt.Sprintf("material:%d", id) }
