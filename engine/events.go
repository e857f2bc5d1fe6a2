package engine

import "boxworks/store"

const (
	EventOrderCreated EventType = iota + 1
	EventOrderStatusChanged
	EventOrderDeleted
	EventTaskCreated
	EventTaskStatusChanged
	EventMaterialCreated
	EventMaterialUpdated
	EventMovementRecorded
	EventStockLow
	EventAlertCreated
	EventAlertStatusChanged
	EventQualityCheckRecorded
	EventMessagingConnected
	EventMessagingDisconnected
)

var eventNames = map[EventType]string{
	EventOrderCreated:          "order-created",
	EventOrderStatusChanged:    "order-status-changed",
	EventOrderDeleted:          "order-deleted",
	EventTaskCreated:           "task-created",
	EventTaskStatusChanged:     "task-status-changed",
	EventMaterialCreated:       "material-created",
	EventMaterialUpdated:       "material-updated",
	EventMovementRecorded:      "movement-recorded",
	EventStockLow:              "stock-low",
	EventAlertCreated:          "alert-created",
	EventAlertStatusChanged:    "alert-status-changed",
	EventQualityCheckRecorded:  "quality-check-recorded",
	EventMessagingConnected:    "messaging-connected",
	EventMessagingDisconnected: "messaging-disconnected",
}

// String returns the name used for SSE event fields.
func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// --- Event payloads ---

type OrderEvent struct {
	Order     *store.Order
	OldStatus string
	NewStatus string
	Note      string
	Actor     string
}

type OrderDeletedEvent struct {
	OrderID     int64
	OrderNumber string
	Actor       string
}

type TaskEvent struct {
	Task      *store.ProductionTask
	OldStatus string
	NewStatus string
	Actor     string
}

// MaterialEvent is used for material create/update and stock-low events.
type MaterialEvent struct {
	Material *store.Material
	Actor    string
}

type MovementEvent struct {
	Movement *store.Movement
	Material *store.Material
	Actor    string
}

type AlertEvent struct {
	Alert     *store.ReorderAlert
	OldStatus string
	NewStatus string
	Actor     string
}

type QualityCheckEvent struct {
	Check *store.QualityCheck
	Actor string
}

type ConnectionEvent struct {
	Detail string
}
