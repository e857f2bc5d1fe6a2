package protocol

// Message type constants for outbound domain events.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeOrderDeleted       = "order.deleted"

	TypeTaskCreated       = "task.created"
	TypeTaskStatusChanged = "task.status_changed"

	TypeMaterialCreated   = "material.created"
	TypeMaterialUpdated   = "material.updated"
	TypeMovementRecorded  = "inventory.movement"
	TypeStockLow          = "stock.low"
	TypeAlertCreated      = "alert.created"
	TypeAlertStatusChange = "alert.status_changed"

	TypeQualityCheckRecorded = "quality.check_recorded"
)

// Roles for Address.Role.
const (
	RoleService    = "service"
	RoleSubscriber = "subscriber"
)

// Protocol version.
const Version = 1
