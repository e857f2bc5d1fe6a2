package engine

import "boxworks/store"

// orderEmitter bridges the orders package's emitter interface to the EventBus.
type orderEmitter struct {
	bus *EventBus
}

func (e *orderEmitter) EmitOrderCreated(order *store.Order, actor string) {
	e.bus.Emit(Event{Type: EventOrderCreated, Payload: OrderEvent{Order: order, NewStatus: order.Status, Actor: actor}})
}

func (e *orderEmitter) EmitOrderStatusChanged(order *store.Order, oldStatus, newStatus, note, actor string) {
	e.bus.Emit(Event{Type: EventOrderStatusChanged, Payload: OrderEvent{
		Order:     order,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Note:      note,
		Actor:     actor,
	}})
}

func (e *orderEmitter) EmitOrderDeleted(orderID int64, orderNumber, actor string) {
	e.bus.Emit(Event{Type: EventOrderDeleted, Payload: OrderDeletedEvent{OrderID: orderID, OrderNumber: orderNumber, Actor: actor}})
}

// boardEmitter bridges task events from the board coordinator.
type boardEmitter struct {
	bus *EventBus
}

func (e *boardEmitter) EmitTaskCreated(task *store.ProductionTask, actor string) {
	e.bus.Emit(Event{Type: EventTaskCreated, Payload: TaskEvent{Task: task, NewStatus: task.Status, Actor: actor}})
}

func (e *boardEmitter) EmitTaskStatusChanged(task *store.ProductionTask, oldStatus, newStatus, actor string) {
	e.bus.Emit(Event{Type: EventTaskStatusChanged, Payload: TaskEvent{Task: task, OldStatus: oldStatus, NewStatus: newStatus, Actor: actor}})
}

// inventoryEmitter bridges the inventory ledger's events.
type inventoryEmitter struct {
	bus *EventBus
}

func (e *inventoryEmitter) EmitMaterialCreated(material *store.Material, actor string) {
	e.bus.Emit(Event{Type: EventMaterialCreated, Payload: MaterialEvent{Material: material, Actor: actor}})
}

func (e *inventoryEmitter) EmitMaterialUpdated(material *store.Material, actor string) {
	e.bus.Emit(Event{Type: EventMaterialUpdated, Payload: MaterialEvent{Material: material, Actor: actor}})
}

func (e *inventoryEmitter) EmitMovementRecorded(movement *store.Movement, material *store.Material, actor string) {
	e.bus.Emit(Event{Type: EventMovementRecorded, Payload: MovementEvent{Movement: movement, Material: material, Actor: actor}})
}

func (e *inventoryEmitter) EmitStockLow(material *store.Material, actor string) {
	e.bus.Emit(Event{Type: EventStockLow, Payload: MaterialEvent{Material: material, Actor: actor}})
}

// alertEmitter bridges reorder alert events.
type alertEmitter struct {
	bus *EventBus
}

func (e *alertEmitter) EmitAlertCreated(alert *store.ReorderAlert, actor string) {
	e.bus.Emit(Event{Type: EventAlertCreated, Payload: AlertEvent{Alert: alert, NewStatus: alert.Status, Actor: actor}})
}

func (e *alertEmitter) EmitAlertStatusChanged(alert *store.ReorderAlert, oldStatus, newStatus, actor string) {
	e.bus.Emit(Event{Type: EventAlertStatusChanged, Payload: AlertEvent{Alert: alert, OldStatus: oldStatus, NewStatus: newStatus, Actor: actor}})
}

// qualityEmitter bridges quality gate events.
type qualityEmitter struct {
	bus *EventBus
}

func (e *qualityEmitter) EmitQualityCheckRecorded(check *store.QualityCheck, actor string) {
	e.bus.Emit(Event{Type: EventQualityCheckRecorded, Payload: QualityCheckEvent{Check: check, Actor: actor}})
}
