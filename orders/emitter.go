package orders

import "boxworks/store"

// EventEmitter is the interface the orders package uses to emit events.
type EventEmitter interface {
	EmitOrderCreated(order *store.Order, actor string)
	EmitOrderStatusChanged(order *store.Order, oldStatus, newStatus, note, actor string)
	EmitOrderDeleted(orderID int64, orderNumber, actor string)
}
