package protocol

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// FilterFunc returns true if the message should be processed.
type FilterFunc func(hdr *RawHeader) bool

// MessageHandler defines callbacks per payload family.
// Embed NoOpHandler and override only the methods you need.
type MessageHandler interface {
	HandleOrderEvent(env *Envelope, p *OrderEvent)
	HandleTaskEvent(env *Envelope, p *TaskEvent)
	HandleMaterialEvent(env *Envelope, p *MaterialEvent)
	HandleMovementEvent(env *Envelope, p *MovementEvent)
	HandleAlertEvent(env *Envelope, p *AlertEvent)
	HandleQualityEvent(env *Envelope, p *QualityEvent)
}

// Ingestor performs two-phase decode and dispatches to a MessageHandler.
type Ingestor struct {
	handler MessageHandler
	filter  FilterFunc
	log     logrus.FieldLogger
}

// NewIngestor creates an ingestor with the given handler and filter.
func NewIngestor(handler MessageHandler, filter FilterFunc, logger logrus.FieldLogger) *Ingestor {
	return &Ingestor{
		handler: handler,
		filter:  filter,
		log:     logger.WithField("module", "protocol"),
	}
}

// HandleRaw is the entry point for raw message bytes from the messaging layer.
func (ing *Ingestor) HandleRaw(data []byte) {
	// Phase 1: decode routing header only
	var hdr RawHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		ing.log.WithError(err).Warn("header decode error")
		return
	}

	if IsExpiredHeader(&hdr) {
		ing.log.WithFields(logrus.Fields{"id": hdr.ID, "type": hdr.Type}).Debug("dropping expired message")
		return
	}

	if ing.filter != nil && !ing.filter(&hdr) {
		return
	}

	// Phase 2: full envelope decode
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		ing.log.WithError(err).Warn("envelope decode error")
		return
	}

	switch env.Type {
	case TypeOrderCreated, TypeOrderStatusChanged, TypeOrderDeleted:
		decodeAndCall(ing, ing.handler.HandleOrderEvent, &env)
	case TypeTaskCreated, TypeTaskStatusChanged:
		decodeAndCall(ing, ing.handler.HandleTaskEvent, &env)
	case TypeMaterialCreated, TypeMaterialUpdated, TypeStockLow:
		decodeAndCall(ing, ing.handler.HandleMaterialEvent, &env)
	case TypeMovementRecorded:
		decodeAndCall(ing, ing.handler.HandleMovementEvent, &env)
	case TypeAlertCreated, TypeAlertStatusChange:
		decodeAndCall(ing, ing.handler.HandleAlertEvent, &env)
	case TypeQualityCheckRecorded:
		decodeAndCall(ing, ing.handler.HandleQualityEvent, &env)
	default:
		ing.log.WithField("type", env.Type).Warn("unknown message type")
	}
}

// decodeAndCall unmarshals the payload and calls the handler method.
func decodeAndCall[T any](ing *Ingestor, fn func(*Envelope, *T), env *Envelope) {
	var p T
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		ing.log.WithError(err).WithField("type", env.Type).Warn("payload decode error")
		return
	}
	fn(env, &p)
}
