package www

import (
	"net/http"

	"boxworks/messaging"
)

func (h *Handlers) apiDiagnostics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	db := h.engine.DB()

	auditLog, err := db.ListAuditLog(ctx, 50)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pending, err := db.ListPendingOutbox(ctx, messaging.DefaultMaxRetries, 1000)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	low, err := h.engine.Inventory().LowStock(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.jsonOK(w, map[string]any{
		"audit_log":       auditLog,
		"database_driver": h.engine.DB().Driver(),
		"messaging":       h.messagingState(),
		"outbox_pending":  len(pending),
		"low_stock_items": len(low),
		"sse_clients":     h.eventHub.ClientCount(),
		"event_handlers":  h.engine.Events.SubscriberCount(),
	})
}
