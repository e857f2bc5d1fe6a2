package www

import (
	"context"
	"net/http"
	"time"
)

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	dbOK := h.engine.DB().PingContext(ctx) == nil
	if !dbOK {
		status = "degraded"
	}
	h.jsonOK(w, map[string]any{
		"status":    status,
		"database":  dbOK,
		"messaging": h.messagingState(),
	})
}

func (h *Handlers) messagingState() string {
	if h.engine.MsgClient() == nil {
		return "disabled"
	}
	if h.engine.MessagingConnected() {
		return "connected"
	}
	return "disconnected"
}

// apiAuditLog returns the audit trail of one entity when entity_type and
// entity_id are given, otherwise the most recent entries.
func (h *Handlers) apiAuditLog(w http.ResponseWriter, r *http.Request) {
	db := h.engine.DB()
	entityType := r.URL.Query().Get("entity_type")
	entityID := queryInt64(r, "entity_id")
	if entityType != "" && entityID > 0 {
		entries, err := db.ListEntityAudit(r.Context(), entityType, entityID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.jsonOK(w, entries)
		return
	}
	entries, err := db.ListAuditLog(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, entries)
}
