package www

import (
	"net/http"

	"boxworks/alerts"
)

type createAlertRequest struct {
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Notes    string `json:"notes"`
}

type alertStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending acknowledged ordered resolved"`
	Notes  string `json:"notes"`
}

func (h *Handlers) apiListAlerts(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Alerts().List(r.Context(), r.URL.Query().Get("status"), queryInt(r, "limit", 100))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

// apiCreateAlert answers 409 with the active alert when one already exists.
func (h *Handlers) apiCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if !h.decode(w, r, &req) {
		return
	}
	alert, err := h.engine.Alerts().Create(r.Context(), alerts.CreateRequest{
		MaterialID: req.ItemID,
		Priority:   req.Priority,
		Notes:      req.Notes,
		Actor:      h.getUsername(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonStatus(w, http.StatusCreated, alert)
}

func (h *Handlers) apiGetAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	alert, err := h.engine.Alerts().Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, alert)
}

func (h *Handlers) apiUpdateAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	var req alertStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	alert, err := h.engine.Alerts().UpdateStatus(r.Context(), id, req.Status, req.Notes, h.getUsername(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, alert)
}
