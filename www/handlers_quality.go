package www

import (
	"net/http"

	"boxworks/quality"
	"boxworks/store"
)

type checklistItem struct {
	Item   string `json:"item" validate:"required"`
	Passed bool   `json:"passed"`
	Notes  string `json:"notes"`
}

type qualityCheckRequest struct {
	OrderID       int64           `json:"order_id" validate:"required,gt=0"`
	Checklist     []checklistItem `json:"checklist" validate:"dive"`
	OverallStatus string          `json:"overall_status" validate:"required,oneof=passed failed needs_rework pending"`
	Notes         string          `json:"notes"`
}

func (h *Handlers) apiRecordQualityCheck(w http.ResponseWriter, r *http.Request) {
	var req qualityCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	items := make([]store.ChecklistItem, len(req.Checklist))
	for i, it := range req.Checklist {
		items[i] = store.ChecklistItem{Item: it.Item, Passed: it.Passed, Note: it.Notes}
	}
	res, err := h.engine.Quality().RecordCheck(r.Context(), quality.CheckRequest{
		OrderID:       req.OrderID,
		Checklist:     items,
		OverallStatus: req.OverallStatus,
		Inspector:     h.getUsername(r),
		Notes:         req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonStatus(w, http.StatusCreated, res)
}

func (h *Handlers) apiListQualityChecks(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	checks, err := h.engine.Quality().ListChecks(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, checks)
}
