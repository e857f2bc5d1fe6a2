package www

import (
	"net/http"

	"github.com/shopspring/decimal"

	"boxworks/inventory"
)

type materialRequest struct {
	Name         string          `json:"name" validate:"required"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	OpeningStock decimal.Decimal `json:"opening_stock"`
}

type movementRequest struct {
	Type     string           `json:"type" validate:"required,oneof=purchase usage sale waste adjustment"`
	ItemID   int64            `json:"item_id" validate:"required,gt=0"`
	Quantity decimal.Decimal  `json:"quantity"`
	UnitCost *decimal.Decimal `json:"unit_cost"`
	OrderID  *int64           `json:"order_id"`
	Notes    string           `json:"notes"`
}

func (h *Handlers) apiListMaterials(w http.ResponseWriter, r *http.Request) {
	ledger := h.engine.Inventory()
	var (
		list any
		err  error
	)
	if r.URL.Query().Get("low_stock") == "true" {
		list, err = ledger.LowStock(r.Context())
	} else {
		list, err = ledger.ListMaterials(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiCreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req materialRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.engine.Inventory().CreateMaterial(r.Context(), inventory.MaterialRequest{
		Name:         req.Name,
		Category:     req.Category,
		Unit:         req.Unit,
		ReorderLevel: req.ReorderLevel,
		UnitCost:     req.UnitCost,
		OpeningStock: req.OpeningStock,
		Actor:        h.getUsername(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonStatus(w, http.StatusCreated, m)
}

func (h *Handlers) apiGetMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	m, err := h.engine.Inventory().GetMaterial(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, m)
}

// apiUpdateMaterial edits descriptive fields; opening_stock is ignored.
func (h *Handlers) apiUpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	var req materialRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.engine.Inventory().UpdateMaterial(r.Context(), id, inventory.MaterialRequest{
		Name:         req.Name,
		Category:     req.Category,
		Unit:         req.Unit,
		ReorderLevel: req.ReorderLevel,
		UnitCost:     req.UnitCost,
		Actor:        h.getUsername(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, m)
}

func (h *Handlers) apiListMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	movements, err := h.engine.Inventory().ListMovements(r.Context(), id, queryInt(r, "limit", 100))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, movements)
}

func (h *Handlers) apiVerifyMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	v, err := h.engine.Inventory().Verify(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, v)
}

func (h *Handlers) apiRecordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.Inventory().RecordMovement(r.Context(), inventory.MovementRequest{
		MaterialID:     req.ItemID,
		Type:           req.Type,
		Quantity:       req.Quantity,
		UnitCost:       req.UnitCost,
		OrderID:        req.OrderID,
		Notes:          req.Notes,
		Actor:          h.getUsername(r),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonStatus(w, http.StatusCreated, res)
}
