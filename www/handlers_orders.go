package www

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"boxworks/board"
	"boxworks/orders"
)

type createOrderRequest struct {
	OrderNumber string          `json:"order_number"`
	CustomerRef string          `json:"customer_ref" validate:"required"`
	Priority    string          `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Total       decimal.Decimal `json:"total"`
	DueDate     *time.Time      `json:"due_date"`
	Notes       string          `json:"notes"`
}

type orderStatusRequest struct {
	Status          string `json:"status" validate:"required"`
	Notes           string `json:"notes"`
	ExpectedVersion *int64 `json:"expected_version"`
}

type stageRequest struct {
	Target          string `json:"target" validate:"required"`
	Notes           string `json:"notes"`
	ExpectedVersion *int64 `json:"expected_version"`
}

func (h *Handlers) apiListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Orders().List(r.Context(), r.URL.Query().Get("status"), queryInt(r, "limit", 100))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.engine.Orders().Create(r.Context(), orders.CreateRequest{
		OrderNumber: req.OrderNumber,
		CustomerRef: req.CustomerRef,
		Priority:    req.Priority,
		Total:       req.Total,
		DueDate:     req.DueDate,
		Notes:       req.Notes,
		Actor:       h.getUsername(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonStatus(w, http.StatusCreated, order)
}

func (h *Handlers) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	order, err := h.engine.Orders().Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, order)
}

// apiUpdateOrderStatus applies one lifecycle transition.
func (h *Handlers) apiUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	var req orderStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	version, err := expectedVersion(r, req.ExpectedVersion)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.engine.Orders().Transition(r.Context(), orders.TransitionRequest{
		OrderID:         id,
		Target:          req.Status,
		Note:            req.Notes,
		Actor:           h.getUsername(r),
		ExpectedVersion: version,
		IdempotencyKey:  idempotencyKey(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, order)
}

// apiMoveOrder is the board's drag-and-drop move: moving to the current
// stage succeeds with moved=false.
func (h *Handlers) apiMoveOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeMove(w, r)
	if !ok {
		return
	}
	res, err := h.engine.Board().MoveOrder(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, res)
}

func (h *Handlers) decodeMove(w http.ResponseWriter, r *http.Request) (board.MoveRequest, bool) {
	var req stageRequest
	if !h.decode(w, r, &req) {
		return board.MoveRequest{}, false
	}
	version, err := expectedVersion(r, req.ExpectedVersion)
	if err != nil {
		h.writeError(w, r, err)
		return board.MoveRequest{}, false
	}
	return board.MoveRequest{
		Target:          req.Target,
		Note:            req.Notes,
		Actor:           h.getUsername(r),
		ExpectedVersion: version,
		IdempotencyKey:  idempotencyKey(r),
	}, true
}

func (h *Handlers) apiOrderHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	entries, err := h.engine.Orders().History(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, entries)
}

func (h *Handlers) apiDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Orders().Delete(r.Context(), id, h.getUsername(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
