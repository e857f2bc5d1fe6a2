package www

import (
	"net/http"
	"time"

	"boxworks/board"
)

type createTaskRequest struct {
	OrderID  int64      `json:"order_id" validate:"required,gt=0"`
	Title    string     `json:"title" validate:"required"`
	Assignee string     `json:"assignee"`
	Priority string     `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	DueDate  *time.Time `json:"due_date"`
}

type taskStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handlers) apiBoard(w http.ResponseWriter, r *http.Request) {
	b, err := h.engine.Board().GetBoard(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, b)
}

func (h *Handlers) apiListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.engine.Board().ListTasks(r.Context(), queryInt64(r, "order_id"), r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, tasks)
}

func (h *Handlers) apiCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !h.decode(w, r, &req) {
		return
	}
	task, err := h.engine.Board().CreateTask(r.Context(), board.TaskRequest{
		OrderID:  req.OrderID,
		Title:    req.Title,
		Assignee: req.Assignee,
		Priority: req.Priority,
		DueDate:  req.DueDate,
		Actor:    h.getUsername(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonStatus(w, http.StatusCreated, task)
}

// apiMoveTask moves the order owning the task to the target stage.
func (h *Handlers) apiMoveTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeMove(w, r)
	if !ok {
		return
	}
	res, err := h.engine.Board().MoveTask(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, res)
}

func (h *Handlers) apiUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	var req taskStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	task, err := h.engine.Board().UpdateTaskStatus(r.Context(), id, req.Status, h.getUsername(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, task)
}
