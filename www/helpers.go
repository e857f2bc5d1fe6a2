package www

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"boxworks/apperr"
	"boxworks/config"
)

type errorBody struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Existing any    `json:"existing,omitempty"`
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	h.jsonStatus(w, http.StatusOK, data)
}

func (h *Handlers) jsonStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	h.jsonStatus(w, code, errorBody{Error: msg})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidArgument:
		return http.StatusBadRequest
	case apperr.InvalidTransition, apperr.InsufficientStock, apperr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a component error to its HTTP status. Internal errors are
// logged in full and reported to the client without detail.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		config.LogError(h.logger, "www", r.Method+" "+r.URL.Path, "request failed", nil, err)
		h.jsonStatus(w, http.StatusInternalServerError, errorBody{Error: "internal error", Kind: string(kind)})
		return
	}
	body := errorBody{Error: err.Error(), Kind: string(kind)}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Error = ae.Msg
		body.Existing = ae.Existing
	}
	h.jsonStatus(w, statusFor(kind), body)
}

// decode reads a JSON body into dst and validates it. On failure the 400
// response has been written.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.jsonStatus(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error(), Kind: string(apperr.InvalidArgument)})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.jsonStatus(w, http.StatusBadRequest, errorBody{Error: validationMessage(err), Kind: string(apperr.InvalidArgument)})
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// urlID parses the {id} route parameter, writing a 400 when it is not a positive integer.
func (h *Handlers) urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.jsonStatus(w, http.StatusBadRequest, errorBody{Error: "invalid id", Kind: string(apperr.InvalidArgument)})
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func queryInt64(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return n
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

// expectedVersion returns the version from the body, falling back to an
// If-Match header such as `"3"` or `3`.
func expectedVersion(r *http.Request, fromBody *int64) (*int64, error) {
	if fromBody != nil {
		return fromBody, nil
	}
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.New(apperr.InvalidArgument, "If-Match must be an order version, got %q", r.Header.Get("If-Match"))
	}
	return &v, nil
}
