package www

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"boxworks/apperr"
	"boxworks/config"
	"boxworks/engine"
	"boxworks/store"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	eng     *engine.Engine
	cookie  *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Inventory.AutoReorderAlerts = false

	db, err := store.Open(&cfg.Database)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	eng := engine.New(engine.Config{AppConfig: cfg, DB: db, Logger: logger})

	handler, stop := NewRouter(eng)
	t.Cleanup(stop)

	s := &testServer{t: t, handler: handler, eng: eng}
	s.cookie = s.login("admin", "admin")
	return s
}

func (s *testServer) login(username, password string) *http.Cookie {
	s.t.Helper()
	rec := s.request(http.MethodPost, "/api/login", map[string]string{"username": username, "password": password}, nil)
	if rec.Code != http.StatusOK {
		s.t.Fatalf("login %s: %d %s", username, rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName {
			return c
		}
	}
	s.t.Fatal("login did not set a session cookie")
	return nil
}

func (s *testServer) request(method, path string, body any, cookie *http.Cookie, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// do issues an authenticated request as admin.
func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.request(method, path, body, s.cookie, headers...)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

func (s *testServer) createOrder(customer string) int64 {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/orders", map[string]any{"customer_ref": customer, "total": "49.90"})
	expectStatus(s.t, rec, http.StatusCreated)
	return int64(decodeBody(s.t, rec)["id"].(float64))
}

func (s *testServer) createMaterial(name string, opening, reorder string) int64 {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/inventory/materials", map[string]any{
		"name": name, "opening_stock": opening, "reorder_level": reorder, "unit_cost": "0.50",
	})
	expectStatus(s.t, rec, http.StatusCreated)
	return int64(decodeBody(s.t, rec)["id"].(float64))
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(http.MethodGet, "/api/orders", nil, nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = s.request(http.MethodPost, "/api/login", map[string]string{"username": "admin", "password": "wrong"}, nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = s.request(http.MethodGet, "/api/health", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["messaging"] != "disabled" {
		t.Errorf("health = %v", body)
	}
}

func TestOrderStatusOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := s.createOrder("cust-1")
	base := "/api/orders/" + itoa(id)

	rec := s.do(http.MethodPatch, base+"/status", map[string]any{"status": "designing", "notes": "artwork in"}, "If-Match", `"1"`)
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody(t, rec)
	if body["status"] != "designing" || body["version"].(float64) != 2 {
		t.Errorf("order = %v", body)
	}

	// stale version
	rec = s.do(http.MethodPatch, base+"/status", map[string]any{"status": "approved"}, "If-Match", "1")
	expectStatus(t, rec, http.StatusConflict)
	if decodeBody(t, rec)["kind"] != string(apperr.Conflict) {
		t.Errorf("stale version body = %s", rec.Body.String())
	}

	rec = s.do(http.MethodPatch, base+"/status", map[string]any{"status": "completed"})
	expectStatus(t, rec, http.StatusConflict)
	if decodeBody(t, rec)["kind"] != string(apperr.InvalidTransition) {
		t.Errorf("invalid transition body = %s", rec.Body.String())
	}

	rec = s.do(http.MethodPatch, base+"/status", map[string]any{"status": "shipped"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(http.MethodGet, base+"/history", nil)
	expectStatus(t, rec, http.StatusOK)
	var history []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &history)
	if len(history) != 1 || history[0]["stage"] != "designing" || history[0]["actor"] != "admin" {
		t.Errorf("history = %v", history)
	}

	rec = s.do(http.MethodGet, "/api/orders/9999", nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = s.do(http.MethodGet, "/api/orders/abc", nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestIdempotencyKeyReplay(t *testing.T) {
	s := newTestServer(t)
	id := s.createOrder("cust-2")
	path := "/api/orders/" + itoa(id) + "/status"

	rec := s.do(http.MethodPatch, path, map[string]any{"status": "designing"}, "Idempotency-Key", "req-1")
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(http.MethodPatch, path, map[string]any{"status": "designing"}, "Idempotency-Key", "req-1")
	expectStatus(t, rec, http.StatusConflict)
	existing, ok := decodeBody(t, rec)["existing"].(map[string]any)
	if !ok || existing["status"] != "designing" {
		t.Errorf("replay body = %s", rec.Body.String())
	}
}

func TestBoardMoves(t *testing.T) {
	s := newTestServer(t)
	id := s.createOrder("cust-3")

	rec := s.do(http.MethodPost, "/api/tasks", map[string]any{"order_id": id, "title": "Cut lids"})
	expectStatus(t, rec, http.StatusCreated)
	taskID := int64(decodeBody(t, rec)["id"].(float64))

	rec = s.do(http.MethodPatch, "/api/tasks/"+itoa(taskID)+"/stage", map[string]any{"target": "designing"})
	expectStatus(t, rec, http.StatusOK)
	if decodeBody(t, rec)["moved"] != true {
		t.Errorf("first move body = %s", rec.Body.String())
	}

	rec = s.do(http.MethodPatch, "/api/orders/"+itoa(id)+"/stage", map[string]any{"target": "designing"})
	expectStatus(t, rec, http.StatusOK)
	if decodeBody(t, rec)["moved"] != false {
		t.Errorf("same-stage move body = %s", rec.Body.String())
	}

	rec = s.do(http.MethodPatch, "/api/tasks/"+itoa(taskID)+"/status", map[string]any{"status": "in_progress"})
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(http.MethodGet, "/api/board", nil)
	expectStatus(t, rec, http.StatusOK)
	columns := decodeBody(t, rec)["columns"].([]any)
	designing := columns[1].(map[string]any)
	if designing["stage"] != "designing" || designing["count"].(float64) != 1 {
		t.Errorf("designing column = %v", designing)
	}
}

func TestMovementsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	mid := s.createMaterial("Ribbon", "5", "2")

	rec := s.do(http.MethodPost, "/api/inventory/movement", map[string]any{"type": "usage", "item_id": mid, "quantity": "10"})
	expectStatus(t, rec, http.StatusConflict)
	if decodeBody(t, rec)["kind"] != string(apperr.InsufficientStock) {
		t.Errorf("insufficient body = %s", rec.Body.String())
	}

	rec = s.do(http.MethodPost, "/api/inventory/movement", map[string]any{"type": "purchase", "item_id": mid, "quantity": "20", "unit_cost": "0.40"},
		"Idempotency-Key", "po-77")
	expectStatus(t, rec, http.StatusCreated)
	if got := decodeBody(t, rec)["new_stock"]; got != "25" {
		t.Errorf("new_stock = %v, want 25", got)
	}

	rec = s.do(http.MethodPost, "/api/inventory/movement", map[string]any{"type": "purchase", "item_id": mid, "quantity": "20"},
		"Idempotency-Key", "po-77")
	expectStatus(t, rec, http.StatusConflict)

	rec = s.do(http.MethodPost, "/api/inventory/movement", map[string]any{"type": "purchase", "quantity": "1"})
	expectStatus(t, rec, http.StatusBadRequest)
	if msg := decodeBody(t, rec)["error"].(string); !strings.Contains(msg, "item_id") {
		t.Errorf("validation message = %q", msg)
	}

	rec = s.do(http.MethodGet, "/api/inventory/materials/"+itoa(mid)+"/verify", nil)
	expectStatus(t, rec, http.StatusOK)
	v := decodeBody(t, rec)
	if v["consistent"] != true || v["ledger_stock"] != "25" {
		t.Errorf("verify = %v", v)
	}

	rec = s.do(http.MethodGet, "/api/inventory/materials/"+itoa(mid)+"/movements", nil)
	expectStatus(t, rec, http.StatusOK)
	var movements []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &movements)
	if len(movements) != 2 {
		t.Errorf("movements = %d, want 2", len(movements))
	}
}

func TestDuplicateAlertOverHTTP(t *testing.T) {
	s := newTestServer(t)
	mid := s.createMaterial("Tissue", "1", "5")

	rec := s.do(http.MethodPost, "/api/inventory/reorder-alert", map[string]any{"item_id": mid, "priority": "high"})
	expectStatus(t, rec, http.StatusCreated)
	alertID := decodeBody(t, rec)["id"].(float64)

	rec = s.do(http.MethodPost, "/api/inventory/reorder-alert", map[string]any{"item_id": mid})
	expectStatus(t, rec, http.StatusConflict)
	existing, ok := decodeBody(t, rec)["existing"].(map[string]any)
	if !ok || existing["id"].(float64) != alertID {
		t.Errorf("duplicate body = %s", rec.Body.String())
	}

	rec = s.do(http.MethodPut, "/api/inventory/reorder-alert/"+itoa(int64(alertID)), map[string]any{"status": "acknowledged"})
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody(t, rec)
	if body["status"] != "acknowledged" || body["acknowledged_by"] != "admin" {
		t.Errorf("acknowledged alert = %v", body)
	}
}

func TestQualityCheckCompletesOrder(t *testing.T) {
	s := newTestServer(t)
	id := s.createOrder("cust-4")

	rec := s.do(http.MethodPost, "/api/quality-check", map[string]any{
		"order_id":       id,
		"checklist":      []map[string]any{{"item": "corners", "passed": true}},
		"overall_status": "passed",
	})
	expectStatus(t, rec, http.StatusCreated)
	if decodeBody(t, rec)["order_completed"] != true {
		t.Errorf("check body = %s", rec.Body.String())
	}

	rec = s.do(http.MethodPatch, "/api/orders/"+itoa(id)+"/status", map[string]any{"status": "production"})
	expectStatus(t, rec, http.StatusConflict)

	rec = s.do(http.MethodGet, "/api/orders/"+itoa(id)+"/quality-checks", nil)
	expectStatus(t, rec, http.StatusOK)
	var checks []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &checks)
	if len(checks) != 1 || checks[0]["inspector"] != "admin" {
		t.Errorf("checks = %v", checks)
	}

	rec = s.do(http.MethodPost, "/api/quality-check", map[string]any{
		"order_id":       id,
		"checklist":      []map[string]any{{"item": "", "passed": true}},
		"overall_status": "passed",
	})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	id := s.createOrder("cust-5")

	hash, err := hashPassword("packer")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := s.eng.DB().CreateAdminUser(context.Background(), "packer", hash, roleStaff); err != nil {
		t.Fatalf("create staff user: %v", err)
	}
	staff := s.login("packer", "packer")

	rec := s.request(http.MethodDelete, "/api/orders/"+itoa(id), nil, staff)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.request(http.MethodGet, "/api/diagnostics", nil, staff)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(http.MethodDelete, "/api/orders/"+itoa(id), nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.do(http.MethodGet, "/api/orders/"+itoa(id), nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(http.MethodGet, "/api/audit?entity_type=order&entity_id="+itoa(id), nil)
	expectStatus(t, rec, http.StatusOK)
	var entries []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 2 || entries[0]["action"] != "deleted" {
		t.Errorf("audit = %v", entries)
	}
}

func TestConfigRedactsSecrets(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/config", nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), "change-me-in-production") {
		t.Errorf("session secret leaked: %s", rec.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.NotFound, http.StatusNotFound},
		{apperr.InvalidArgument, http.StatusBadRequest},
		{apperr.InvalidTransition, http.StatusConflict},
		{apperr.InsufficientStock, http.StatusConflict},
		{apperr.Conflict, http.StatusConflict},
		{apperr.Internal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.kind); got != tc.want {
			t.Errorf("statusFor(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestExpectedVersion(t *testing.T) {
	tests := []struct {
		header  string
		want    int64
		wantNil bool
		wantErr bool
	}{
		{header: "", wantNil: true},
		{header: `"4"`, want: 4},
		{header: `W/"5"`, want: 5},
		{header: "6", want: 6},
		{header: "abc", wantErr: true},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodPatch, "/", nil)
		if tc.header != "" {
			req.Header.Set("If-Match", tc.header)
		}
		got, err := expectedVersion(req, nil)
		if tc.wantErr {
			if !apperr.Is(err, apperr.InvalidArgument) {
				t.Errorf("%q: err = %v, want InvalidArgument", tc.header, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.header, err)
			continue
		}
		if tc.wantNil {
			if got != nil {
				t.Errorf("%q: got %d, want nil", tc.header, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Errorf("%q: got %v, want %d", tc.header, got, tc.want)
		}
	}

	body := int64(9)
	req := httptest.NewRequest(http.MethodPatch, "/", nil)
	req.Header.Set("If-Match", "3")
	if got, _ := expectedVersion(req, &body); got == nil || *got != 9 {
		t.Errorf("body version should win over If-Match")
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
