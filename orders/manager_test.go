package orders

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"boxworks/apperr"
	"boxworks/config"
	"boxworks/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type statusChange struct {
	orderID  int64
	old, new string
	actor    string
}

type mockEmitter struct {
	created []int64
	changes []statusChange
	deleted []int64
}

func (e *mockEmitter) EmitOrderCreated(o *store.Order, actor string) {
	e.created = append(e.created, o.ID)
}

func (e *mockEmitter) EmitOrderStatusChanged(o *store.Order, oldStatus, newStatus, note, actor string) {
	e.changes = append(e.changes, statusChange{orderID: o.ID, old: oldStatus, new: newStatus, actor: actor})
}

func (e *mockEmitter) EmitOrderDeleted(orderID int64, orderNumber, actor string) {
	e.deleted = append(e.deleted, orderID)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testManager(t *testing.T) (*Manager, *mockEmitter, *store.DB) {
	t.Helper()
	db := testDB(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	em := &mockEmitter{}
	return NewManager(db, em, logger), em, db
}

func createOrder(t *testing.T, m *Manager) *store.Order {
	t.Helper()
	o, err := m.Create(context.Background(), CreateRequest{CustomerRef: "CUST-1", Total: decimal.RequireFromString("120.50")})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func transition(t *testing.T, m *Manager, id int64, target string) *store.Order {
	t.Helper()
	o, err := m.Transition(context.Background(), TransitionRequest{OrderID: id, Target: target, Actor: "tester"})
	if err != nil {
		t.Fatalf("transition to %s: %v", target, err)
	}
	return o
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusDesigning, true},
		{StatusDesigning, StatusApproved, true},
		{StatusApproved, StatusProduction, true},
		{StatusProduction, StatusQualityControl, true},
		{StatusQualityControl, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusQualityControl, StatusCancelled, true},
		{StatusCancelled, StatusPending, true},
		{StatusPending, StatusProduction, false},
		{StatusDesigning, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusDesigning, false},
	}
	for _, tt := range tests {
		if got := IsValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCreateOrder(t *testing.T) {
	m, em, _ := testManager(t)
	o := createOrder(t, m)

	if o.Status != StatusPending {
		t.Errorf("Status = %q, want pending", o.Status)
	}
	if o.Version != 1 {
		t.Errorf("Version = %d, want 1", o.Version)
	}
	if o.Priority != PriorityNormal {
		t.Errorf("Priority = %q, want normal", o.Priority)
	}
	if o.OrderNumber == "" {
		t.Error("OrderNumber should be generated")
	}
	if !o.Total.Equal(decimal.RequireFromString("120.5")) {
		t.Errorf("Total = %s, want 120.5", o.Total)
	}
	if len(em.created) != 1 {
		t.Errorf("created events = %d, want 1", len(em.created))
	}

	history, err := m.History(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %d entries, want 0", len(history))
	}
}

func TestCreateOrderValidation(t *testing.T) {
	m, _, _ := testManager(t)
	ctx := context.Background()

	cases := []CreateRequest{
		{CustomerRef: ""},
		{CustomerRef: "C", Priority: "whenever"},
		{CustomerRef: "C", Total: decimal.NewFromInt(-1)},
		{CustomerRef: "C", Total: decimal.RequireFromString("19.999")},
		{CustomerRef: "C", Total: decimal.New(1, 12)},
	}
	for _, req := range cases {
		if _, err := m.Create(ctx, req); !apperr.Is(err, apperr.InvalidArgument) {
			t.Errorf("Create(%+v) err = %v, want InvalidArgument", req, err)
		}
	}

	if _, err := m.Create(ctx, CreateRequest{OrderNumber: "GB-1", CustomerRef: "C"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Create(ctx, CreateRequest{OrderNumber: "GB-1", CustomerRef: "C"}); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("duplicate order number err = %v, want Conflict", err)
	}
}

func TestTransitionAppendsStageLog(t *testing.T) {
	m, em, _ := testManager(t)
	ctx := context.Background()
	o := createOrder(t, m)

	transition(t, m, o.ID, StatusDesigning)
	got := transition(t, m, o.ID, StatusApproved)

	if got.Status != StatusApproved {
		t.Errorf("Status = %q, want approved", got.Status)
	}
	if got.Version != 3 {
		t.Errorf("Version = %d, want 3", got.Version)
	}

	history, err := m.History(ctx, o.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[len(history)-1].Stage != got.Status {
		t.Errorf("last stage = %q, want %q", history[len(history)-1].Stage, got.Status)
	}
	if history[0].Actor != "tester" {
		t.Errorf("Actor = %q, want tester", history[0].Actor)
	}
	if len(em.changes) != 2 || em.changes[1].old != StatusDesigning || em.changes[1].new != StatusApproved {
		t.Errorf("status events = %+v", em.changes)
	}
}

func TestTransitionSkippingStagesRejected(t *testing.T) {
	m, _, _ := testManager(t)
	ctx := context.Background()
	o := createOrder(t, m)

	_, err := m.Transition(ctx, TransitionRequest{OrderID: o.ID, Target: StatusProduction})
	if !apperr.Is(err, apperr.InvalidTransition) {
		t.Fatalf("err = %v, want InvalidTransition", err)
	}

	got, _ := m.Get(ctx, o.ID)
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	history, _ := m.History(ctx, o.ID)
	if len(history) != 0 {
		t.Errorf("history = %d entries, want 0", len(history))
	}
}

func TestTransitionErrors(t *testing.T) {
	m, _, _ := testManager(t)
	ctx := context.Background()
	o := createOrder(t, m)

	if _, err := m.Transition(ctx, TransitionRequest{OrderID: o.ID, Target: "shipped"}); !apperr.Is(err, apperr.InvalidArgument) {
		t.Errorf("unknown status err = %v, want InvalidArgument", err)
	}
	if _, err := m.Transition(ctx, TransitionRequest{OrderID: 9999, Target: StatusDesigning}); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("missing order err = %v, want NotFound", err)
	}
}

func TestCancelAndReopen(t *testing.T) {
	m, _, _ := testManager(t)
	o := createOrder(t, m)

	transition(t, m, o.ID, StatusDesigning)
	transition(t, m, o.ID, StatusCancelled)
	got := transition(t, m, o.ID, StatusPending)
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
}

func TestExpectedVersionConflict(t *testing.T) {
	m, _, _ := testManager(t)
	ctx := context.Background()
	o := createOrder(t, m)

	stale := o.Version
	transition(t, m, o.ID, StatusDesigning)

	_, err := m.Transition(ctx, TransitionRequest{OrderID: o.ID, Target: StatusApproved, ExpectedVersion: &stale})
	if !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
	current, ok := apperr.ExistingOf(err).(*store.Order)
	if !ok || current.Status != StatusDesigning {
		t.Errorf("existing = %+v, want order in designing", apperr.ExistingOf(err))
	}

	fresh := current.Version
	if _, err := m.Transition(ctx, TransitionRequest{OrderID: o.ID, Target: StatusApproved, ExpectedVersion: &fresh}); err != nil {
		t.Errorf("transition with current version: %v", err)
	}
}

func TestIdempotencyKeyReplay(t *testing.T) {
	m, em, _ := testManager(t)
	ctx := context.Background()
	o := createOrder(t, m)

	req := TransitionRequest{OrderID: o.ID, Target: StatusDesigning, IdempotencyKey: "move-1"}
	if _, err := m.Transition(ctx, req); err != nil {
		t.Fatalf("first transition: %v", err)
	}
	_, err := m.Transition(ctx, req)
	if !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("replay err = %v, want Conflict", err)
	}
	if existing, ok := apperr.ExistingOf(err).(*store.Order); !ok || existing.ID != o.ID {
		t.Errorf("existing = %+v, want order %d", apperr.ExistingOf(err), o.ID)
	}

	history, _ := m.History(ctx, o.ID)
	if len(history) != 1 {
		t.Errorf("history = %d entries, want 1", len(history))
	}
	if len(em.changes) != 1 {
		t.Errorf("status events = %d, want 1", len(em.changes))
	}
}

func TestForceCompleteBypassesTable(t *testing.T) {
	m, _, db := testManager(t)
	ctx := context.Background()
	o := createOrder(t, m)
	transition(t, m, o.ID, StatusDesigning)

	var changed bool
	var old string
	err := db.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		_, old, changed, err = m.ForceComplete(ctx, tx, o.ID, "passed", "inspector")
		return err
	})
	if err != nil {
		t.Fatalf("force complete: %v", err)
	}
	if !changed || old != StatusDesigning {
		t.Errorf("changed=%v old=%q, want true designing", changed, old)
	}

	got, _ := m.Get(ctx, o.ID)
	if got.Status != StatusCompleted || got.CompletedAt == nil {
		t.Errorf("Status = %q CompletedAt = %v, want completed with timestamp", got.Status, got.CompletedAt)
	}

	for _, target := range []string{StatusCancelled, StatusPending, StatusQualityControl} {
		if _, err := m.Transition(ctx, TransitionRequest{OrderID: o.ID, Target: target}); !apperr.Is(err, apperr.InvalidTransition) {
			t.Errorf("completed -> %s err = %v, want InvalidTransition", target, err)
		}
	}

	err = db.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		_, _, changed, err = m.ForceComplete(ctx, tx, o.ID, "again", "inspector")
		return err
	})
	if err != nil || changed {
		t.Errorf("second force complete changed=%v err=%v, want no-op", changed, err)
	}
	history, _ := m.History(ctx, o.ID)
	if len(history) != 2 {
		t.Errorf("history = %d entries, want 2", len(history))
	}
}

func TestDeleteOrder(t *testing.T) {
	m, em, db := testManager(t)
	ctx := context.Background()
	o := createOrder(t, m)
	transition(t, m, o.ID, StatusDesigning)
	if err := db.CreateTask(ctx, &store.ProductionTask{OrderID: o.ID, Title: "Cut board", Status: "pending", Priority: "normal"}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := m.Delete(ctx, o.ID, "admin"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, o.ID); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("get after delete err = %v, want NotFound", err)
	}
	tasks, _ := db.ListTasksByOrder(ctx, o.ID)
	if len(tasks) != 0 {
		t.Errorf("tasks = %d, want 0", len(tasks))
	}
	if len(em.deleted) != 1 {
		t.Errorf("deleted events = %d, want 1", len(em.deleted))
	}
	if err := m.Delete(ctx, o.ID, "admin"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("second delete err = %v, want NotFound", err)
	}
}
