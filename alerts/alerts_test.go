package alerts

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"boxworks/apperr"
	"boxworks/config"
	"boxworks/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type mockEmitter struct {
	mu      sync.Mutex
	created int
	changes []string
}

func (e *mockEmitter) EmitAlertCreated(*store.ReorderAlert, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created++
}
func (e *mockEmitter) EmitAlertStatusChanged(a *store.ReorderAlert, oldStatus, newStatus, actor string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = append(e.changes, oldStatus+"->"+newStatus)
}

type fakeLocker struct {
	keys     []string
	released int
	fail     bool
}

func (l *fakeLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	if l.fail {
		return nil, errors.New("redis unavailable")
	}
	return func() { l.released++ }, nil
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

func testDeduplicator(t *testing.T, locker Locker) (*Deduplicator, *mockEmitter, *store.DB) {
	t.Helper()
	db := testDB(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	em := &mockEmitter{}
	return NewDeduplicator(db, em, locker, PriorityMedium, logger), em, db
}

func seedMaterial(t *testing.T, db *store.DB, name string, stock, reorder int64) *store.Material {
	t.Helper()
	m := &store.Material{Name: name, Unit: "pcs", ReorderLevel: decimal.NewFromInt(reorder), UnitCost: decimal.NewFromInt(1)}
	if err := db.CreateMaterial(context.Background(), m); err != nil {
		t.Fatalf("create material: %v", err)
	}
	bookStock(t, db, m.ID, stock)
	return m
}

// bookStock sets a material's stock through an adjustment row so the
// ledger still sums to the stored stock.
func bookStock(t *testing.T, db *store.DB, materialID, stock int64) {
	t.Helper()
	ctx := context.Background()
	level := decimal.NewFromInt(stock)
	err := db.WithTx(ctx, func(tx *store.Tx) error {
		m, err := tx.GetMaterialForUpdate(ctx, materialID)
		if err != nil {
			return err
		}
		mv := &store.Movement{
			MaterialID: materialID,
			Type:       "adjustment",
			Quantity:   level,
			Delta:      level.Sub(m.CurrentStock),
			StockAfter: level,
			Notes:      "test stock",
		}
		if err := tx.InsertMovement(ctx, mv); err != nil {
			return err
		}
		return tx.SetMaterialStock(ctx, materialID, level)
	})
	if err != nil {
		t.Fatalf("book stock: %v", err)
	}
}

func TestCreateSnapshotsStock(t *testing.T) {
	d, em, db := testDeduplicator(t, nil)
	ctx := context.Background()
	m := seedMaterial(t, db, "Kraft board", 3, 10)

	a, err := d.Create(ctx, CreateRequest{MaterialID: m.ID, Notes: "running low", Actor: "sam"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Status != StatusPending || a.Priority != PriorityMedium {
		t.Errorf("alert = %s/%s, want pending/medium", a.Status, a.Priority)
	}
	if !a.StockSnapshot.Equal(decimal.NewFromInt(3)) || !a.ReorderLevelSnapshot.Equal(decimal.NewFromInt(10)) {
		t.Errorf("snapshot = %s/%s, want 3/10", a.StockSnapshot, a.ReorderLevelSnapshot)
	}
	if a.CreatedBy != "sam" || a.MaterialName != "Kraft board" {
		t.Errorf("CreatedBy=%q MaterialName=%q", a.CreatedBy, a.MaterialName)
	}

	// snapshot does not follow live stock
	bookStock(t, db, m.ID, 50)
	got, _ := d.Get(ctx, a.ID)
	if !got.StockSnapshot.Equal(decimal.NewFromInt(3)) {
		t.Errorf("StockSnapshot = %s after restock, want 3", got.StockSnapshot)
	}
	if em.created != 1 {
		t.Errorf("created events = %d, want 1", em.created)
	}
}

func TestDuplicateActiveAlertConflicts(t *testing.T) {
	d, em, db := testDeduplicator(t, nil)
	ctx := context.Background()
	m := seedMaterial(t, db, "Ribbon", 1, 5)

	first, err := d.Create(ctx, CreateRequest{MaterialID: m.ID})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err = d.Create(ctx, CreateRequest{MaterialID: m.ID, Priority: PriorityHigh})
	if !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("second err = %v, want Conflict", err)
	}
	existing, ok := apperr.ExistingOf(err).(*store.ReorderAlert)
	if !ok || existing.ID != first.ID {
		t.Errorf("existing = %+v, want alert %d", apperr.ExistingOf(err), first.ID)
	}

	all, _ := d.List(ctx, "", 0)
	if len(all) != 1 {
		t.Errorf("alerts = %d, want 1", len(all))
	}
	if em.created != 1 {
		t.Errorf("created events = %d, want 1", em.created)
	}

	// acknowledged still blocks; ordered frees the slot
	if _, err := d.UpdateStatus(ctx, first.ID, StatusAcknowledged, "", "sam"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if _, err := d.Create(ctx, CreateRequest{MaterialID: m.ID}); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("create while acknowledged err = %v, want Conflict", err)
	}
	if _, err := d.UpdateStatus(ctx, first.ID, StatusOrdered, "PO 118", "sam"); err != nil {
		t.Fatalf("order: %v", err)
	}
	second, err := d.Create(ctx, CreateRequest{MaterialID: m.ID})
	if err != nil {
		t.Fatalf("create after ordered: %v", err)
	}

	// reactivating the first alert would leave two active alerts
	_, err = d.UpdateStatus(ctx, first.ID, StatusPending, "", "sam")
	if !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("reactivate err = %v, want Conflict", err)
	}
	if existing, ok := apperr.ExistingOf(err).(*store.ReorderAlert); !ok || existing.ID != second.ID {
		t.Errorf("existing = %+v, want alert %d", apperr.ExistingOf(err), second.ID)
	}
}

func TestUpdateStatusStampsTimestamps(t *testing.T) {
	d, em, db := testDeduplicator(t, nil)
	ctx := context.Background()
	m := seedMaterial(t, db, "Tissue", 0, 2)
	a, err := d.Create(ctx, CreateRequest{MaterialID: m.ID, Notes: "empty"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ack, err := d.UpdateStatus(ctx, a.ID, StatusAcknowledged, "", "lee")
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if ack.AcknowledgedBy != "lee" || ack.AcknowledgedAt == nil {
		t.Errorf("AcknowledgedBy=%q AcknowledgedAt=%v", ack.AcknowledgedBy, ack.AcknowledgedAt)
	}
	if ack.Notes != "empty" {
		t.Errorf("Notes = %q, want kept", ack.Notes)
	}

	resolved, err := d.UpdateStatus(ctx, a.ID, StatusResolved, "restocked", "lee")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ResolvedAt == nil || resolved.Notes != "restocked" {
		t.Errorf("ResolvedAt=%v Notes=%q", resolved.ResolvedAt, resolved.Notes)
	}

	// no transition graph: resolved may go straight back to pending
	if _, err := d.UpdateStatus(ctx, a.ID, StatusPending, "", "lee"); err != nil {
		t.Errorf("reopen: %v", err)
	}
	if _, err := d.UpdateStatus(ctx, a.ID, "closed", "", "lee"); !apperr.Is(err, apperr.InvalidArgument) {
		t.Errorf("bad status err = %v, want InvalidArgument", err)
	}
	if _, err := d.UpdateStatus(ctx, 999, StatusResolved, "", "lee"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("missing alert err = %v, want NotFound", err)
	}
	if len(em.changes) != 3 {
		t.Errorf("status events = %v, want 3", em.changes)
	}
}

func TestCreateValidation(t *testing.T) {
	d, _, db := testDeduplicator(t, nil)
	ctx := context.Background()
	m := seedMaterial(t, db, "Glue", 1, 1)

	if _, err := d.Create(ctx, CreateRequest{MaterialID: m.ID, Priority: "asap"}); !apperr.Is(err, apperr.InvalidArgument) {
		t.Errorf("bad priority err = %v, want InvalidArgument", err)
	}
	if _, err := d.Create(ctx, CreateRequest{MaterialID: 999}); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("missing material err = %v, want NotFound", err)
	}
}

func TestRaiseIfLow(t *testing.T) {
	d, _, db := testDeduplicator(t, nil)
	ctx := context.Background()
	healthy := seedMaterial(t, db, "Labels", 20, 5)
	low := seedMaterial(t, db, "Magnets", 5, 5)

	a, created, err := d.RaiseIfLow(ctx, healthy.ID, "system")
	if err != nil || a != nil || created {
		t.Errorf("healthy: alert=%v created=%v err=%v, want nothing", a, created, err)
	}

	a, created, err = d.RaiseIfLow(ctx, low.ID, "system")
	if err != nil || !created || a == nil {
		t.Fatalf("low: alert=%v created=%v err=%v", a, created, err)
	}
	again, created, err := d.RaiseIfLow(ctx, low.ID, "system")
	if err != nil || created || again == nil || again.ID != a.ID {
		t.Errorf("repeat: alert=%v created=%v err=%v, want existing %d", again, created, err, a.ID)
	}
}

func TestLockerUsedAndFailureTolerated(t *testing.T) {
	locker := &fakeLocker{}
	d, _, db := testDeduplicator(t, locker)
	ctx := context.Background()
	m := seedMaterial(t, db, "Foam", 0, 1)

	if _, err := d.Create(ctx, CreateRequest{MaterialID: m.ID}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(locker.keys) != 1 || locker.released != 1 {
		t.Errorf("lock keys=%v released=%d", locker.keys, locker.released)
	}

	locker.fail = true
	other := seedMaterial(t, db, "Twine", 0, 1)
	if _, err := d.Create(ctx, CreateRequest{MaterialID: other.ID}); err != nil {
		t.Errorf("create without lock: %v", err)
	}
}

func TestConcurrentCreateKeepsOneActive(t *testing.T) {
	d, em, db := testDeduplicator(t, nil)
	ctx := context.Background()
	m := seedMaterial(t, db, "Sticker sheets", 0, 4)

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  []*store.ReorderAlert
		existing []*store.ReorderAlert
		other    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := d.Create(ctx, CreateRequest{MaterialID: m.ID, Actor: "sam"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created = append(created, a)
			case apperr.Is(err, apperr.Conflict):
				if prior, ok := apperr.ExistingOf(err).(*store.ReorderAlert); ok {
					existing = append(existing, prior)
				} else {
					other = append(other, err)
				}
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if len(created) != 1 || len(existing) != workers-1 {
		t.Fatalf("created=%d conflicts=%d, want 1/%d", len(created), len(existing), workers-1)
	}
	for _, prior := range existing {
		if prior.ID != created[0].ID {
			t.Errorf("conflict carried alert %d, want %d", prior.ID, created[0].ID)
		}
	}
	all, _ := d.List(ctx, "", 0)
	if len(all) != 1 {
		t.Errorf("alerts = %d, want 1", len(all))
	}
	if em.created != 1 {
		t.Errorf("created events = %d, want 1", em.created)
	}
}
