package messaging

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"boxworks/config"
	"boxworks/store"

	"github.com/sirupsen/logrus"
)

type fakePublisher struct {
	fail   bool
	topics []string
}

func (p *fakePublisher) Publish(_ context.Context, topic string, _ []byte) error {
	if p.fail {
		return errors.New("broker down")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func testDrainer(t *testing.T, pub Publisher) (*OutboxDrainer, *store.DB) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewOutboxDrainer(db, pub, 0, logger), db
}

func TestDrainPublishesAndAcks(t *testing.T) {
	pub := &fakePublisher{}
	d, db := testDrainer(t, pub)
	ctx := context.Background()

	for _, typ := range []string{"order.created", "stock.low"} {
		if err := db.EnqueueOutbox(ctx, "boxworks.events", []byte(`{}`), typ); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	if sent := d.Drain(ctx); sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
	if len(pub.topics) != 2 {
		t.Errorf("published = %v", pub.topics)
	}
	if sent := d.Drain(ctx); sent != 0 {
		t.Errorf("second drain sent = %d, want 0", sent)
	}
}

func TestDrainFailureCountsRetries(t *testing.T) {
	pub := &fakePublisher{fail: true}
	d, db := testDrainer(t, pub)
	d.maxRetries = 2
	ctx := context.Background()

	if err := db.EnqueueOutbox(ctx, "boxworks.events", []byte(`{}`), "order.created"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Drain(ctx)
	d.Drain(ctx)

	pending, err := db.ListPendingOutbox(ctx, 100, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].Retries != 2 {
		t.Fatalf("pending = %+v, want one message with 2 retries", pending)
	}

	// over the ceiling: no longer picked up
	pub.fail = false
	if sent := d.Drain(ctx); sent != 0 {
		t.Errorf("sent = %d, want 0 past retry ceiling", sent)
	}
}
