package messaging

import (
	"context"
	"sync"
	"time"

	"boxworks/store"

	"github.com/sirupsen/logrus"
)

const (
	drainBatch        = 50
	DefaultMaxRetries = 10
	sentRetention     = 7 * 24 * time.Hour
)

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db         *store.DB
	pub        Publisher
	interval   time.Duration
	maxRetries int
	log        logrus.FieldLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOutboxDrainer(db *store.DB, pub Publisher, interval time.Duration, logger logrus.FieldLogger) *OutboxDrainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxDrainer{
		db:         db,
		pub:        pub,
		interval:   interval,
		maxRetries: DefaultMaxRetries,
		log:        logger.WithField("module", "outbox"),
	}
}

func (d *OutboxDrainer) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.run(ctx)
}

// Stop ends the drain loop and waits for an in-flight drain to finish.
func (d *OutboxDrainer) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *OutboxDrainer) run(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	purge := time.NewTicker(time.Hour)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		case <-purge.C:
			if n, err := d.db.PurgeSentOutbox(ctx, sentRetention); err != nil {
				d.log.WithError(err).Warn("purge sent messages")
			} else if n > 0 {
				d.log.WithField("count", n).Debug("purged sent messages")
			}
		}
	}
}

// Drain publishes one batch of pending messages and returns how many were sent.
func (d *OutboxDrainer) Drain(ctx context.Context) int {
	msgs, err := d.db.ListPendingOutbox(ctx, d.maxRetries, drainBatch)
	if err != nil {
		d.log.WithError(err).Warn("list pending")
		return 0
	}
	sent := 0
	for _, msg := range msgs {
		if err := d.pub.Publish(ctx, msg.Topic, msg.Payload); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{"topic": msg.Topic, "id": msg.ID, "retries": msg.Retries + 1}).Warn("publish failed")
			if err := d.db.IncrementOutboxRetries(ctx, msg.ID); err != nil {
				d.log.WithError(err).WithField("id", msg.ID).Error("increment retries")
			}
			continue
		}
		if err := d.db.AckOutbox(ctx, msg.ID); err != nil {
			d.log.WithError(err).WithField("id", msg.ID).Error("ack message")
			continue
		}
		sent++
	}
	return sent
}
