package store

import (
	"context"
	"time"
)

// OutboxMessage is an encoded event waiting for the broker.
type OutboxMessage struct {
	ID        int64
	Topic     string
	Payload   []byte
	MsgType   string
	Retries   int
	CreatedAt time.Time
	SentAt    *time.Time
}

func (c *queries) EnqueueOutbox(ctx context.Context, topic string, payload []byte, msgType string) error {
	_, err := c.q.ExecContext(ctx, c.Q(`INSERT INTO outbox (topic, payload, msg_type) VALUES (?, ?, ?)`),
		topic, payload, msgType)
	return err
}

// ListPendingOutbox returns unsent messages under the retry ceiling, oldest first.
func (c *queries) ListPendingOutbox(ctx context.Context, maxRetries, limit int) ([]*OutboxMessage, error) {
	rows, err := c.q.QueryContext(ctx, c.Q(`SELECT id, topic, payload, msg_type, retries, created_at FROM outbox WHERE sent_at IS NULL AND retries < ? ORDER BY id LIMIT ?`), maxRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []*OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		var createdAt any
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.MsgType, &m.Retries, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (c *queries) AckOutbox(ctx context.Context, id int64) error {
	_, err := c.q.ExecContext(ctx, c.Q(`UPDATE outbox SET sent_at=datetime('now','localtime') WHERE id=?`), id)
	return err
}

func (c *queries) IncrementOutboxRetries(ctx context.Context, id int64) error {
	_, err := c.q.ExecContext(ctx, c.Q(`UPDATE outbox SET retries=retries+1 WHERE id=?`), id)
	return err
}

// PurgeSentOutbox deletes delivered messages older than the cutoff.
func (c *queries) PurgeSentOutbox(ctx context.Context, olderThan time.Duration) (int64, error) {
	var cutoff any = time.Now().Add(-olderThan)
	if c.driver == "sqlite" {
		cutoff = cutoff.(time.Time).Format("2006-01-02 15:04:05")
	}
	res, err := c.q.ExecContext(ctx, c.Q(`DELETE FROM outbox WHERE sent_at IS NOT NULL AND sent_at < ?`), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
