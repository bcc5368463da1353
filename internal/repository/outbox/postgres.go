package outbox

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxRetries = 5

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

// Insert queues a message inside the caller's transaction.
func Insert(ctx context.Context, tx pgx.Tx, msg Message) error {
	const q = `
INSERT INTO outbox (event_id, topic, key, event_type, payload)
VALUES ($1, $2, $3, $4, $5)
`
	_, err := tx.Exec(ctx, q, msg.EventID, msg.Topic, msg.Key, msg.EventType, msg.Payload)
	return err
}

// Drain claims a batch of unpublished messages with row locks, hands each to
// publish, and records the outcome. Concurrent relays skip each other's rows.
func (r *postgresRepo) Drain(ctx context.Context, batchSize int, publish func(ctx context.Context, msg Message) error) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	const q = `
SELECT id, event_id, topic, key, event_type, payload
FROM outbox
WHERE published_at IS NULL AND retry_count < $2
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED
`
	rows, err := tx.Query(ctx, q, batchSize, maxRetries)
	if err != nil {
		return 0, err
	}

	var msgs []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.EventID, &msg.Topic, &msg.Key, &msg.EventType, &msg.Payload); err != nil {
			rows.Close()
			return 0, err
		}
		msgs = append(msgs, msg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, msg := range msgs {
		if pubErr := publish(ctx, msg); pubErr != nil {
			if _, err := tx.Exec(ctx, `
UPDATE outbox
SET retry_count = retry_count + 1, last_error = $2
WHERE id = $1
`, msg.ID, pubErr.Error()); err != nil {
				return 0, err
			}
			continue
		}
		if _, err := tx.Exec(ctx, `
UPDATE outbox
SET published_at = now()
WHERE id = $1
`, msg.ID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(msgs), nil
}
