package outbox

import (
	"context"

	"github.com/google/uuid"
)

// Message is one domain event awaiting publication. Rows are written inside
// the transaction that produced the state change they describe.
type Message struct {
	ID        int64
	EventID   uuid.UUID
	Topic     string
	Key       string
	EventType string
	Payload   []byte
}

// Repository drains pending messages for the relay.
type Repository interface {
	Drain(ctx context.Context, batchSize int, publish func(ctx context.Context, msg Message) error) (int, error)
}
