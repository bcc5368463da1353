// Package outbox ships order events from the database to Kafka. Events are
// written in the same transaction as the state change they describe; the
// relay polls for unpublished rows and publishes them with bookkeeping for
// retries.
package outbox

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	outboxrepo "storefront-api/internal/repository/outbox"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, key, val []byte, headers []kafka.Header) error
}

type Relay struct {
	repo         outboxrepo.Repository
	publisher    Publisher
	logger       *log.Logger
	batchSize    int
	pollInterval time.Duration
}

func NewRelay(repo outboxrepo.Repository, publisher Publisher, logger *log.Logger, batchSize int, pollInterval time.Duration) *Relay {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Relay{
		repo:         repo,
		publisher:    publisher,
		logger:       logger,
		batchSize:    batchSize,
		pollInterval: pollInterval,
	}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Printf("outbox relay started batch_size=%d poll_interval=%s", r.batchSize, r.pollInterval)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Printf("outbox relay stopping")
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := r.repo.Drain(ctx, r.batchSize, r.publish)
		if err != nil {
			r.logger.Printf("outbox relay: batch failed: %v", err)
			return
		}
		if processed < r.batchSize {
			return
		}
	}
}

func (r *Relay) publish(ctx context.Context, msg outboxrepo.Message) error {
	headers := []kafka.Header{
		{Key: "event-type", Value: []byte(msg.EventType)},
		{Key: "event-id", Value: []byte(msg.EventID.String())},
	}
	if err := r.publisher.Publish(ctx, msg.Topic, []byte(msg.Key), msg.Payload, headers); err != nil {
		r.logger.Printf("outbox relay: publish id=%d type=%s failed: %v", msg.ID, msg.EventType, err)
		return err
	}
	return nil
}
