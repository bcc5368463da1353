// Package kafka publishes order events for downstream consumers. Delivery is
// confirmed synchronously so the outbox relay only marks a row published once
// the broker has accepted it.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const flushTimeoutMs = 10_000

type ProducerConfig struct {
	Brokers     string
	Acks        string
	LingerMs    int
	Compression string
}

type Producer struct {
	inner  *kafka.Producer
	logger *log.Logger
}

func NewProducer(cfg ProducerConfig, logger *log.Logger) (*Producer, error) {
	if cfg.Brokers == "" {
		return nil, errors.New("kafka: no brokers configured")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.Acks == "" {
		cfg.Acks = "all"
	}
	if cfg.Compression == "" {
		cfg.Compression = "lz4"
	}

	inner, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              cfg.Acks,
		// Outbox rows are keyed by payment intent; idempotence keeps broker
		// retries from duplicating or reordering a checkout's lifecycle.
		"enable.idempotence": true,
		"linger.ms":          cfg.LingerMs,
		"compression.type":   cfg.Compression,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka: init producer: %w", err)
	}
	return &Producer{inner: inner, logger: logger}, nil
}

// Publish enqueues one event and blocks until the broker acknowledges it or
// the context ends.
func (p *Producer) Publish(ctx context.Context, topic string, key, val []byte, headers []kafka.Header) error {
	deliveries := make(chan kafka.Event, 1)
	err := p.inner.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          val,
		Headers:        headers,
	}, deliveries)
	if err != nil {
		return fmt.Errorf("kafka: enqueue to %s: %w", topic, err)
	}

	select {
	case ev := <-deliveries:
		return deliveryResult(ev)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func deliveryResult(ev kafka.Event) error {
	switch e := ev.(type) {
	case *kafka.Message:
		if e.TopicPartition.Error != nil {
			return fmt.Errorf("kafka: deliver to %s: %w", *e.TopicPartition.Topic, e.TopicPartition.Error)
		}
		return nil
	case kafka.Error:
		return fmt.Errorf("kafka: %w", e)
	default:
		return fmt.Errorf("kafka: unexpected delivery event %T", ev)
	}
}

func (p *Producer) Close() {
	if n := p.inner.Flush(flushTimeoutMs); n > 0 {
		p.logger.Printf("kafka producer: %d events unflushed after %dms", n, flushTimeoutMs)
	}
	p.inner.Close()
}
