// Package kafka publishes event envelopes to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
)

// Config for the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher implements contracts.Publisher over a kafka-go Writer.
// Messages are keyed by event id so retries of the same event land on the
// same partition and consumers can dedupe in order.
type Publisher struct {
	writer *kafkago.Writer
}

// New creates a Kafka publisher.
func New(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers must not be empty")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic must not be empty")
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}

	return &Publisher{writer: writer}, nil
}

var _ contracts.Publisher = (*Publisher)(nil)

// Publish writes the envelope as a JSON document keyed by event id.
func (p *Publisher) Publish(ctx context.Context, env *contracts.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize envelope for event %s: %w", env.EventID, err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(env.EventID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", env.EventID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
