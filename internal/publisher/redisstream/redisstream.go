// Package redisstream publishes event envelopes to a Redis Stream.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
)

// Stream field names. Consumers dedupe on event_id.
const (
	fieldEventID     = "event_id"
	fieldKind        = "kind"
	fieldPayload     = "payload"
	fieldMetadata    = "metadata"
	fieldScheduledAt = "scheduled_at"
)

// Config for the Redis Streams publisher.
type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string

	// MaxLenApprox trims the stream approximately to this length on every
	// XADD. Zero disables trimming.
	MaxLenApprox int64
}

// Publisher implements contracts.Publisher over XADD.
type Publisher struct {
	client *redis.Client
	cfg    Config
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Stream == "" {
		return nil, fmt.Errorf("redis stream name must not be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Publisher{client: client, cfg: cfg}, nil
}

var _ contracts.Publisher = (*Publisher)(nil)

// Publish appends the envelope to the stream.
func (p *Publisher) Publish(ctx context.Context, env *contracts.Envelope) error {
	metadata, err := marshalMetadata(env.Metadata)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.cfg.Stream,
		Values: map[string]interface{}{
			fieldEventID:     env.EventID,
			fieldKind:        env.Kind,
			fieldPayload:     []byte(env.Payload),
			fieldMetadata:    metadata,
			fieldScheduledAt: env.ScheduledAt.Format(time.RFC3339Nano),
		},
	}
	if p.cfg.MaxLenApprox > 0 {
		args.MaxLen = p.cfg.MaxLenApprox
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s to stream %s: %w", env.EventID, p.cfg.Stream, err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metadata: %w", err)
	}
	return data, nil
}
