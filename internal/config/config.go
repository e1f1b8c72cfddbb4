// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Publisher driver names accepted by PUBLISHER_DRIVER.
const (
	DriverKafka       = "kafka"
	DriverRedisStream = "redis-stream"
	DriverMemory      = "memory"
)

// Config holds the scheduler service configuration.
type Config struct {
	SpannerDatabase string `env:"SPANNER_DATABASE,notEmpty"`

	PublisherDriver string `env:"PUBLISHER_DRIVER" envDefault:"kafka"`

	KafkaBrokers []string `env:"KAFKA_BOOTSTRAP_SERVERS" envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"scheduled-events"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisStream   string `env:"REDIS_STREAM" envDefault:"scheduled-events"`

	WorkerID       string        `env:"WORKER_ID"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	BatchSize      int64         `env:"DISPATCH_BATCH_SIZE" envDefault:"100"`
	Concurrency    int           `env:"DISPATCH_CONCURRENCY" envDefault:"8"`
	LeaseDuration  time.Duration `env:"LEASE_DURATION" envDefault:"30s"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"5s"`
	MaxAttempts    int64         `env:"MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1s"`
	RetryMaxDelay  time.Duration `env:"RETRY_MAX_DELAY" envDefault:"10s"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if c.WorkerID == "" {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "scheduler"
		}
		c.WorkerID = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects configurations the engine cannot run safely with.
// The dispatcher re-checks its own parameters; the checks here cover the
// publisher wiring.
func (c *Config) Validate() error {
	switch c.PublisherDriver {
	case DriverKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("kafka driver selected but KAFKA_BOOTSTRAP_SERVERS is empty")
		}
		if c.KafkaTopic == "" {
			return fmt.Errorf("kafka driver selected but KAFKA_TOPIC is empty")
		}
	case DriverRedisStream:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis-stream driver selected but REDIS_ADDR is empty")
		}
		if c.RedisStream == "" {
			return fmt.Errorf("redis-stream driver selected but REDIS_STREAM is empty")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown publisher driver %q", c.PublisherDriver)
	}
	return nil
}
