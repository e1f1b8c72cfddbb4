// Package backoff computes retry delays for failed publish attempts:
// exponential growth with a cap, plus full jitter so a burst of failures
// does not come back due at the same instant.
package backoff

import (
	"math/rand"
	"time"
)

// Config holds the backoff parameters.
type Config struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultConfig returns the standard retry delays.
func DefaultConfig() Config {
	return Config{
		BaseDelay: 1 * time.Second,
		MaxDelay:  10 * time.Second,
	}
}

// NextRunAt computes the next retry time after a failed attempt.
// attempt is 1-based: attempt 1 retries after at most BaseDelay.
// The delay doubles per attempt, capped at MaxDelay, then a random
// jitter in [0, delay] is applied.
func NextRunAt(now time.Time, attempt int64, cfg Config, rng *rand.Rand) time.Time {
	if attempt < 1 {
		attempt = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 1 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}

	delay := cfg.BaseDelay
	for i := int64(1); i < attempt && delay < cfg.MaxDelay; i++ {
		delay *= 2
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	jitter := time.Duration(rng.Int63n(int64(delay) + 1))

	return now.Add(jitter)
}
