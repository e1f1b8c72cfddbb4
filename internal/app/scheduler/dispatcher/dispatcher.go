// Package dispatcher runs the liveness loop of the scheduling engine: poll
// the due-time index, claim due events, publish, finalize.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
	"github.com/light-bringer/scheduler-service/internal/pkg/backoff"
	"github.com/light-bringer/scheduler-service/internal/pkg/clock"
)

// leaseMargin is the slack a lease must have beyond the publish timeout so
// that legitimate in-flight work is not reclaimed mid-publish.
const leaseMargin = 5 * time.Second

// Config holds the dispatcher parameters.
type Config struct {
	// WorkerID prefixes the lease owner of every worker in this process.
	WorkerID string

	PollInterval   time.Duration
	BatchSize      int64
	Concurrency    int
	LeaseDuration  time.Duration
	PublishTimeout time.Duration
	MaxAttempts    int64
	Backoff        backoff.Config
}

// Validate checks the parameters for values that would break the engine's
// liveness or lease guarantees.
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return errors.New("worker id must not be empty")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	if c.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	if c.PublishTimeout <= 0 {
		return errors.New("publish timeout must be positive")
	}
	if c.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if c.LeaseDuration < c.PublishTimeout+leaseMargin {
		return fmt.Errorf("lease duration %s must exceed publish timeout %s by at least %s",
			c.LeaseDuration, c.PublishTimeout, leaseMargin)
	}
	return nil
}

// Dispatcher is a poller plus a bounded pool of workers. The poller feeds
// due entries through an in-flight set so the same id is never handed to
// two local workers; cross-process exclusion is the claim manager's job.
type Dispatcher struct {
	cfg       Config
	index     contracts.DueIndex
	claims    contracts.ClaimManager
	publisher contracts.Publisher
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *Metrics

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates a Dispatcher. Run validates the config.
func New(
	cfg Config,
	index contracts.DueIndex,
	claims contracts.ClaimManager,
	publisher contracts.Publisher,
	clk clock.Clock,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		index:     index,
		claims:    claims,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		metrics:   &Metrics{},
		inflight:  make(map[string]struct{}),
	}
}

// Metrics exposes the dispatcher's counters.
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Run polls and dispatches until ctx is canceled. A worker terminated
// mid-processing abandons its lease; expiry is the recovery mechanism, so
// shutdown needs no coordination beyond canceling ctx.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid dispatcher config: %w", err)
	}

	workCh := make(chan contracts.DueEntry)
	g, ctx := errgroup.WithContext(ctx)

	for n := 0; n < d.cfg.Concurrency; n++ {
		workerID := fmt.Sprintf("%s-%d", d.cfg.WorkerID, n)
		g.Go(func() error {
			d.workLoop(ctx, workerID, workCh)
			return nil
		})
	}

	g.Go(func() error {
		defer close(workCh)
		return d.pollLoop(ctx, workCh)
	})

	d.logger.Info("dispatcher started",
		zap.String("worker_id", d.cfg.WorkerID),
		zap.Duration("poll_interval", d.cfg.PollInterval),
		zap.Int("concurrency", d.cfg.Concurrency),
	)

	return g.Wait()
}

// pollLoop queries the due index on a fixed cadence and feeds the workers.
// Storage errors are fatal to the current tick only.
func (d *Dispatcher) pollLoop(ctx context.Context, workCh chan<- contracts.DueEntry) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			d.poll(ctx, workCh)
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context, workCh chan<- contracts.DueEntry) {
	now := d.clock.Now()

	entries, err := d.index.DueBefore(ctx, now, d.cfg.BatchSize)
	if err != nil {
		d.metrics.tickErrors.Add(1)
		d.logger.Warn("due-index scan failed, retrying next tick", zap.Error(err))
		return
	}
	d.metrics.ticks.Add(1)
	d.feed(ctx, workCh, entries)

	// Claiming removes the due-index entry, so a processing event whose
	// worker died is invisible to the index scan. The expired-lease sweep
	// is what rediscovers it; workers reclaim through the usual TryClaim.
	expired, err := d.claims.ExpiredLeases(ctx, now, d.cfg.BatchSize)
	if err != nil {
		d.metrics.tickErrors.Add(1)
		d.logger.Warn("expired-lease scan failed, retrying next tick", zap.Error(err))
		return
	}
	d.metrics.reclaimed.Add(d.feed(ctx, workCh, expired))
}

// feed hands entries to the workers through the in-flight gate and returns
// how many were handed over.
func (d *Dispatcher) feed(ctx context.Context, workCh chan<- contracts.DueEntry, entries []contracts.DueEntry) uint64 {
	var fed uint64
	for _, entry := range entries {
		if !d.markInflight(entry.EventID) {
			continue
		}
		select {
		case workCh <- entry:
			fed++
		case <-ctx.Done():
			d.clearInflight(entry.EventID)
			return fed
		}
	}
	return fed
}

func (d *Dispatcher) workLoop(ctx context.Context, workerID string, workCh <-chan contracts.DueEntry) {
	for entry := range workCh {
		// On shutdown the channel is drained without claiming, so no event
		// spends an attempt on a context that cannot publish.
		if ctx.Err() == nil {
			d.process(ctx, workerID, entry.EventID)
		}
		d.clearInflight(entry.EventID)
	}
}

// process runs one event through claim, publish, finalize. Claim races
// and lease losses are internal and recovered here, never surfaced.
func (d *Dispatcher) process(ctx context.Context, workerID, id string) {
	if ctx.Err() != nil {
		return
	}

	event, err := d.claims.TryClaim(ctx, id, workerID, d.cfg.LeaseDuration)
	switch {
	case errors.Is(err, domain.ErrAlreadyClaimed):
		d.metrics.conflicts.Add(1)
		return
	case errors.Is(err, domain.ErrEventNotFound):
		// Dangling index entry: the event was removed but its index row
		// survived. Heal the index.
		d.metrics.healed.Add(1)
		if rerr := d.index.Remove(ctx, id); rerr != nil {
			d.logger.Warn("failed to heal dangling index entry", zap.String("event_id", id), zap.Error(rerr))
		}
		return
	case err != nil:
		d.logger.Warn("claim attempt failed", zap.String("event_id", id), zap.Error(err))
		return
	}
	d.metrics.claimed.Add(1)

	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	pubErr := d.publisher.Publish(pubCtx, &contracts.Envelope{
		EventID:     event.ID(),
		Kind:        event.Kind(),
		Payload:     event.Payload(),
		Metadata:    event.Metadata(),
		ScheduledAt: event.ScheduledAt(),
	})
	cancel()

	if pubErr == nil {
		d.finalize(ctx, workerID, id, contracts.OutcomeCompleted, "")
		d.metrics.published.Add(1)
		return
	}

	if ctx.Err() != nil {
		// The publish lost to shutdown, not to the broker. Abandon the
		// lease instead of spending the attempt; expiry makes the event
		// claimable again.
		d.logger.Info("publish interrupted by shutdown, lease abandoned", zap.String("event_id", id))
		return
	}

	if event.AttemptCount() >= d.cfg.MaxAttempts {
		d.finalize(ctx, workerID, id, contracts.OutcomeFailed, pubErr.Error())
		d.metrics.deadLettered.Add(1)
		d.logger.Warn("event dead-lettered",
			zap.String("event_id", id),
			zap.Int64("attempts", event.AttemptCount()),
			zap.Error(pubErr),
		)
		return
	}

	nextRunAt := backoff.NextRunAt(d.clock.Now(), event.AttemptCount(), d.cfg.Backoff, nil)
	if err := d.claims.Requeue(ctx, id, workerID, nextRunAt, pubErr.Error()); err != nil {
		d.logStaleFinalize("requeue", id, err)
		return
	}
	d.metrics.requeued.Add(1)
	d.logger.Info("publish failed, retry scheduled",
		zap.String("event_id", id),
		zap.Int64("attempt", event.AttemptCount()),
		zap.Time("next_run_at", nextRunAt),
		zap.Error(pubErr),
	)
}

func (d *Dispatcher) finalize(ctx context.Context, workerID, id string, outcome contracts.Outcome, lastError string) {
	if err := d.claims.Release(ctx, id, workerID, outcome, lastError); err != nil {
		d.logStaleFinalize(string(outcome), id, err)
	}
}

// logStaleFinalize records a finalize that lost to a newer lease owner or
// failed on storage. Either way the event's fate belongs to someone else
// now; the lease mechanism has already recovered it or will.
func (d *Dispatcher) logStaleFinalize(op, id string, err error) {
	if errors.Is(err, domain.ErrLeaseLost) {
		d.logger.Info("lease lost before finalize", zap.String("op", op), zap.String("event_id", id))
		return
	}
	d.logger.Warn("finalize failed", zap.String("op", op), zap.String("event_id", id), zap.Error(err))
}

func (d *Dispatcher) markInflight(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.inflight[id]; ok {
		return false
	}
	d.inflight[id] = struct{}{}
	return true
}

func (d *Dispatcher) clearInflight(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.inflight, id)
}
