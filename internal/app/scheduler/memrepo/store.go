// Package memrepo provides in-memory implementations of the event store,
// due-time index and claim manager. It backs dev mode and the engine test
// suites, which must not require a Spanner emulator.
//
// A single mutex guards both structures, so every operation observes the
// same atomicity the Spanner backend gets from read-write transactions.
package memrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
	"github.com/light-bringer/scheduler-service/internal/pkg/clock"
)

// indexEntry is one due-index row. seq preserves insertion order for
// entries with equal scheduled times.
type indexEntry struct {
	scheduledAt time.Time
	seq         uint64
}

// Store holds events and their due-index entries in memory.
type Store struct {
	mu       sync.Mutex
	clock    clock.Clock
	events   map[string]*domain.Event
	eventSeq map[string]uint64
	index    map[string]indexEntry
	seq      uint64
}

// New creates an empty in-memory store.
func New(clk clock.Clock) *Store {
	return &Store{
		clock:    clk,
		events:   make(map[string]*domain.Event),
		eventSeq: make(map[string]uint64),
		index:    make(map[string]indexEntry),
	}
}

var (
	_ contracts.EventStore   = (*Store)(nil)
	_ contracts.ClaimManager = (*Store)(nil)
	_ contracts.DueIndex     = (*indexView)(nil)
)

// Insert persists a new event and, when scheduled, its index entry.
func (s *Store) Insert(_ context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[event.ID()]; exists {
		return fmt.Errorf("event %s already exists", event.ID())
	}

	s.seq++
	s.events[event.ID()] = cloneEvent(event)
	s.eventSeq[event.ID()] = s.seq
	if event.Status() == domain.StatusScheduled {
		s.indexLocked(event.ID(), event.ScheduledAt())
	}
	return nil
}

// Get returns a copy of the stored event.
func (s *Store) Get(_ context.Context, id string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return cloneEvent(event), nil
}

// Update replaces the stored state and reconciles the index entry.
func (s *Store) Update(_ context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID()]; !ok {
		return domain.ErrEventNotFound
	}

	s.events[event.ID()] = cloneEvent(event)
	if event.Status() == domain.StatusScheduled {
		s.indexLocked(event.ID(), event.ScheduledAt())
	} else {
		delete(s.index, event.ID())
	}
	return nil
}

// UpdateStatus is a compare-and-swap on status.
func (s *Store) UpdateStatus(_ context.Context, id string, from, to domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	if event.Status() != from {
		return domain.ErrStatusConflict
	}

	if err := event.OverrideStatus(to, s.clock.Now()); err != nil {
		return err
	}
	if to == domain.StatusScheduled {
		s.indexLocked(id, event.ScheduledAt())
	} else {
		delete(s.index, id)
	}
	return nil
}

// Delete removes the event and its index entry. Unknown ids are a no-op.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.events, id)
	delete(s.eventSeq, id)
	delete(s.index, id)
	return nil
}

// indexLocked adds or refreshes a due-index entry. Callers hold s.mu.
func (s *Store) indexLocked(id string, scheduledAt time.Time) {
	s.seq++
	s.index[id] = indexEntry{scheduledAt: scheduledAt, seq: s.seq}
}

// Remove deletes a due-index entry. Unknown ids are a no-op.
func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.index, id)
	return nil
}

// DueBefore returns up to limit entries due at or before t, ascending by
// scheduled time, ties in insertion order.
func (s *Store) DueBefore(_ context.Context, t time.Time, limit int64) ([]contracts.DueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type row struct {
		id    string
		entry indexEntry
	}
	var due []row
	for id, entry := range s.index {
		if !entry.scheduledAt.After(t) {
			due = append(due, row{id: id, entry: entry})
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].entry.scheduledAt.Equal(due[j].entry.scheduledAt) {
			return due[i].entry.scheduledAt.Before(due[j].entry.scheduledAt)
		}
		return due[i].entry.seq < due[j].entry.seq
	})

	if limit > 0 && int64(len(due)) > limit {
		due = due[:limit]
	}

	entries := make([]contracts.DueEntry, 0, len(due))
	for _, r := range due {
		entries = append(entries, contracts.DueEntry{EventID: r.id, ScheduledAt: r.entry.scheduledAt})
	}
	return entries, nil
}

// TryClaim leases the event to workerID under the shared mutex, which makes
// the check-and-set atomic against other claimers.
func (s *Store) TryClaim(_ context.Context, id, workerID string, leaseFor time.Duration) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}

	if err := event.Claim(workerID, leaseFor, s.clock.Now()); err != nil {
		return nil, err
	}

	delete(s.index, id)
	return cloneEvent(event), nil
}

// ExpiredLeases returns processing events whose lease expired at or before
// now, oldest expiry first.
func (s *Store) ExpiredLeases(_ context.Context, now time.Time, limit int64) ([]contracts.DueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*domain.Event
	for _, event := range s.events {
		if event.Status() != domain.StatusProcessing {
			continue
		}
		if exp := event.LeaseExpiresAt(); exp != nil && !exp.After(now) {
			expired = append(expired, event)
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		ei, ej := *expired[i].LeaseExpiresAt(), *expired[j].LeaseExpiresAt()
		if !ei.Equal(ej) {
			return ei.Before(ej)
		}
		return expired[i].ID() < expired[j].ID()
	})
	if limit > 0 && int64(len(expired)) > limit {
		expired = expired[:limit]
	}

	entries := make([]contracts.DueEntry, 0, len(expired))
	for _, event := range expired {
		entries = append(entries, contracts.DueEntry{EventID: event.ID(), ScheduledAt: event.ScheduledAt()})
	}
	return entries, nil
}

// Release finalizes a claimed event, guarded by lease ownership.
func (s *Store) Release(_ context.Context, id, workerID string, outcome contracts.Outcome, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}

	now := s.clock.Now()
	switch outcome {
	case contracts.OutcomeCompleted:
		if err := event.Complete(workerID, now); err != nil {
			return err
		}
	case contracts.OutcomeFailed:
		if err := event.Fail(workerID, lastError, now); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown release outcome %q", outcome)
	}

	delete(s.index, id)
	return nil
}

// Requeue returns a claimed event to scheduled at nextRunAt.
func (s *Store) Requeue(_ context.Context, id, workerID string, nextRunAt time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}

	if err := event.Requeue(workerID, nextRunAt, lastError, s.clock.Now()); err != nil {
		return err
	}

	s.indexLocked(id, nextRunAt)
	return nil
}

// DueIndex returns the store's index surface as a contracts.DueIndex.
// EventStore and DueIndex both name a method Insert, so the index view is a
// separate type over the same state.
func (s *Store) DueIndex() contracts.DueIndex {
	return &indexView{store: s}
}

type indexView struct {
	store *Store
}

// Insert adds or refreshes a due-index entry.
func (v *indexView) Insert(_ context.Context, id string, scheduledAt time.Time) error {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()

	v.store.indexLocked(id, scheduledAt)
	return nil
}

// Remove deletes a due-index entry. Unknown ids are a no-op.
func (v *indexView) Remove(ctx context.Context, id string) error {
	return v.store.Remove(ctx, id)
}

// DueBefore returns up to limit entries due at or before t.
func (v *indexView) DueBefore(ctx context.Context, t time.Time, limit int64) ([]contracts.DueEntry, error) {
	return v.store.DueBefore(ctx, t, limit)
}

// cloneEvent deep-copies an aggregate so callers never alias stored state.
func cloneEvent(e *domain.Event) *domain.Event {
	var leaseOwner *string
	if v := e.LeaseOwner(); v != nil {
		owner := *v
		leaseOwner = &owner
	}
	var leaseExpiresAt *time.Time
	if v := e.LeaseExpiresAt(); v != nil {
		expires := *v
		leaseExpiresAt = &expires
	}
	var lastError *string
	if v := e.LastError(); v != nil {
		lastErr := *v
		lastError = &lastErr
	}
	var processedAt *time.Time
	if v := e.ProcessedAt(); v != nil {
		processed := *v
		processedAt = &processed
	}

	return domain.ReconstructEvent(
		e.ID(),
		e.Kind(),
		append([]byte(nil), e.Payload()...),
		e.Metadata(),
		e.ScheduledAt(),
		e.Status(),
		e.AttemptCount(),
		leaseOwner,
		leaseExpiresAt,
		lastError,
		processedAt,
		e.CreatedAt(),
		e.UpdatedAt(),
	)
}
