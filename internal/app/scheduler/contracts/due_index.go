package contracts

import (
	"context"
	"time"
)

// DueEntry is a single due-index row: the event id and when it becomes due.
// The index holds only identifiers so that range scans stay cheap; full
// bodies are fetched from the event store for events that are actually
// claimed.
type DueEntry struct {
	EventID     string
	ScheduledAt time.Time
}

// DueIndex is the ordered structure mapping event id to scheduled time,
// supporting "everything due by T" queries for the dispatcher.
type DueIndex interface {
	// Insert adds or refreshes an index entry.
	Insert(ctx context.Context, id string, scheduledAt time.Time) error

	// Remove deletes an index entry. Unknown ids are a no-op, so the
	// dispatcher can use it to heal entries whose event no longer exists.
	Remove(ctx context.Context, id string) error

	// DueBefore returns up to limit entries with scheduled_at <= t,
	// ascending by scheduled_at, ties broken by insertion order.
	DueBefore(ctx context.Context, t time.Time, limit int64) ([]DueEntry, error)
}
