package m_dueindex

import (
	"time"

	"cloud.google.com/go/spanner"
)

// Model provides a facade for type-safe operations on the event_due_index table.
type Model struct{}

// NewModel creates a new Model instance.
func NewModel() *Model {
	return &Model{}
}

// InsertMut creates a Spanner mutation for inserting a due-index entry.
// EnqueuedAt is assigned the commit timestamp so that entries with equal
// scheduled_at order by insertion.
func (m *Model) InsertMut(eventID string, scheduledAt time.Time) *spanner.Mutation {
	return spanner.InsertOrUpdate(
		TableName,
		[]string{EventID, ScheduledAt, EnqueuedAt},
		[]interface{}{eventID, scheduledAt, spanner.CommitTimestamp},
	)
}

// DeleteMut creates a Spanner mutation for removing a due-index entry.
// Deleting an absent key is a no-op in Spanner, which keeps removal idempotent.
func (m *Model) DeleteMut(eventID string) *spanner.Mutation {
	return spanner.Delete(TableName, spanner.Key{eventID})
}
