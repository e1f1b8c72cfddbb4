package m_event

import (
	"cloud.google.com/go/spanner"
)

// Model provides a facade for type-safe operations on the scheduled_events table.
type Model struct{}

// NewModel creates a new Model instance.
func NewModel() *Model {
	return &Model{}
}

// InsertMut creates a Spanner mutation for inserting a scheduled event.
func (m *Model) InsertMut(data *Data) *spanner.Mutation {
	return spanner.Insert(
		TableName,
		[]string{
			EventID,
			Kind,
			Payload,
			Metadata,
			ScheduledAt,
			Status,
			AttemptCount,
			LeaseOwner,
			LeaseExpiresAt,
			LastError,
			ProcessedAt,
			CreatedAt,
			UpdatedAt,
		},
		[]interface{}{
			data.EventID,
			data.Kind,
			data.Payload,
			data.Metadata,
			data.ScheduledAt,
			data.Status,
			data.AttemptCount,
			data.LeaseOwner,
			data.LeaseExpiresAt,
			data.LastError,
			data.ProcessedAt,
			spanner.CommitTimestamp,
			spanner.CommitTimestamp,
		},
	)
}

// UpdateMut creates a Spanner mutation for updating specific event fields.
// The updates map should contain field names as keys and new values.
func (m *Model) UpdateMut(eventID string, updates map[string]interface{}) *spanner.Mutation {
	if len(updates) == 0 {
		return nil
	}

	// Always update the UpdatedAt timestamp
	updates[UpdatedAt] = spanner.CommitTimestamp

	columns := make([]string, 0, len(updates)+1)
	values := make([]interface{}, 0, len(updates)+1)

	// Add event ID first
	columns = append(columns, EventID)
	values = append(values, eventID)

	// Add all update fields
	for col, val := range updates {
		columns = append(columns, col)
		values = append(values, val)
	}

	return spanner.Update(TableName, columns, values)
}

// DeleteMut creates a Spanner mutation for deleting a scheduled event (hard delete).
func (m *Model) DeleteMut(eventID string) *spanner.Mutation {
	return spanner.Delete(TableName, spanner.Key{eventID})
}
