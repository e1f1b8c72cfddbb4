package m_event

import (
	"time"

	"cloud.google.com/go/spanner"
)

// Data represents the database model for the scheduled_events table.
type Data struct {
	EventID        string             `spanner:"event_id"`
	Kind           string             `spanner:"kind"`
	Payload        spanner.NullJSON   `spanner:"payload"`  // JSON column
	Metadata       spanner.NullJSON   `spanner:"metadata"` // JSON column
	ScheduledAt    time.Time          `spanner:"scheduled_at"`
	Status         string             `spanner:"status"`
	AttemptCount   int64              `spanner:"attempt_count"`
	LeaseOwner     spanner.NullString `spanner:"lease_owner"`
	LeaseExpiresAt spanner.NullTime   `spanner:"lease_expires_at"`
	LastError      spanner.NullString `spanner:"last_error"`
	ProcessedAt    spanner.NullTime   `spanner:"processed_at"`
	CreatedAt      time.Time          `spanner:"created_at"`
	UpdatedAt      time.Time          `spanner:"updated_at"`
}

// Columns lists every column of the table in Data field order, for reads
// that fetch the full row.
func Columns() []string {
	return []string{
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
	}
}
