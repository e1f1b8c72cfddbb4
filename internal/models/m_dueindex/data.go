package m_dueindex

import (
	"time"
)

// Data represents the database model for the event_due_index table.
type Data struct {
	EventID     string    `spanner:"event_id"`
	ScheduledAt time.Time `spanner:"scheduled_at"`
	EnqueuedAt  time.Time `spanner:"enqueued_at"`
}
