package m_dueindex

// Field name constants for the event_due_index table.
const (
	TableName = "event_due_index"

	EventID     = "event_id"
	ScheduledAt = "scheduled_at"
	EnqueuedAt  = "enqueued_at"

	// Secondary index serving the due-before scan.
	DueIndexName = "idx_event_due_index_due"
)
