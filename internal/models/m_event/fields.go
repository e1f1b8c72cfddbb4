package m_event

// Field name constants for the scheduled_events table.
const (
	TableName = "scheduled_events"

	EventID        = "event_id"
	Kind           = "kind"
	Payload        = "payload"
	Metadata       = "metadata"
	ScheduledAt    = "scheduled_at"
	Status         = "status"
	AttemptCount   = "attempt_count"
	LeaseOwner     = "lease_owner"
	LeaseExpiresAt = "lease_expires_at"
	LastError      = "last_error"
	ProcessedAt    = "processed_at"
	CreatedAt      = "created_at"
	UpdatedAt      = "updated_at"
)

// Event status constants
const (
	StatusScheduled  = "scheduled"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
