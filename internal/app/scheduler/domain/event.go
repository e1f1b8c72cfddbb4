package domain

import (
	"encoding/json"
	"maps"
	"time"
)

// Status represents the lifecycle status of a scheduled event
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ParseStatus validates a raw status string and returns the typed value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusScheduled, StatusProcessing, StatusCompleted, StatusFailed:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// IsTerminal returns true for statuses the engine never transitions out of.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Event is the aggregate root for delayed event scheduling.
// The payload and metadata are opaque: they are stored verbatim and
// forwarded verbatim to the publisher, never interpreted.
type Event struct {
	id             string
	kind           string
	payload        json.RawMessage
	metadata       map[string]string
	scheduledAt    time.Time
	status         Status
	attemptCount   int64
	leaseOwner     *string
	leaseExpiresAt *time.Time
	lastError      *string
	processedAt    *time.Time
	createdAt      time.Time
	updatedAt      time.Time
}

// NewEvent creates a new Event aggregate (for scheduling).
// The scheduled time must be strictly in the future relative to now.
func NewEvent(id, kind string, payload json.RawMessage, metadata map[string]string, scheduledAt, now time.Time) (*Event, error) {
	if kind == "" {
		return nil, ErrEmptyKind
	}
	if !scheduledAt.After(now) {
		return nil, ErrInvalidSchedule
	}

	return &Event{
		id:          id,
		kind:        kind,
		payload:     payload,
		metadata:    maps.Clone(metadata),
		scheduledAt: scheduledAt,
		status:      StatusScheduled,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructEvent reconstitutes an Event from storage (for loading existing events).
func ReconstructEvent(
	id, kind string,
	payload json.RawMessage,
	metadata map[string]string,
	scheduledAt time.Time,
	status Status,
	attemptCount int64,
	leaseOwner *string,
	leaseExpiresAt *time.Time,
	lastError *string,
	processedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Event {
	return &Event{
		id:             id,
		kind:           kind,
		payload:        payload,
		metadata:       metadata,
		scheduledAt:    scheduledAt,
		status:         status,
		attemptCount:   attemptCount,
		leaseOwner:     leaseOwner,
		leaseExpiresAt: leaseExpiresAt,
		lastError:      lastError,
		processedAt:    processedAt,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// Getters
func (e *Event) ID() string                 { return e.id }
func (e *Event) Kind() string               { return e.kind }
func (e *Event) Payload() json.RawMessage   { return e.payload }
func (e *Event) Metadata() map[string]string { return maps.Clone(e.metadata) }
func (e *Event) ScheduledAt() time.Time     { return e.scheduledAt }
func (e *Event) Status() Status             { return e.status }
func (e *Event) AttemptCount() int64        { return e.attemptCount }
func (e *Event) LeaseOwner() *string        { return e.leaseOwner }
func (e *Event) LeaseExpiresAt() *time.Time { return e.leaseExpiresAt }
func (e *Event) LastError() *string         { return e.lastError }
func (e *Event) ProcessedAt() *time.Time    { return e.processedAt }
func (e *Event) CreatedAt() time.Time       { return e.createdAt }
func (e *Event) UpdatedAt() time.Time       { return e.updatedAt }

// Claimable reports whether a worker may take the event at now.
// Eligible states: scheduled, or processing with an expired (or missing)
// lease. Lease expiry, not the stored status, decides reclaim eligibility.
func (e *Event) Claimable(now time.Time) bool {
	switch e.status {
	case StatusScheduled:
		return true
	case StatusProcessing:
		return e.leaseExpiresAt == nil || !e.leaseExpiresAt.After(now)
	}
	return false
}

// Claim transitions the event to processing under a lease held by workerID.
// The attempt count is incremented here and only here: a reclaim after a
// crashed worker counts as a fresh attempt, a requeue does not double-count.
func (e *Event) Claim(workerID string, leaseFor time.Duration, now time.Time) error {
	if !e.Claimable(now) {
		return ErrAlreadyClaimed
	}

	expiry := now.Add(leaseFor)
	e.status = StatusProcessing
	e.leaseOwner = &workerID
	e.leaseExpiresAt = &expiry
	e.attemptCount++
	e.updatedAt = now
	return nil
}

// Complete finalizes a claimed event as successfully published.
// Allowed after lease expiry as long as the owner still matches.
func (e *Event) Complete(workerID string, now time.Time) error {
	if !e.ownedBy(workerID) {
		return ErrLeaseLost
	}

	e.status = StatusCompleted
	e.leaseOwner = nil
	e.leaseExpiresAt = nil
	e.processedAt = &now
	e.updatedAt = now
	return nil
}

// Fail dead-letters a claimed event after its retry budget is exhausted.
func (e *Event) Fail(workerID, lastError string, now time.Time) error {
	if !e.ownedBy(workerID) {
		return ErrLeaseLost
	}

	e.status = StatusFailed
	e.leaseOwner = nil
	e.leaseExpiresAt = nil
	if lastError != "" {
		e.lastError = &lastError
	}
	e.processedAt = &now
	e.updatedAt = now
	return nil
}

// Requeue returns a claimed event to the schedule for a retry at runAt.
func (e *Event) Requeue(workerID string, runAt time.Time, lastError string, now time.Time) error {
	if !e.ownedBy(workerID) {
		return ErrLeaseLost
	}

	e.status = StatusScheduled
	e.scheduledAt = runAt
	e.leaseOwner = nil
	e.leaseExpiresAt = nil
	if lastError != "" {
		e.lastError = &lastError
	}
	e.updatedAt = now
	return nil
}

// OverrideStatus forces a status without transition checks (administrative
// repair path). Lease fields are always cleared; a forced processing event
// is therefore immediately reclaimable.
func (e *Event) OverrideStatus(status Status, now time.Time) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}

	e.status = status
	e.leaseOwner = nil
	e.leaseExpiresAt = nil
	if status.IsTerminal() {
		e.processedAt = &now
	} else {
		e.processedAt = nil
	}
	e.updatedAt = now
	return nil
}

// ownedBy returns true if workerID still holds the processing lease.
func (e *Event) ownedBy(workerID string) bool {
	return e.status == StatusProcessing && e.leaseOwner != nil && *e.leaseOwner == workerID
}
