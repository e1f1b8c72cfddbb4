package domain

import "errors"

// Domain errors as sentinel values
var (
	// Scheduling errors
	ErrInvalidSchedule = errors.New("scheduled time must be in the future")
	ErrEmptyKind       = errors.New("event kind cannot be empty")

	// Lookup errors
	ErrEventNotFound = errors.New("event not found")

	// Claim and transition errors
	ErrStatusConflict = errors.New("event status changed concurrently")
	ErrAlreadyClaimed = errors.New("event is already claimed")
	ErrLeaseLost      = errors.New("lease is no longer held by this worker")
	ErrInvalidStatus  = errors.New("invalid event status")
)
