package contracts

import (
	"context"
	"time"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
)

// Outcome is the terminal result a worker reports when releasing a claim.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// ClaimManager turns "this id is due" into "exactly one worker owns it".
//
// TryClaim, Release and Requeue are each a single atomic check-and-set; they
// are the only mutual exclusion in the system. No lock is held between them,
// so a worker that dies mid-processing simply abandons its lease and the
// expiry makes the event reclaimable.
type ClaimManager interface {
	// TryClaim leases the event to workerID for leaseFor. It succeeds only
	// if the event is scheduled, or processing with an expired lease (crash
	// recovery). On success, atomically, the event moves to processing,
	// attempt_count is incremented, and the due-index entry is removed.
	// Losers of a race get domain.ErrAlreadyClaimed; unknown ids get
	// domain.ErrEventNotFound.
	TryClaim(ctx context.Context, id, workerID string, leaseFor time.Duration) (*domain.Event, error)

	// ExpiredLeases returns processing events whose lease expired at or
	// before now, oldest expiry first. Claiming removes the due-index
	// entry, so this scan is the only way such events are rediscovered
	// after their worker died. Discovery only: callers must TryClaim each
	// id before touching it.
	ExpiredLeases(ctx context.Context, now time.Time, limit int64) ([]DueEntry, error)

	// Release finalizes a claimed event as completed or failed. It is
	// guarded by lease ownership: a stale worker whose lease was since
	// stolen gets domain.ErrLeaseLost and must not overwrite the newer
	// owner's work. Release after expiry is allowed while the owner still
	// matches. lastError is recorded on failed outcomes.
	Release(ctx context.Context, id, workerID string, outcome Outcome, lastError string) error

	// Requeue returns a claimed event to scheduled with a new due time,
	// re-inserting the index entry atomically. Same ownership guard as
	// Release. Used by the dispatcher when a publish failed but the retry
	// budget is not exhausted.
	Requeue(ctx context.Context, id, workerID string, nextRunAt time.Time, lastError string) error
}
