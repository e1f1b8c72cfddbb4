package contracts

import (
	"context"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
)

// EventStore is the durable record of each event's full state, keyed by id.
//
// Implementations are responsible for keeping the due-time index consistent
// with the stored status: an event has an index entry if and only if its
// status is scheduled. Insert, Update and Delete therefore touch both
// structures atomically; the index is never left dangling by a store write.
type EventStore interface {
	// Insert persists a new event. When the event is scheduled, the
	// due-index entry is written in the same commit.
	Insert(ctx context.Context, event *domain.Event) error

	// Get returns the full event record, or domain.ErrEventNotFound.
	Get(ctx context.Context, id string) (*domain.Event, error)

	// Update persists the aggregate's current state and reconciles the
	// due-index entry with the new status. Returns domain.ErrEventNotFound
	// for unknown ids.
	Update(ctx context.Context, event *domain.Event) error

	// UpdateStatus is a compare-and-swap on status: the write succeeds only
	// if the stored status still equals from. Racing finalizers get
	// domain.ErrStatusConflict; unknown ids get domain.ErrEventNotFound.
	UpdateStatus(ctx context.Context, id string, from, to domain.Status) error

	// Delete removes the event and its index entry. Unknown ids are a no-op.
	Delete(ctx context.Context, id string) error
}
