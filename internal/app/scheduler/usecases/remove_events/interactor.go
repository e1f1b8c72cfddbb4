package remove_events

import (
	"context"
	"fmt"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
)

// Request contains the ids to remove.
type Request struct {
	EventIDs []string
}

// Interactor handles the remove events use case: bulk deletion of events
// whose outcome has been consumed. Unknown ids are no-ops, so the operation
// is idempotent and safe to retry.
type Interactor struct {
	store contracts.EventStore
}

// NewInteractor creates a new remove events interactor.
func NewInteractor(store contracts.EventStore) *Interactor {
	return &Interactor{
		store: store,
	}
}

// Execute deletes each event and its due-index entry.
func (i *Interactor) Execute(ctx context.Context, req *Request) error {
	for _, id := range req.EventIDs {
		if err := i.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to remove event %s: %w", id, err)
		}
	}
	return nil
}
