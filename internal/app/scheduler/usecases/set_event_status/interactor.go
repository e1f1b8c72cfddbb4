package set_event_status

import (
	"context"
	"fmt"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
	"github.com/light-bringer/scheduler-service/internal/pkg/clock"
)

// Request contains the data for an administrative status override.
type Request struct {
	EventID string
	Status  domain.Status
}

// Interactor handles the set event status use case. This is an operator
// repair path: it forces a status without transition checks, clearing any
// lease and keeping the due-index consistent with the new status.
type Interactor struct {
	store contracts.EventStore
	clock clock.Clock
}

// NewInteractor creates a new set event status interactor.
func NewInteractor(store contracts.EventStore, clk clock.Clock) *Interactor {
	return &Interactor{
		store: store,
		clock: clk,
	}
}

// Execute overrides the event's status.
// Returns domain.ErrEventNotFound for unknown ids and domain.ErrInvalidStatus
// for statuses outside the lifecycle.
func (i *Interactor) Execute(ctx context.Context, req *Request) error {
	event, err := i.store.Get(ctx, req.EventID)
	if err != nil {
		return err
	}

	if err := event.OverrideStatus(req.Status, i.clock.Now()); err != nil {
		return err
	}

	if err := i.store.Update(ctx, event); err != nil {
		return fmt.Errorf("failed to persist status override: %w", err)
	}
	return nil
}
