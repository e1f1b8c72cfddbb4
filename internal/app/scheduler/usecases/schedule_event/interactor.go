package schedule_event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
	"github.com/light-bringer/scheduler-service/internal/pkg/clock"
)

// Request contains the data needed to schedule an event.
type Request struct {
	Kind        string
	Payload     json.RawMessage
	Metadata    map[string]string
	ScheduledAt time.Time
}

// Response is returned to the caller after the event is durably held.
type Response struct {
	EventID     string
	Status      domain.Status
	ScheduledAt time.Time
}

// Interactor handles the schedule event use case.
type Interactor struct {
	store contracts.EventStore
	clock clock.Clock
}

// NewInteractor creates a new schedule event interactor.
func NewInteractor(store contracts.EventStore, clk clock.Clock) *Interactor {
	return &Interactor{
		store: store,
		clock: clk,
	}
}

// Execute validates the request and durably records the event. Scheduling
// and execution are decoupled: the caller only learns the id here, and
// inspects the outcome later via GetEvent.
func (i *Interactor) Execute(ctx context.Context, req *Request) (*Response, error) {
	eventID := uuid.New().String()
	now := i.clock.Now()

	event, err := domain.NewEvent(eventID, req.Kind, req.Payload, req.Metadata, req.ScheduledAt, now)
	if err != nil {
		return nil, err
	}

	if err := i.store.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist event: %w", err)
	}

	return &Response{
		EventID:     event.ID(),
		Status:      event.Status(),
		ScheduledAt: event.ScheduledAt(),
	}, nil
}
