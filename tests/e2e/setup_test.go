package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/memrepo"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/queries/get_event"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/queries/list_due_events"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/queries/list_events"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/usecases/remove_events"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/usecases/schedule_event"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/usecases/set_event_status"
	"github.com/light-bringer/scheduler-service/internal/pkg/clock"
	"github.com/light-bringer/scheduler-service/internal/publisher/memory"
)

// Services holds all use cases, queries and backing components for E2E
// tests. The suite runs on the in-memory backend, which shares the atomicity
// semantics of the Spanner backend; Spanner-specific behavior is covered by
// the integration suite.
type Services struct {
	// Commands
	ScheduleEvent  *schedule_event.Interactor
	SetEventStatus *set_event_status.Interactor
	RemoveEvents   *remove_events.Interactor

	// Queries
	GetEvent      *get_event.Query
	ListDueEvents *list_due_events.Query
	ListEvents    *list_events.Query

	// Infrastructure
	Store     *memrepo.Store
	Publisher *memory.Publisher
	Clock     *clock.MockClock
}

// setupTest initializes all dependencies for E2E testing. The clock starts
// at a fixed instant so schedules are deterministic.
func setupTest(t *testing.T) *Services {
	t.Helper()

	mockClock := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := memrepo.New(mockClock)
	publisher := memory.New()

	return &Services{
		ScheduleEvent:  schedule_event.NewInteractor(store, mockClock),
		SetEventStatus: set_event_status.NewInteractor(store, mockClock),
		RemoveEvents:   remove_events.NewInteractor(store),
		GetEvent:       get_event.NewQuery(store),
		ListDueEvents:  list_due_events.NewQuery(store, mockClock),
		ListEvents:     list_events.NewQuery(store),
		Store:          store,
		Publisher:      publisher,
		Clock:          mockClock,
	}
}

// ctx returns a context for testing.
func ctx() context.Context {
	return context.Background()
}
