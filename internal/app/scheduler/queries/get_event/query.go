package get_event

import (
	"context"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
)

// EventGetter defines the read access this query needs.
type EventGetter interface {
	Get(ctx context.Context, id string) (*domain.Event, error)
}

// Query handles the get event query use case.
type Query struct {
	store EventGetter
}

// NewQuery creates a new get event query.
func NewQuery(store EventGetter) *Query {
	return &Query{
		store: store,
	}
}

// Execute retrieves the full event record by id.
// Returns domain.ErrEventNotFound for unknown ids.
func (q *Query) Execute(ctx context.Context, id string) (*domain.Event, error) {
	return q.store.Get(ctx, id)
}
