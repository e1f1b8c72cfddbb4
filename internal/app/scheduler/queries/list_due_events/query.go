package list_due_events

import (
	"context"
	"time"

	"github.com/light-bringer/scheduler-service/internal/models/m_event"
	"github.com/light-bringer/scheduler-service/internal/pkg/clock"
)

// Request contains the parameters for listing due events.
type Request struct {
	Limit int64 // Max number of events to return (default: 100)
}

// DueReadModel defines the interface for reading due events.
type DueReadModel interface {
	ListDueEvents(ctx context.Context, before time.Time, limit int64) ([]*m_event.Data, error)
}

// Query handles the list due events query use case.
// The result is a read-only snapshot ordered by scheduled time; nothing is
// claimed by listing.
type Query struct {
	readModel DueReadModel
	clock     clock.Clock
}

// NewQuery creates a new list due events query.
func NewQuery(readModel DueReadModel, clk clock.Clock) *Query {
	return &Query{
		readModel: readModel,
		clock:     clk,
	}
}

// Execute retrieves events due at or before now.
func (q *Query) Execute(ctx context.Context, req *Request) ([]*m_event.Data, error) {
	if req.Limit <= 0 {
		req.Limit = 100 // Default limit
	}
	if req.Limit > 1000 {
		req.Limit = 1000 // Max limit
	}

	return q.readModel.ListDueEvents(ctx, q.clock.Now(), req.Limit)
}
