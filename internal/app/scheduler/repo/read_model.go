package repo

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/queries/list_events"
	"github.com/light-bringer/scheduler-service/internal/models/m_event"
	"github.com/light-bringer/scheduler-service/internal/pkg/query"
)

// ReadModel serves the read-only event queries from Spanner.
type ReadModel struct {
	client *spanner.Client
}

// NewReadModel creates a new ReadModel.
func NewReadModel(client *spanner.Client) *ReadModel {
	return &ReadModel{
		client: client,
	}
}

// ListDueEvents returns full records of scheduled events due at or before
// the given time, ascending by scheduled time, ties broken by insertion
// order (commit timestamp) like the due index. Listing does not claim.
func (r *ReadModel) ListDueEvents(ctx context.Context, before time.Time, limit int64) ([]*m_event.Data, error) {
	stmt := query.From(m_event.TableName).
		Select(m_event.Columns()...).
		Where(query.Eq(m_event.Status, m_event.StatusScheduled)).
		Where(query.Lte(m_event.ScheduledAt, before)).
		OrderBy(m_event.ScheduledAt, query.Asc).
		OrderBy(m_event.CreatedAt, query.Asc).
		Limit(limit).
		Build()

	events, err := r.scanEvents(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list due events: %w", err)
	}
	return events, nil
}

// ListEvents retrieves events with optional kind and status filters,
// newest first.
func (r *ReadModel) ListEvents(ctx context.Context, req *list_events.Request) ([]*m_event.Data, int64, error) {
	builder := query.From(m_event.TableName).Select(m_event.Columns()...)

	if req.Kind != nil {
		builder = builder.Where(query.Eq(m_event.Kind, *req.Kind))
	}
	if req.Status != nil {
		builder = builder.Where(query.Eq(m_event.Status, *req.Status))
	}

	stmt := builder.
		OrderBy(m_event.CreatedAt, query.Desc).
		Limit(req.Limit).
		Build()

	events, err := r.scanEvents(ctx, stmt)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}

	return events, int64(len(events)), nil
}

// scanEvents executes stmt and maps each row to m_event.Data.
func (r *ReadModel) scanEvents(ctx context.Context, stmt spanner.Statement) ([]*m_event.Data, error) {
	iter := r.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var events []*m_event.Data
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate events: %w", err)
		}

		var data m_event.Data
		if err := row.ToStruct(&data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &data)
	}

	return events, nil
}
