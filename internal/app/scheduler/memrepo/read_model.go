package memrepo

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/spanner"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/queries/list_due_events"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/queries/list_events"
	"github.com/light-bringer/scheduler-service/internal/models/m_event"
)

var (
	_ list_due_events.DueReadModel = (*Store)(nil)
	_ list_events.EventsReadModel  = (*Store)(nil)
)

// ListDueEvents returns full records of scheduled events due at or before
// the given time, ascending by scheduled time, ties broken by insertion
// order like the due index.
func (s *Store) ListDueEvents(_ context.Context, before time.Time, limit int64) ([]*m_event.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*domain.Event
	for _, event := range s.events {
		if event.Status() == domain.StatusScheduled && !event.ScheduledAt().After(before) {
			due = append(due, event)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledAt().Equal(due[j].ScheduledAt()) {
			return due[i].ScheduledAt().Before(due[j].ScheduledAt())
		}
		return s.eventSeq[due[i].ID()] < s.eventSeq[due[j].ID()]
	})
	if limit > 0 && int64(len(due)) > limit {
		due = due[:limit]
	}

	rows := make([]*m_event.Data, 0, len(due))
	for _, event := range due {
		rows = append(rows, toData(event))
	}
	return rows, nil
}

// ListEvents retrieves events with optional kind and status filters,
// newest first.
func (s *Store) ListEvents(_ context.Context, req *list_events.Request) ([]*m_event.Data, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.Event
	for _, event := range s.events {
		if req.Kind != nil && event.Kind() != *req.Kind {
			continue
		}
		if req.Status != nil && string(event.Status()) != *req.Status {
			continue
		}
		matched = append(matched, event)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt().After(matched[j].CreatedAt())
	})
	if req.Limit > 0 && int64(len(matched)) > req.Limit {
		matched = matched[:req.Limit]
	}

	rows := make([]*m_event.Data, 0, len(matched))
	for _, event := range matched {
		rows = append(rows, toData(event))
	}
	return rows, int64(len(rows)), nil
}

// toData mirrors the Spanner row representation so both backends serve the
// same query result shape.
func toData(e *domain.Event) *m_event.Data {
	data := &m_event.Data{
		EventID:      e.ID(),
		Kind:         e.Kind(),
		ScheduledAt:  e.ScheduledAt(),
		Status:       string(e.Status()),
		AttemptCount: e.AttemptCount(),
		CreatedAt:    e.CreatedAt(),
		UpdatedAt:    e.UpdatedAt(),
	}

	if payload := e.Payload(); len(payload) > 0 {
		data.Payload = spanner.NullJSON{Value: payload, Valid: true}
	}
	if metadata := e.Metadata(); len(metadata) > 0 {
		data.Metadata = spanner.NullJSON{Value: metadata, Valid: true}
	}
	if owner := e.LeaseOwner(); owner != nil {
		data.LeaseOwner = spanner.NullString{StringVal: *owner, Valid: true}
	}
	if expires := e.LeaseExpiresAt(); expires != nil {
		data.LeaseExpiresAt = spanner.NullTime{Time: *expires, Valid: true}
	}
	if lastErr := e.LastError(); lastErr != nil {
		data.LastError = spanner.NullString{StringVal: *lastErr, Valid: true}
	}
	if processed := e.ProcessedAt(); processed != nil {
		data.ProcessedAt = spanner.NullTime{Time: *processed, Valid: true}
	}

	return data
}
