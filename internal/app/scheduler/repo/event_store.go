package repo

import (
	"context"
	"fmt"

	"cloud.google.com/go/spanner"
	"google.golang.org/grpc/codes"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
	"github.com/light-bringer/scheduler-service/internal/models/m_dueindex"
	"github.com/light-bringer/scheduler-service/internal/models/m_event"
	"github.com/light-bringer/scheduler-service/internal/pkg/committer"
)

// EventStore implements contracts.EventStore for Spanner.
//
// Store writes and their due-index side effects are collected into a single
// commit plan so the "indexed iff scheduled" invariant holds across crashes.
type EventStore struct {
	client    *spanner.Client
	committer *committer.Committer
	model     *m_event.Model
	dueModel  *m_dueindex.Model
}

// NewEventStore creates a new Spanner-backed EventStore.
func NewEventStore(client *spanner.Client) contracts.EventStore {
	return &EventStore{
		client:    client,
		committer: committer.NewCommitter(client),
		model:     m_event.NewModel(),
		dueModel:  m_dueindex.NewModel(),
	}
}

// Insert persists a new event, writing the due-index entry in the same
// commit when the event is scheduled.
func (s *EventStore) Insert(ctx context.Context, event *domain.Event) error {
	plan := committer.NewPlan()
	plan.Add(s.model.InsertMut(domainToData(event)))
	if event.Status() == domain.StatusScheduled {
		plan.Add(s.dueModel.InsertMut(event.ID(), event.ScheduledAt()))
	}

	if err := s.committer.Apply(ctx, plan); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Get returns the full event record.
func (s *EventStore) Get(ctx context.Context, id string) (*domain.Event, error) {
	row, err := s.client.Single().ReadRow(ctx, m_event.TableName, spanner.Key{id}, m_event.Columns())
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to read event: %w", err)
	}

	var data m_event.Data
	if err := row.ToStruct(&data); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}

	return dataToDomain(&data)
}

// Update persists the aggregate's current state and reconciles the due-index
// entry with the new status.
func (s *EventStore) Update(ctx context.Context, event *domain.Event) error {
	plan := committer.NewPlan()
	plan.Add(s.model.UpdateMut(event.ID(), updateColumns(event)))
	if event.Status() == domain.StatusScheduled {
		plan.Add(s.dueModel.InsertMut(event.ID(), event.ScheduledAt()))
	} else {
		plan.Add(s.dueModel.DeleteMut(event.ID()))
	}

	if err := s.committer.Apply(ctx, plan); err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return domain.ErrEventNotFound
		}
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// UpdateStatus is a compare-and-swap on status. The write succeeds only if
// the stored status still equals from; racing finalizers observe
// domain.ErrStatusConflict instead of both succeeding.
func (s *EventStore) UpdateStatus(ctx context.Context, id string, from, to domain.Status) error {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		row, err := txn.ReadRow(ctx, m_event.TableName, spanner.Key{id}, []string{m_event.Status, m_event.ScheduledAt})
		if err != nil {
			if spanner.ErrCode(err) == codes.NotFound {
				return domain.ErrEventNotFound
			}
			return fmt.Errorf("failed to read event status: %w", err)
		}

		var current string
		var scheduledAt spanner.NullTime
		if err := row.Columns(&current, &scheduledAt); err != nil {
			return fmt.Errorf("failed to parse event status: %w", err)
		}

		if current != string(from) {
			return domain.ErrStatusConflict
		}

		muts := []*spanner.Mutation{
			s.model.UpdateMut(id, map[string]interface{}{m_event.Status: string(to)}),
		}
		if to == domain.StatusScheduled {
			muts = append(muts, s.dueModel.InsertMut(id, scheduledAt.Time))
		} else {
			muts = append(muts, s.dueModel.DeleteMut(id))
		}
		return txn.BufferWrite(muts)
	})
	if err != nil {
		return err
	}
	return nil
}

// Delete removes the event and its due-index entry. Unknown ids are a no-op.
func (s *EventStore) Delete(ctx context.Context, id string) error {
	plan := committer.NewPlan()
	plan.Add(s.model.DeleteMut(id))
	plan.Add(s.dueModel.DeleteMut(id))

	if err := s.committer.Apply(ctx, plan); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// updateColumns maps every mutable aggregate field to its column value.
// updated_at is handled by the model, which stamps the commit timestamp.
func updateColumns(event *domain.Event) map[string]interface{} {
	data := domainToData(event)
	return map[string]interface{}{
		m_event.ScheduledAt:    data.ScheduledAt,
		m_event.Status:         data.Status,
		m_event.AttemptCount:   data.AttemptCount,
		m_event.LeaseOwner:     data.LeaseOwner,
		m_event.LeaseExpiresAt: data.LeaseExpiresAt,
		m_event.LastError:      data.LastError,
		m_event.ProcessedAt:    data.ProcessedAt,
	}
}
