package repo

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
	"github.com/light-bringer/scheduler-service/internal/models/m_dueindex"
	"github.com/light-bringer/scheduler-service/internal/models/m_event"
	"github.com/light-bringer/scheduler-service/internal/pkg/clock"
	"github.com/light-bringer/scheduler-service/internal/pkg/committer"
	"github.com/light-bringer/scheduler-service/internal/pkg/query"
)

// ClaimManager implements contracts.ClaimManager for Spanner.
//
// Every operation is a read-check-buffer cycle inside one read-write
// transaction: the event row is read, the aggregate decides whether the
// transition is allowed, and the resulting mutations commit atomically.
// Spanner serializes racing transactions on the same row, so of two workers
// claiming the same id exactly one commits the processing transition and
// the other re-reads a row that is no longer claimable.
type ClaimManager struct {
	client    *spanner.Client
	committer *committer.Committer
	model     *m_event.Model
	dueModel  *m_dueindex.Model
	clock     clock.Clock
}

// NewClaimManager creates a new Spanner-backed ClaimManager.
func NewClaimManager(client *spanner.Client, clk clock.Clock) contracts.ClaimManager {
	return &ClaimManager{
		client:    client,
		committer: committer.NewCommitter(client),
		model:     m_event.NewModel(),
		dueModel:  m_dueindex.NewModel(),
		clock:     clk,
	}
}

// TryClaim leases the event to workerID. Exactly one of any set of racing
// claimers succeeds; the rest get domain.ErrAlreadyClaimed.
func (c *ClaimManager) TryClaim(ctx context.Context, id, workerID string, leaseFor time.Duration) (*domain.Event, error) {
	var claimed *domain.Event

	err := c.committer.ApplyWithReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		event, err := c.readEvent(ctx, txn, id)
		if err != nil {
			return err
		}

		if err := event.Claim(workerID, leaseFor, c.clock.Now()); err != nil {
			return err
		}

		claimed = event
		return txn.BufferWrite([]*spanner.Mutation{
			c.model.UpdateMut(id, map[string]interface{}{
				m_event.Status:         string(event.Status()),
				m_event.AttemptCount:   event.AttemptCount(),
				m_event.LeaseOwner:     *event.LeaseOwner(),
				m_event.LeaseExpiresAt: *event.LeaseExpiresAt(),
			}),
			c.dueModel.DeleteMut(id),
		})
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// Release finalizes a claimed event as completed or failed, guarded by
// lease ownership.
func (c *ClaimManager) Release(ctx context.Context, id, workerID string, outcome contracts.Outcome, lastError string) error {
	return c.committer.ApplyWithReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		event, err := c.readEvent(ctx, txn, id)
		if err != nil {
			return err
		}

		now := c.clock.Now()
		switch outcome {
		case contracts.OutcomeCompleted:
			err = event.Complete(workerID, now)
		case contracts.OutcomeFailed:
			err = event.Fail(workerID, lastError, now)
		default:
			return fmt.Errorf("unknown release outcome %q", outcome)
		}
		if err != nil {
			return err
		}

		data := domainToData(event)
		return txn.BufferWrite([]*spanner.Mutation{
			c.model.UpdateMut(id, map[string]interface{}{
				m_event.Status:         data.Status,
				m_event.LeaseOwner:     data.LeaseOwner,
				m_event.LeaseExpiresAt: data.LeaseExpiresAt,
				m_event.LastError:      data.LastError,
				m_event.ProcessedAt:    data.ProcessedAt,
			}),
			c.dueModel.DeleteMut(id),
		})
	})
}

// Requeue returns a claimed event to scheduled at nextRunAt, re-inserting
// the due-index entry in the same commit.
func (c *ClaimManager) Requeue(ctx context.Context, id, workerID string, nextRunAt time.Time, lastError string) error {
	return c.committer.ApplyWithReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		event, err := c.readEvent(ctx, txn, id)
		if err != nil {
			return err
		}

		if err := event.Requeue(workerID, nextRunAt, lastError, c.clock.Now()); err != nil {
			return err
		}

		data := domainToData(event)
		return txn.BufferWrite([]*spanner.Mutation{
			c.model.UpdateMut(id, map[string]interface{}{
				m_event.Status:         data.Status,
				m_event.ScheduledAt:    data.ScheduledAt,
				m_event.LeaseOwner:     data.LeaseOwner,
				m_event.LeaseExpiresAt: data.LeaseExpiresAt,
				m_event.LastError:      data.LastError,
			}),
			c.dueModel.InsertMut(id, nextRunAt),
		})
	})
}

// ExpiredLeases scans for processing events whose lease expired at or
// before now. These have no due-index entry, so the dispatcher's index scan
// cannot rediscover them; idx_scheduled_events_status_due serves this query.
func (c *ClaimManager) ExpiredLeases(ctx context.Context, now time.Time, limit int64) ([]contracts.DueEntry, error) {
	stmt := query.From(m_event.TableName).
		Select(m_event.EventID, m_event.ScheduledAt).
		Where(query.Eq(m_event.Status, m_event.StatusProcessing)).
		Where(query.Lte(m_event.LeaseExpiresAt, now)).
		OrderBy(m_event.LeaseExpiresAt, query.Asc).
		OrderBy(m_event.EventID, query.Asc).
		Limit(limit).
		Build()

	iter := c.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var entries []contracts.DueEntry
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired leases: %w", err)
		}

		var entry contracts.DueEntry
		if err := row.Columns(&entry.EventID, &entry.ScheduledAt); err != nil {
			return nil, fmt.Errorf("failed to parse expired-lease row: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// readEvent loads the full event row inside txn.
func (c *ClaimManager) readEvent(ctx context.Context, txn *spanner.ReadWriteTransaction, id string) (*domain.Event, error) {
	row, err := txn.ReadRow(ctx, m_event.TableName, spanner.Key{id}, m_event.Columns())
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
