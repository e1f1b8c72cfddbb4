package repo

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
	"github.com/light-bringer/scheduler-service/internal/models/m_dueindex"
)

// DueIndex implements contracts.DueIndex for Spanner.
type DueIndex struct {
	client *spanner.Client
	model  *m_dueindex.Model
}

// NewDueIndex creates a new Spanner-backed DueIndex.
func NewDueIndex(client *spanner.Client) contracts.DueIndex {
	return &DueIndex{
		client: client,
		model:  m_dueindex.NewModel(),
	}
}

// Insert adds or refreshes an index entry.
func (i *DueIndex) Insert(ctx context.Context, id string, scheduledAt time.Time) error {
	_, err := i.client.Apply(ctx, []*spanner.Mutation{i.model.InsertMut(id, scheduledAt)})
	if err != nil {
		return fmt.Errorf("failed to insert due-index entry: %w", err)
	}
	return nil
}

// Remove deletes an index entry. Unknown ids are a no-op.
func (i *DueIndex) Remove(ctx context.Context, id string) error {
	_, err := i.client.Apply(ctx, []*spanner.Mutation{i.model.DeleteMut(id)})
	if err != nil {
		return fmt.Errorf("failed to remove due-index entry: %w", err)
	}
	return nil
}

// DueBefore returns up to limit entries due at or before t, ascending by
// scheduled time, ties broken by insertion order (commit timestamp).
func (i *DueIndex) DueBefore(ctx context.Context, t time.Time, limit int64) ([]contracts.DueEntry, error) {
	stmt := spanner.Statement{
		SQL: fmt.Sprintf(
			"SELECT %s, %s FROM %s WHERE %s <= @due ORDER BY %s ASC, %s ASC LIMIT @limit",
			m_dueindex.EventID, m_dueindex.ScheduledAt, m_dueindex.TableName,
			m_dueindex.ScheduledAt, m_dueindex.ScheduledAt, m_dueindex.EnqueuedAt,
		),
		Params: map[string]interface{}{
			"due":   t,
			"limit": limit,
		},
	}

	iter := i.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var entries []contracts.DueEntry
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan due-index: %w", err)
		}

		var entry contracts.DueEntry
		if err := row.Columns(&entry.EventID, &entry.ScheduledAt); err != nil {
			return nil, fmt.Errorf("failed to parse due-index row: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
