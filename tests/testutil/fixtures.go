package testutil

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/light-bringer/scheduler-service/internal/models/m_dueindex"
	"github.com/light-bringer/scheduler-service/internal/models/m_event"
)

// CreateTestEvent creates a scheduled event and its due-index entry directly
// in the database, bypassing the use cases.
func CreateTestEvent(t *testing.T, client *spanner.Client, kind string, scheduledAt time.Time) string {
	t.Helper()

	ctx := context.Background()
	eventID := uuid.New().String()

	eventModel := m_event.NewModel()
	indexModel := m_dueindex.NewModel()
	data := &m_event.Data{
		EventID:     eventID,
		Kind:        kind,
		Payload:     spanner.NullJSON{Value: map[string]interface{}{"test": "data"}, Valid: true},
		ScheduledAt: scheduledAt,
		Status:      m_event.StatusScheduled,
	}

	_, err := client.Apply(ctx, []*spanner.Mutation{
		eventModel.InsertMut(data),
		indexModel.InsertMut(eventID, scheduledAt),
	})
	require.NoError(t, err, "failed to create test event")

	return eventID
}

// CreateTestEventWithStatus creates an event in the given status. Only
// scheduled events get a due-index entry.
func CreateTestEventWithStatus(t *testing.T, client *spanner.Client, kind string, scheduledAt time.Time, status string) string {
	t.Helper()

	ctx := context.Background()
	eventID := uuid.New().String()

	eventModel := m_event.NewModel()
	data := &m_event.Data{
		EventID:     eventID,
		Kind:        kind,
		ScheduledAt: scheduledAt,
		Status:      status,
	}

	mutations := []*spanner.Mutation{eventModel.InsertMut(data)}
	if status == m_event.StatusScheduled {
		mutations = append(mutations, m_dueindex.NewModel().InsertMut(eventID, scheduledAt))
	}

	_, err := client.Apply(ctx, mutations)
	require.NoError(t, err, "failed to create test event with status %s", status)

	return eventID
}

// CreateDanglingIndexEntry creates a due-index row with no backing event.
func CreateDanglingIndexEntry(t *testing.T, client *spanner.Client, scheduledAt time.Time) string {
	t.Helper()

	ctx := context.Background()
	eventID := uuid.New().String()

	_, err := client.Apply(ctx, []*spanner.Mutation{
		m_dueindex.NewModel().InsertMut(eventID, scheduledAt),
	})
	require.NoError(t, err, "failed to create dangling index entry")

	return eventID
}

// GetEventByID retrieves an event row from the database for verification.
func GetEventByID(t *testing.T, client *spanner.Client, eventID string) *m_event.Data {
	t.Helper()

	ctx := context.Background()
	row, err := client.Single().ReadRow(ctx, m_event.TableName, spanner.Key{eventID}, m_event.Columns())
	require.NoError(t, err, "failed to get event by id")

	var data m_event.Data
	err = row.ToStruct(&data)
	require.NoError(t, err, "failed to parse event data")

	return &data
}

// HasDueIndexEntry reports whether the due index holds a row for the event.
func HasDueIndexEntry(t *testing.T, client *spanner.Client, eventID string) bool {
	t.Helper()

	ctx := context.Background()
	_, err := client.Single().ReadRow(ctx, m_dueindex.TableName, spanner.Key{eventID}, []string{m_dueindex.EventID})
	if spanner.ErrCode(err) == codes.NotFound {
		return false
	}
	require.NoError(t, err, "failed to read due-index entry")
	return true
}
