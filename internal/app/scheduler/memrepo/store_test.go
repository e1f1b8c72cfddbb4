package memrepo

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
	"github.com/light-bringer/scheduler-service/internal/pkg/clock"
)

func newTestStore(t *testing.T) (*Store, *clock.MockClock) {
	t.Helper()

	clk := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return New(clk), clk
}

func mustSchedule(t *testing.T, store *Store, clk *clock.MockClock, id string, in time.Duration) *domain.Event {
	t.Helper()

	event, err := domain.NewEvent(id, "video.render", json.RawMessage(`{"n":1}`), nil, clk.Now().Add(in), clk.Now())
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), event))
	return event
}

func TestStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)

	mustSchedule(t, store, clk, "evt-1", time.Hour)

	got, err := store.Get(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "evt-1", got.ID())
	assert.Equal(t, domain.StatusScheduled, got.Status())

	t.Run("unknown id returns not found", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrEventNotFound)
	})

	t.Run("duplicate insert is rejected", func(t *testing.T) {
		event, err := domain.NewEvent("evt-1", "video.render", nil, nil, clk.Now().Add(time.Hour), clk.Now())
		require.NoError(t, err)
		assert.Error(t, store.Insert(ctx, event))
	})

	t.Run("returned aggregate does not alias stored state", func(t *testing.T) {
		got, err := store.Get(ctx, "evt-1")
		require.NoError(t, err)
		require.NoError(t, got.OverrideStatus(domain.StatusFailed, clk.Now()))

		stored, err := store.Get(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusScheduled, stored.Status())
	})
}

func TestStore_DueBefore(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)

	mustSchedule(t, store, clk, "late", 3*time.Hour)
	mustSchedule(t, store, clk, "early", 30*time.Minute)
	mustSchedule(t, store, clk, "mid", time.Hour)

	t.Run("orders ascending by scheduled time", func(t *testing.T) {
		entries, err := store.DueBefore(ctx, clk.Now().Add(2*time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "early", entries[0].EventID)
		assert.Equal(t, "mid", entries[1].EventID)
	})

	t.Run("ties resolve in insertion order", func(t *testing.T) {
		at := clk.Now().Add(30 * time.Minute)
		index := store.DueIndex()
		require.NoError(t, index.Insert(ctx, "tie-a", at))
		require.NoError(t, index.Insert(ctx, "tie-b", at))

		entries, err := store.DueBefore(ctx, at, 10)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, []string{"early", "tie-a", "tie-b"}, []string{entries[0].EventID, entries[1].EventID, entries[2].EventID})
	})

	t.Run("limit caps the batch", func(t *testing.T) {
		entries, err := store.DueBefore(ctx, clk.Now().Add(4*time.Hour), 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "early", entries[0].EventID)
	})
}

func TestStore_TryClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("claim moves event to processing and de-indexes it", func(t *testing.T) {
		store, clk := newTestStore(t)
		mustSchedule(t, store, clk, "evt-1", time.Minute)

		event, err := store.TryClaim(ctx, "evt-1", "worker-a", 30*time.Second)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessing, event.Status())
		assert.Equal(t, int64(1), event.AttemptCount())
		require.NotNil(t, event.LeaseOwner())
		assert.Equal(t, "worker-a", *event.LeaseOwner())

		entries, err := store.DueBefore(ctx, clk.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("exactly one of two concurrent claimers wins", func(t *testing.T) {
		store, clk := newTestStore(t)
		mustSchedule(t, store, clk, "evt-race", time.Minute)

		var wg sync.WaitGroup
		results := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, results[n] = store.TryClaim(ctx, "evt-race", "worker", 30*time.Second)
			}(i)
		}
		wg.Wait()

		var wins, losses int
		for _, err := range results {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrAlreadyClaimed):
				losses++
			default:
				t.Fatalf("unexpected claim error: %v", err)
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 1, losses)
	})

	t.Run("expired lease is reclaimable with attempt count bumped once", func(t *testing.T) {
		store, clk := newTestStore(t)
		mustSchedule(t, store, clk, "evt-crash", time.Minute)

		_, err := store.TryClaim(ctx, "evt-crash", "worker-a", 30*time.Second)
		require.NoError(t, err)

		// Lease still live: reclaim refused.
		_, err = store.TryClaim(ctx, "evt-crash", "worker-b", 30*time.Second)
		assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

		clk.Advance(31 * time.Second)

		event, err := store.TryClaim(ctx, "evt-crash", "worker-b", 30*time.Second)
		require.NoError(t, err)
		assert.Equal(t, int64(2), event.AttemptCount())
		assert.Equal(t, "worker-b", *event.LeaseOwner())
	})

	t.Run("unknown id returns not found", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.TryClaim(ctx, "missing", "worker", time.Second)
		assert.ErrorIs(t, err, domain.ErrEventNotFound)
	})
}

func TestStore_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("owner completes the event", func(t *testing.T) {
		store, clk := newTestStore(t)
		mustSchedule(t, store, clk, "evt-1", time.Minute)
		_, err := store.TryClaim(ctx, "evt-1", "worker-a", 30*time.Second)
		require.NoError(t, err)

		require.NoError(t, store.Release(ctx, "evt-1", "worker-a", contracts.OutcomeCompleted, ""))

		event, err := store.Get(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, event.Status())
		assert.Nil(t, event.LeaseOwner())
		assert.NotNil(t, event.ProcessedAt())
	})

	t.Run("stale worker cannot overwrite a stolen lease", func(t *testing.T) {
		store, clk := newTestStore(t)
		mustSchedule(t, store, clk, "evt-2", time.Minute)

		_, err := store.TryClaim(ctx, "evt-2", "worker-a", 30*time.Second)
		require.NoError(t, err)
		clk.Advance(31 * time.Second)
		_, err = store.TryClaim(ctx, "evt-2", "worker-b", 30*time.Second)
		require.NoError(t, err)

		err = store.Release(ctx, "evt-2", "worker-a", contracts.OutcomeCompleted, "")
		assert.ErrorIs(t, err, domain.ErrLeaseLost)

		event, err := store.Get(ctx, "evt-2")
		require.NoError(t, err)
		assert.Equal(t, "worker-b", *event.LeaseOwner())
	})

	t.Run("release after expiry succeeds while owner matches", func(t *testing.T) {
		store, clk := newTestStore(t)
		mustSchedule(t, store, clk, "evt-3", time.Minute)

		_, err := store.TryClaim(ctx, "evt-3", "worker-a", 30*time.Second)
		require.NoError(t, err)
		clk.Advance(time.Minute)

		require.NoError(t, store.Release(ctx, "evt-3", "worker-a", contracts.OutcomeFailed, "publish timeout"))

		event, err := store.Get(ctx, "evt-3")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, event.Status())
		require.NotNil(t, event.LastError())
		assert.Equal(t, "publish timeout", *event.LastError())
	})
}

func TestStore_Requeue(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)
	mustSchedule(t, store, clk, "evt-1", time.Minute)

	_, err := store.TryClaim(ctx, "evt-1", "worker-a", 30*time.Second)
	require.NoError(t, err)

	nextRunAt := clk.Now().Add(5 * time.Second)
	require.NoError(t, store.Requeue(ctx, "evt-1", "worker-a", nextRunAt, "broker unavailable"))

	event, err := store.Get(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, event.Status())
	assert.Equal(t, nextRunAt, event.ScheduledAt())
	assert.Equal(t, int64(1), event.AttemptCount(), "requeue must not double-count the attempt")

	entries, err := store.DueBefore(ctx, nextRunAt, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "evt-1", entries[0].EventID)
}

func TestStore_ExpiredLeases(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)
	mustSchedule(t, store, clk, "evt-old", time.Minute)
	mustSchedule(t, store, clk, "evt-new", time.Minute)
	mustSchedule(t, store, clk, "evt-idle", time.Minute)

	_, err := store.TryClaim(ctx, "evt-old", "worker-a", 30*time.Second)
	require.NoError(t, err)
	clk.Advance(10 * time.Second)
	_, err = store.TryClaim(ctx, "evt-new", "worker-a", 30*time.Second)
	require.NoError(t, err)

	t.Run("live leases are not reported", func(t *testing.T) {
		entries, err := store.ExpiredLeases(ctx, clk.Now(), 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("expired leases come back oldest expiry first", func(t *testing.T) {
		clk.Advance(time.Minute)

		entries, err := store.ExpiredLeases(ctx, clk.Now(), 10)
		require.NoError(t, err)
		require.Len(t, entries, 2, "scheduled events must not appear in the sweep")
		assert.Equal(t, "evt-old", entries[0].EventID)
		assert.Equal(t, "evt-new", entries[1].EventID)
	})

	t.Run("limit caps the sweep", func(t *testing.T) {
		entries, err := store.ExpiredLeases(ctx, clk.Now(), 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "evt-old", entries[0].EventID)
	})

	t.Run("finalized events leave the sweep", func(t *testing.T) {
		require.NoError(t, store.Release(ctx, "evt-old", "worker-a", contracts.OutcomeCompleted, ""))

		entries, err := store.ExpiredLeases(ctx, clk.Now(), 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "evt-new", entries[0].EventID)
	})
}

func TestStore_ListDueEvents_TieBreak(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)

	// Same scheduled time, inserted in a known order.
	mustSchedule(t, store, clk, "tie-first", time.Minute)
	mustSchedule(t, store, clk, "tie-second", time.Minute)
	clk.Advance(2 * time.Minute)

	rows, err := store.ListDueEvents(ctx, clk.Now(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "tie-first", rows[0].EventID, "equal due times must list in insertion order")
	assert.Equal(t, "tie-second", rows[1].EventID)
}

func TestStore_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)
	mustSchedule(t, store, clk, "evt-1", time.Minute)

	t.Run("swap succeeds when expectation holds", func(t *testing.T) {
		require.NoError(t, store.UpdateStatus(ctx, "evt-1", domain.StatusScheduled, domain.StatusFailed))

		event, err := store.Get(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, event.Status())

		entries, err := store.DueBefore(ctx, clk.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("swap fails on stale expectation", func(t *testing.T) {
		err := store.UpdateStatus(ctx, "evt-1", domain.StatusScheduled, domain.StatusCompleted)
		assert.ErrorIs(t, err, domain.ErrStatusConflict)
	})

	t.Run("unknown id returns not found", func(t *testing.T) {
		err := store.UpdateStatus(ctx, "missing", domain.StatusScheduled, domain.StatusFailed)
		assert.ErrorIs(t, err, domain.ErrEventNotFound)
	})
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestStore(t)
	mustSchedule(t, store, clk, "evt-1", time.Minute)

	require.NoError(t, store.Delete(ctx, "evt-1"))
	_, err := store.Get(ctx, "evt-1")
	assert.ErrorIs(t, err, domain.ErrEventNotFound)

	entries, err := store.DueBefore(ctx, clk.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	t.Run("deleting unknown id is a no-op", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "evt-1"))
		assert.NoError(t, store.Delete(ctx, "never-existed"))
	})
}
