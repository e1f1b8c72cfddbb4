package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	now := time.Now().UTC()
	payload := json.RawMessage(`{"video_id":"v-123"}`)

	t.Run("creates scheduled event with valid input", func(t *testing.T) {
		e, err := NewEvent("evt-1", "video.render", payload, map[string]string{"tenant": "acme"}, now.Add(time.Hour), now)
		require.NoError(t, err)

		assert.Equal(t, "evt-1", e.ID())
		assert.Equal(t, "video.render", e.Kind())
		assert.Equal(t, StatusScheduled, e.Status())
		assert.Equal(t, now.Add(time.Hour), e.ScheduledAt())
		assert.Equal(t, int64(0), e.AttemptCount())
		assert.Nil(t, e.LeaseOwner())
		assert.Nil(t, e.LeaseExpiresAt())
		assert.Equal(t, now, e.CreatedAt())
		assert.Equal(t, now, e.UpdatedAt())
	})

	t.Run("rejects empty kind", func(t *testing.T) {
		_, err := NewEvent("evt-2", "", payload, nil, now.Add(time.Hour), now)
		assert.ErrorIs(t, err, ErrEmptyKind)
	})

	t.Run("rejects past scheduled time", func(t *testing.T) {
		_, err := NewEvent("evt-3", "video.render", payload, nil, now.Add(-time.Second), now)
		assert.ErrorIs(t, err, ErrInvalidSchedule)
	})

	t.Run("rejects scheduled time equal to now", func(t *testing.T) {
		_, err := NewEvent("evt-4", "video.render", payload, nil, now, now)
		assert.ErrorIs(t, err, ErrInvalidSchedule)
	})

	t.Run("metadata is copied, not aliased", func(t *testing.T) {
		meta := map[string]string{"tenant": "acme"}
		e, err := NewEvent("evt-5", "video.render", payload, meta, now.Add(time.Hour), now)
		require.NoError(t, err)

		meta["tenant"] = "other"
		assert.Equal(t, "acme", e.Metadata()["tenant"])
	})
}

func TestParseStatus(t *testing.T) {
	t.Run("accepts all lifecycle statuses", func(t *testing.T) {
		for _, s := range []string{"scheduled", "processing", "completed", "failed"} {
			got, err := ParseStatus(s)
			require.NoError(t, err)
			assert.Equal(t, Status(s), got)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := ParseStatus("pending")
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("rejects empty status", func(t *testing.T) {
		_, err := ParseStatus("")
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusScheduled.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestEventClaim(t *testing.T) {
	now := time.Now().UTC()
	lease := 30 * time.Second

	newScheduled := func(t *testing.T) *Event {
		t.Helper()
		e, err := NewEvent("evt-1", "video.render", nil, nil, now.Add(time.Minute), now.Add(-time.Hour))
		require.NoError(t, err)
		return e
	}

	t.Run("claim on scheduled event grants lease and counts attempt", func(t *testing.T) {
		e := newScheduled(t)

		err := e.Claim("worker-a", lease, now)
		require.NoError(t, err)

		assert.Equal(t, StatusProcessing, e.Status())
		assert.Equal(t, int64(1), e.AttemptCount())
		require.NotNil(t, e.LeaseOwner())
		assert.Equal(t, "worker-a", *e.LeaseOwner())
		require.NotNil(t, e.LeaseExpiresAt())
		assert.Equal(t, now.Add(lease), *e.LeaseExpiresAt())
	})

	t.Run("claim on held lease is rejected", func(t *testing.T) {
		e := newScheduled(t)
		require.NoError(t, e.Claim("worker-a", lease, now))

		err := e.Claim("worker-b", lease, now.Add(lease/2))
		assert.ErrorIs(t, err, ErrAlreadyClaimed)
		assert.Equal(t, "worker-a", *e.LeaseOwner())
		assert.Equal(t, int64(1), e.AttemptCount())
	})

	t.Run("expired lease is reclaimable and counts one more attempt", func(t *testing.T) {
		e := newScheduled(t)
		require.NoError(t, e.Claim("worker-a", lease, now))

		err := e.Claim("worker-b", lease, now.Add(lease+time.Second))
		require.NoError(t, err)

		assert.Equal(t, StatusProcessing, e.Status())
		assert.Equal(t, "worker-b", *e.LeaseOwner())
		assert.Equal(t, int64(2), e.AttemptCount())
	})

	t.Run("lease expiring exactly now is reclaimable", func(t *testing.T) {
		e := newScheduled(t)
		require.NoError(t, e.Claim("worker-a", lease, now))

		err := e.Claim("worker-b", lease, now.Add(lease))
		require.NoError(t, err)
	})

	t.Run("terminal event is not claimable", func(t *testing.T) {
		e := newScheduled(t)
		require.NoError(t, e.Claim("worker-a", lease, now))
		require.NoError(t, e.Complete("worker-a", now))

		err := e.Claim("worker-b", lease, now.Add(time.Hour))
		assert.ErrorIs(t, err, ErrAlreadyClaimed)
	})

	t.Run("processing event without expiry is treated as abandoned", func(t *testing.T) {
		e := newScheduled(t)
		require.NoError(t, e.OverrideStatus(StatusProcessing, now))

		assert.True(t, e.Claimable(now))
		require.NoError(t, e.Claim("worker-a", lease, now))
	})
}

func TestEventRelease(t *testing.T) {
	now := time.Now().UTC()
	lease := 30 * time.Second

	claimed := func(t *testing.T, workerID string) *Event {
		t.Helper()
		e, err := NewEvent("evt-1", "video.render", nil, nil, now.Add(time.Minute), now.Add(-time.Hour))
		require.NoError(t, err)
		require.NoError(t, e.Claim(workerID, lease, now))
		return e
	}

	t.Run("complete finalizes and clears lease", func(t *testing.T) {
		e := claimed(t, "worker-a")
		done := now.Add(time.Second)

		err := e.Complete("worker-a", done)
		require.NoError(t, err)

		assert.Equal(t, StatusCompleted, e.Status())
		assert.Nil(t, e.LeaseOwner())
		assert.Nil(t, e.LeaseExpiresAt())
		require.NotNil(t, e.ProcessedAt())
		assert.Equal(t, done, *e.ProcessedAt())
	})

	t.Run("complete by non-owner is lease lost", func(t *testing.T) {
		e := claimed(t, "worker-a")

		err := e.Complete("worker-b", now)
		assert.ErrorIs(t, err, ErrLeaseLost)
		assert.Equal(t, StatusProcessing, e.Status())
	})

	t.Run("complete after expiry still succeeds for the owner", func(t *testing.T) {
		e := claimed(t, "worker-a")

		err := e.Complete("worker-a", now.Add(lease+time.Minute))
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, e.Status())
	})

	t.Run("complete after the lease was stolen is lease lost", func(t *testing.T) {
		e := claimed(t, "worker-a")
		require.NoError(t, e.Claim("worker-b", lease, now.Add(lease+time.Second)))

		err := e.Complete("worker-a", now.Add(lease+2*time.Second))
		assert.ErrorIs(t, err, ErrLeaseLost)
	})

	t.Run("fail records the error and dead-letters", func(t *testing.T) {
		e := claimed(t, "worker-a")

		err := e.Fail("worker-a", "publish timeout", now.Add(time.Second))
		require.NoError(t, err)

		assert.Equal(t, StatusFailed, e.Status())
		require.NotNil(t, e.LastError())
		assert.Equal(t, "publish timeout", *e.LastError())
		assert.NotNil(t, e.ProcessedAt())
	})

	t.Run("requeue returns the event to the schedule at the retry time", func(t *testing.T) {
		e := claimed(t, "worker-a")
		retryAt := now.Add(2 * time.Second)

		err := e.Requeue("worker-a", retryAt, "broker unavailable", now)
		require.NoError(t, err)

		assert.Equal(t, StatusScheduled, e.Status())
		assert.Equal(t, retryAt, e.ScheduledAt())
		assert.Nil(t, e.LeaseOwner())
		assert.Nil(t, e.LeaseExpiresAt())
		assert.Equal(t, int64(1), e.AttemptCount())
		require.NotNil(t, e.LastError())
		assert.Equal(t, "broker unavailable", *e.LastError())
	})

	t.Run("requeue by non-owner is lease lost", func(t *testing.T) {
		e := claimed(t, "worker-a")

		err := e.Requeue("worker-b", now.Add(time.Second), "x", now)
		assert.ErrorIs(t, err, ErrLeaseLost)
	})
}

func TestEventOverrideStatus(t *testing.T) {
	now := time.Now().UTC()

	t.Run("forces terminal status and stamps processed_at", func(t *testing.T) {
		e, err := NewEvent("evt-1", "video.render", nil, nil, now.Add(time.Hour), now)
		require.NoError(t, err)

		require.NoError(t, e.OverrideStatus(StatusCompleted, now))
		assert.Equal(t, StatusCompleted, e.Status())
		assert.NotNil(t, e.ProcessedAt())
	})

	t.Run("forcing out of terminal clears processed_at", func(t *testing.T) {
		e, err := NewEvent("evt-2", "video.render", nil, nil, now.Add(time.Hour), now)
		require.NoError(t, err)
		require.NoError(t, e.OverrideStatus(StatusFailed, now))

		require.NoError(t, e.OverrideStatus(StatusScheduled, now))
		assert.Equal(t, StatusScheduled, e.Status())
		assert.Nil(t, e.ProcessedAt())
	})

	t.Run("clears the lease when forcing a claimed event", func(t *testing.T) {
		e, err := NewEvent("evt-3", "video.render", nil, nil, now.Add(time.Hour), now)
		require.NoError(t, err)
		require.NoError(t, e.Claim("worker-a", time.Minute, now))

		require.NoError(t, e.OverrideStatus(StatusScheduled, now))
		assert.Nil(t, e.LeaseOwner())
		assert.Nil(t, e.LeaseExpiresAt())
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		e, err := NewEvent("evt-4", "video.render", nil, nil, now.Add(time.Hour), now)
		require.NoError(t, err)

		err = e.OverrideStatus(Status("archived"), now)
		assert.ErrorIs(t, err, ErrInvalidStatus)
		assert.Equal(t, StatusScheduled, e.Status())
	})
}
