package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/dispatcher"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/usecases/schedule_event"
	"github.com/light-bringer/scheduler-service/internal/pkg/backoff"
)

// TestDispatchRoundTrip runs the real dispatcher over the in-memory backend:
// a due event is claimed, published and completed while a failing event is
// dead-lettered, without any manual claim calls.
func TestDispatchRoundTrip(t *testing.T) {
	suite := setupTest(t)

	respOK, err := suite.ScheduleEvent.Execute(ctx(), &schedule_event.Request{
		Kind:        "video.render",
		ScheduledAt: suite.Clock.Now().Add(time.Minute),
	})
	require.NoError(t, err)

	respBad, err := suite.ScheduleEvent.Execute(ctx(), &schedule_event.Request{
		Kind:        "email.reminder",
		ScheduledAt: suite.Clock.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	suite.Publisher.FailNext(respBad.EventID, -1)

	// Move past both due times before the dispatcher starts; the mock clock
	// is not advanced while workers are running.
	suite.Clock.Advance(2 * time.Minute)

	d := dispatcher.New(
		dispatcher.Config{
			WorkerID:       "e2e-worker",
			PollInterval:   10 * time.Millisecond,
			BatchSize:      10,
			Concurrency:    2,
			LeaseDuration:  30 * time.Second,
			PublishTimeout: 5 * time.Second,
			MaxAttempts:    1,
			Backoff:        backoff.DefaultConfig(),
		},
		suite.Store.DueIndex(),
		suite.Store,
		suite.Publisher,
		suite.Clock,
		zap.NewNop(),
	)

	runCtx, cancel := context.WithCancel(ctx())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(runCtx)
	}()

	assert.Eventually(t, func() bool {
		stats := d.Metrics().Stats()
		return stats.Published == 1 && stats.DeadLettered == 1
	}, 5*time.Second, 10*time.Millisecond, "dispatcher should settle both events")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}

	ok, err := suite.GetEvent.Execute(ctx(), respOK.EventID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, ok.Status())

	bad, err := suite.GetEvent.Execute(ctx(), respBad.EventID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, bad.Status())
	assert.Equal(t, int64(1), bad.AttemptCount())
	assert.Nil(t, bad.LeaseOwner())

	assert.Equal(t, []string{respOK.EventID}, suite.Publisher.PublishedIDs())
}
