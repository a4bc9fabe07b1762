package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(context.Background(), "UTC", zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestNewRejectsBadTimezone(t *testing.T) {
	_, err := New(context.Background(), "Mars/Olympus_Mons", zerolog.Nop())
	assert.Error(t, err)
}

func TestAddAndListJobs(t *testing.T) {
	s := newTestScheduler(t)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddJob("nightly-bookmarks", "0 3 * * *", noop))
	require.NoError(t, s.AddJob("followers", "@hourly", noop))
	assert.Error(t, s.AddJob("followers", "@daily", noop))
	assert.Error(t, s.AddJob("broken", "every tuesday", noop))

	s.Start()
	defer s.Stop()

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "followers", jobs[0].Name)
	assert.Equal(t, "nightly-bookmarks", jobs[1].Name)
	assert.False(t, jobs[0].NextRun.IsZero())

	s.RemoveJob("followers")
	assert.Len(t, s.ListJobs(), 1)
}

func TestRunNowAppliesTimeout(t *testing.T) {
	s := newTestScheduler(t)
	s.SetJobTimeout(10 * time.Millisecond)

	err := s.RunNow("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.RunNow("failing", func(context.Context) error { return boom }), boom)
}

func TestJobsInheritBaseContext(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	s, err := New(base, "UTC", zerolog.Nop())
	require.NoError(t, err)
	cancel()

	err = s.RunNow("harvest", func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
}
