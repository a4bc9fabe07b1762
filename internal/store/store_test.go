package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xharvest/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "db", "xharvest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecords() []types.Record {
	return []types.Record{
		{Key: "alice", Fields: map[string]string{"name": "Alice", "identifier": "@alice"}},
		{Key: "bob", Fields: map[string]string{"name": "Bob", "identifier": "@bob"}},
	}
}

func TestConnectionPragmas(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var mode string
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestSQLiteCheckpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cp := s.Checkpoint("followers")

	got, err := cp.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	_, _, ok, err := cp.Info(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cp.Write(ctx, sampleRecords()))
	require.NoError(t, cp.Write(ctx, sampleRecords()[:1]))

	got, err = cp.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords()[:1], got)

	count, updated, ok, err := cp.Info(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, count)
	assert.WithinDuration(t, time.Now(), updated, time.Minute)

	// slots are independent
	other, err := s.Checkpoint("bookmarks").Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, cp.Clear(ctx))
	got, err = cp.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteSignalIsOneShot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sig := s.Signal()

	stop, err := sig.ConsumeStop(ctx)
	require.NoError(t, err)
	assert.False(t, stop)

	require.NoError(t, sig.RequestStop(ctx))
	require.NoError(t, sig.RequestStop(ctx))

	stop, err = sig.ConsumeStop(ctx)
	require.NoError(t, err)
	assert.True(t, stop)

	stop, err = sig.ConsumeStop(ctx)
	require.NoError(t, err)
	assert.False(t, stop)
}

func TestSQLiteSignalSharedAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	harvester, err := New(path)
	require.NoError(t, err)
	defer harvester.Close()
	stopper, err := New(path)
	require.NoError(t, err)
	defer stopper.Close()

	require.NoError(t, stopper.Signal().RequestStop(ctx))
	stop, err := harvester.Signal().ConsumeStop(ctx)
	require.NoError(t, err)
	assert.True(t, stop)
}

func TestRunHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Hour).Truncate(time.Second)

	runs := []Run{
		{ID: "r1", ListType: types.ListFollowers, URL: "https://x.com/a/followers", Outcome: "converged", RecordCount: 10, Attempts: 20, StartedAt: start, FinishedAt: start.Add(time.Minute)},
		{ID: "r2", ListType: types.ListBookmarks, Outcome: "failed", Error: "target closed", RecordCount: 3, Attempts: 4, StartedAt: start.Add(10 * time.Minute), FinishedAt: start.Add(11 * time.Minute)},
		{ID: "r3", ListType: types.ListFollowers, Outcome: "truncated", RecordCount: 500, Attempts: 500, StartedAt: start.Add(20 * time.Minute), FinishedAt: start.Add(30 * time.Minute)},
	}
	for i := range runs {
		require.NoError(t, s.SaveRun(ctx, &runs[i]))
	}

	all, err := s.RecentRuns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r3", all[0].ID)
	assert.Equal(t, "target closed", all[1].Error)
	assert.Equal(t, 10*time.Minute, all[0].Duration())

	followers, err := s.RecentRuns(ctx, types.ListFollowers, 1)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "r3", followers[0].ID)

	// re-saving updates the outcome
	runs[0].Outcome = "converged_verified"
	require.NoError(t, s.SaveRun(ctx, &runs[0]))
	all, err = s.RecentRuns(ctx, types.ListFollowers, 10)
	require.NoError(t, err)
	assert.Equal(t, "converged_verified", all[1].Outcome)
	assert.Equal(t, "https://x.com/a/followers", all[1].URL)
}
