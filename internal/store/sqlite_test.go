package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactormap/reactorsync/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "pris")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	stats := model.RunStats{Processed: 120, Matched: 115, Updated: 12, Unmatched: 5}
	require.NoError(t, st.CompleteRun(ctx, run.ID, stats))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, stats, got.Stats)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.CompletedAt)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "wikipedia")
	require.NoError(t, err)

	require.NoError(t, st.FailRun(ctx, run.ID, model.RunStats{Processed: 3}, "upstream unavailable"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "upstream unavailable", got.Error)
	assert.Equal(t, 3, got.Stats.Processed)
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteRun(context.Background(), "no-such-run", model.RunStats{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns_Filtered(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r1, err := st.CreateRun(ctx, "pris")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "wikidata")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, r1.ID, model.RunStats{}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, r1.ID, complete[0].ID)

	bySource, err := st.ListRuns(ctx, RunFilter{Source: "wikidata"})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, "wikidata", bySource[0].Source)
}

func TestSQLite_AppendAndListChanges(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "pris")
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	changes := []model.ChangeRecord{
		{Reactor: "Gravelines-1", Country: "France", Field: "Capacity", OldValue: "910", NewValue: "951", ChangedAt: now},
		{Reactor: "Gravelines-1", Country: "France", Field: "Status", OldValue: "Operational", NewValue: "Shutdown", ChangedAt: now},
	}
	require.NoError(t, st.AppendChanges(ctx, run.ID, changes))
	require.NoError(t, st.AppendChanges(ctx, run.ID, nil), "empty append is a no-op")

	got, err := st.ListChanges(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Capacity", got[0].Field)
	assert.Equal(t, "951", got[0].NewValue)
	assert.True(t, got[0].ChangedAt.Equal(now))
}

func TestSQLite_Candidates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "pris")
	require.NoError(t, err)

	cap1 := 1200
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.AddCandidates(ctx, run.ID, []model.Candidate{
		{Name: "Akkuyu-1", Country: "Turkey", CountryCode: "TR", Capacity: &cap1, Status: model.StatusUnderConstruction, Source: "pris", SeenAt: now},
		{Name: "El Dabaa-1", Country: "Egypt", Source: "pris", SeenAt: now},
	}))

	got, err := st.ListCandidates(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by country, then name.
	assert.Equal(t, "El Dabaa-1", got[0].Name)
	assert.Nil(t, got[0].Capacity)
	assert.Equal(t, "Akkuyu-1", got[1].Name)
	require.NotNil(t, got[1].Capacity)
	assert.Equal(t, 1200, *got[1].Capacity)
	assert.Equal(t, model.StatusUnderConstruction, got[1].Status)
}

func TestSQLite_ListChanges_EmptyRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "wikipedia")
	require.NoError(t, err)

	got, err := st.ListChanges(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
