package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/stats"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsDBIntegration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "stats.db")

	store, err := NewStatsDB(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	run, err := store.StartRun("modify", `{"treeSize":1000}`)
	require.NoError(t, err)

	t.Run("StartRun", func(t *testing.T) {
		assert.NotEqual(t, uuid.Nil, run.ID)
		assert.Equal(t, "modify", run.Kind)
		assert.False(t, run.StartedAt.IsZero())

		runs, err := store.Runs()
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, run.ID, runs[0].ID)
		assert.Equal(t, `{"treeSize":1000}`, runs[0].Config)
		assert.WithinDuration(t, run.StartedAt, runs[0].StartedAt, time.Millisecond)
	})

	t.Run("RecordIterations", func(t *testing.T) {
		rows := []stats.Row{
			stats.NewRow(0, 1000, 2*time.Millisecond, 0, []int64{400, 599}, 100),
			stats.NewRow(1, 1040, time.Millisecond, 40, []int64{440, 599}, 100),
		}
		require.NoError(t, store.RecordIterations(run.ID, rows...))
		// rewriting an iteration replaces it
		require.NoError(t, store.RecordIterations(run.ID, rows[1]))

		stored, err := store.Iterations(run.ID)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, rows, stored)

		other, err := store.Iterations(uuid.New())
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("Snapshots", func(t *testing.T) {
		weights := map[string]int64{"": 400, "/a": 599}
		snap, err := store.TakeSnapshot(run.ID, 1, weights)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, snap.ID)

		_, err = store.TakeSnapshot(run.ID, 0, map[string]int64{"": 999})
		require.NoError(t, err)

		snapshots, err := store.Snapshots(run.ID)
		require.NoError(t, err)
		require.Len(t, snapshots, 2)
		assert.Equal(t, 0, snapshots[0].Iteration)
		assert.Equal(t, weights, snapshots[1].Weights)
		assert.Equal(t, run.ID, snapshots[1].RunID)
	})
}

func TestStatsDBReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stats.db")

	store, err := NewStatsDB(dbPath, zerolog.Nop())
	require.NoError(t, err)
	_, err = store.StartRun("sweep", "")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewStatsDB(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "sweep", runs[0].Kind)
	assert.Empty(t, runs[0].Config)
}
