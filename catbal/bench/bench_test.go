package bench

import (
	"context"
	"math/rand"
	"testing"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/balancer"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/seed"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/stats"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/workload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepSizes(t *testing.T) {
	sizes, err := SweepOptions{Start: 100, End: 300, Step: 100}.Sizes()
	require.NoError(t, err)
	assert.Equal(t, []int{100, 200, 300}, sizes)

	sizes, err = SweepOptions{Start: 100, End: 250, Step: 100}.Sizes()
	require.NoError(t, err)
	assert.Equal(t, []int{100, 200}, sizes)

	for _, opts := range []SweepOptions{
		{Start: 0, End: 10, Step: 1},
		{Start: 10, End: 5, Step: 1},
		{Start: 1, End: 10, Step: 0},
	} {
		_, err := opts.Sizes()
		assert.ErrorIs(t, err, ErrInvalidSequence)
	}
}

func TestSweep(t *testing.T) {
	for _, strategy := range []string{StrategyOptimal, StrategyGreedy} {
		t.Run(strategy, func(t *testing.T) {
			rows, err := Sweep(context.Background(), SweepOptions{
				Start:         500,
				End:           2000,
				Step:          500,
				OptimalWeight: 50,
				MaxWeight:     100,
				Seed:          1,
				Workers:       3,
				Strategy:      strategy,
			})
			require.NoError(t, err)
			require.Len(t, rows, 4)
			for i, row := range rows {
				assert.Equal(t, i+1, row.Iteration, "rows come back in size order")
				assert.Equal(t, 500*(i+1), row.Size)
				assert.Equal(t, int64(row.Size-1), row.Entries, "every entry but the root is in a catalog")
				assert.Greater(t, row.Count, 1)
			}
		})
	}
}

func TestSweepErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Sweep(ctx, SweepOptions{Start: 10, End: 10, Step: 1, OptimalWeight: 10, MaxWeight: 5})
	assert.ErrorIs(t, err, balancer.ErrInvalidWeights)

	_, err = Sweep(ctx, SweepOptions{Start: 10, End: 10, Step: 1, OptimalWeight: 5, MaxWeight: 10, Strategy: "random"})
	assert.ErrorContains(t, err, "unknown partitioning strategy")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Sweep(cancelled, SweepOptions{Start: 10, End: 100, Step: 10, OptimalWeight: 5, MaxWeight: 10})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModificationLimits(t *testing.T) {
	assert.Equal(t, Limits{
		Initial:  5000,
		Max:      10000,
		Min:      1250,
		Batch:    1000,
		MaxChunk: 5000,
	}, ModificationLimits(100000))
}

func TestModification(t *testing.T) {
	var seen []int
	res, err := Modification(context.Background(), ModificationOptions{
		TreeSize:   4000,
		Iterations: 8,
		Seed:       5,
		OnIteration: func(row stats.Row, p *balancer.NamespacePartitioner) error {
			seen = append(seen, row.Iteration)
			assert.Equal(t, p.Size(), row.Size)
			return nil
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Rows, 9)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, seen)
	assert.Equal(t, int64(200), res.Limits.Initial)
	assert.Equal(t, 4000, res.Rows[0].Size)
	assert.Equal(t, 0, res.Rows[0].Balance)
	assert.NoError(t, res.Partitioner.Verify())

	_, err = Modification(context.Background(), ModificationOptions{TreeSize: 10})
	assert.ErrorIs(t, err, balancer.ErrInvalidWeights)
}

func TestModificationStopsOnCallbackError(t *testing.T) {
	stop := assert.AnError
	res, err := Modification(context.Background(), ModificationOptions{
		TreeSize:   2000,
		Iterations: 5,
		OnIteration: func(row stats.Row, _ *balancer.NamespacePartitioner) error {
			if row.Iteration == 2 {
				return stop
			}
			return nil
		},
	})
	assert.ErrorIs(t, err, stop)
	require.NotNil(t, res)
	assert.Len(t, res.Rows, 3)
}

func TestReplay(t *testing.T) {
	ns, err := balancer.NewNamespacePartitioner(50, 100)
	require.NoError(t, err)
	ns.Populate(workload.GenerateNamespace(rand.New(rand.NewSource(8)), 1000))
	require.NoError(t, ns.Balance(trees.RootPath))

	var victim string
	for _, path := range ns.Namespace().Keys() {
		if n, _ := ns.Node(path); !n.IsDirectory {
			victim = path
			break
		}
	}
	require.NotEmpty(t, victim)

	revisions := []seed.Revision{
		{
			Deletions: []string{victim, "/does/not/exist"},
			Additions: []seed.Entry{
				{Path: "/release", IsDirectory: true},
				{Path: "/release/notes"},
			},
		},
		{
			Additions: []seed.Entry{{Path: "release/nested/file"}},
		},
	}
	res, err := Replay(context.Background(), ns, revisions, 10, 200)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Deletions, "missing paths are skipped")
	assert.Equal(t, 3, res.Additions)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 1, res.Rows[0].Balance)
	assert.Equal(t, 2, res.Rows[1].Balance, "missing parents are created")
	assert.True(t, ns.Namespace().Contains("/release/nested/file"))
	assert.Equal(t, int64(ns.Size()-1), res.Rows[1].Entries)
	assert.NoError(t, ns.Verify())
}
