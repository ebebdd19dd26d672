// Package bench drives partitioning benchmarks and produces report rows.
package bench

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/balancer"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/seed"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/stats"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/workload"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Partitioning strategies for a sweep
const (
	StrategyOptimal = "optimal"
	StrategyGreedy  = "greedy"
)

// ErrInvalidSequence reports a malformed size sweep
var ErrInvalidSequence = errors.New("invalid size sequence")

// SweepOptions configures a size sweep
type SweepOptions struct {
	Start, End, Step int
	OptimalWeight    int64
	MaxWeight        int64
	Seed             int64
	Workers          int
	Strategy         string
	Logger           zerolog.Logger
}

// Sizes expands the sweep into the tree sizes it covers
func (o SweepOptions) Sizes() ([]int, error) {
	if o.Start <= 0 || o.Step <= 0 || o.End < o.Start {
		return nil, fmt.Errorf("%w: start=%d end=%d step=%d", ErrInvalidSequence, o.Start, o.End, o.Step)
	}
	var sizes []int
	for size := o.Start; size <= o.End; size += o.Step {
		sizes = append(sizes, size)
	}
	return sizes, nil
}

// Sweep partitions one fresh random namespace per size and reports a row
// for each. Sizes run concurrently; rows come back in size order.
func Sweep(ctx context.Context, opts SweepOptions) ([]stats.Row, error) {
	sizes, err := opts.Sizes()
	if err != nil {
		return nil, err
	}
	if err := balancer.ValidateWeights(opts.OptimalWeight, opts.MaxWeight); err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	p := pool.NewWithResults[stats.Row]().WithMaxGoroutines(workers).WithContext(ctx)
	for i, size := range sizes {
		iteration, size := i+1, size
		p.Go(func(ctx context.Context) (stats.Row, error) {
			if err := ctx.Err(); err != nil {
				return stats.Row{}, err
			}
			rng := rand.New(rand.NewSource(opts.Seed + int64(iteration)))
			return sweepOne(opts, iteration, workload.GenerateNamespace(rng, size))
		})
	}
	rows, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Iteration < rows[j].Iteration })
	return rows, nil
}

func sweepOne(opts SweepOptions, iteration int, entries []seed.Entry) (stats.Row, error) {
	ns, err := balancer.NewNamespacePartitioner(opts.OptimalWeight, opts.MaxWeight)
	if err != nil {
		return stats.Row{}, err
	}
	ns.Populate(entries)

	var weights []int64
	start := time.Now()
	switch opts.Strategy {
	case StrategyGreedy:
		g, err := balancer.NewGreedyPartitioner(balancer.NewVirtualLister(ns.Namespace()), opts.OptimalWeight, opts.MaxWeight)
		if err != nil {
			return stats.Row{}, err
		}
		if _, err := g.Partition(); err != nil {
			return stats.Row{}, err
		}
		weights = g.Summary()
	case StrategyOptimal, "":
		if err := ns.Balance(trees.RootPath); err != nil {
			return stats.Row{}, err
		}
		weights = ns.Summary()
	default:
		return stats.Row{}, fmt.Errorf("unknown partitioning strategy %q", opts.Strategy)
	}
	elapsed := time.Since(start)

	opts.Logger.Info().
		Int("iteration", iteration).
		Int("size", ns.Size()).
		Int("catalogs", len(weights)).
		Dur("elapsed", elapsed).
		Msg("Partitioned namespace")
	return stats.NewRow(iteration, ns.Size(), elapsed, 0, weights, opts.MaxWeight), nil
}

// ModificationOptions configures a modification benchmark
type ModificationOptions struct {
	TreeSize   int
	Iterations int
	Seed       int64
	Logger     zerolog.Logger
	// OnIteration is called after every row, the initial balance included
	OnIteration func(row stats.Row, p *balancer.NamespacePartitioner) error
}

// Limits derived from the tree size for a modification benchmark
type Limits struct {
	Initial  int64
	Max      int64
	Min      int64
	Batch    int
	MaxChunk int
}

// ModificationLimits sizes catalogs at 5% of the tree: the initial partition
// targets that size, catalogs may grow to twice it and shrink to an eighth of
// the maximum; every batch touches 10% of the maximum.
func ModificationLimits(treeSize int) Limits {
	initial := int64(float64(treeSize) * 0.05)
	maxSize := 2 * initial
	return Limits{
		Initial:  initial,
		Max:      maxSize,
		Min:      maxSize / 8,
		Batch:    int(float64(maxSize) * 0.1),
		MaxChunk: int(initial),
	}
}

// ModificationResult holds the report rows and the final partitioner state
type ModificationResult struct {
	Limits      Limits
	Rows        []stats.Row
	Partitioner *balancer.NamespacePartitioner
}

// Modification balances a random namespace once, then applies simulated
// insertion and deletion batches, reporting a row per batch.
func Modification(ctx context.Context, opts ModificationOptions) (*ModificationResult, error) {
	limits := ModificationLimits(opts.TreeSize)
	ns, err := balancer.NewNamespacePartitioner(limits.Initial/2, limits.Initial, balancer.WithLogger(opts.Logger))
	if err != nil {
		return nil, fmt.Errorf("tree of %d entries is too small to benchmark: %w", opts.TreeSize, err)
	}
	sim := workload.NewSimulator(ns, opts.Seed, workload.WithLogger(opts.Logger))
	ns.Populate(workload.GenerateNamespace(sim.Rand(), opts.TreeSize))

	res := &ModificationResult{Limits: limits, Partitioner: ns}
	emit := func(row stats.Row) error {
		res.Rows = append(res.Rows, row)
		if opts.OnIteration != nil {
			return opts.OnIteration(row, ns)
		}
		return nil
	}

	start := time.Now()
	if err := ns.Balance(trees.RootPath); err != nil {
		return nil, err
	}
	// the initial row measures against the initial size, as the first partition targets it
	if err := emit(stats.NewRow(0, ns.Size(), time.Since(start), 0, ns.Summary(), limits.Initial)); err != nil {
		return nil, err
	}

	for i := 1; i <= opts.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		start := time.Now()
		batch, err := sim.Simulate(limits.Batch, limits.MaxChunk, limits.Min, limits.Max)
		if err != nil {
			return res, fmt.Errorf("iteration %d: %w", i, err)
		}
		elapsed := time.Since(start)
		if err := emit(stats.NewRow(i, ns.Size(), elapsed, batch.Balance, ns.Summary(), limits.Max)); err != nil {
			return res, err
		}
		opts.Logger.Info().
			Int("iteration", i).
			Bool("insertion", batch.Insertion).
			Int("balance", batch.Balance).
			Int("splits", batch.Splits).
			Int("merges", batch.Merges).
			Int("catalogs", batch.Catalogs).
			Msg("Simulated batch")
	}
	return res, nil
}

// ReplayResult counts the changes applied by Replay
type ReplayResult struct {
	Rows      []stats.Row
	Deletions int
	Additions int
}

// Replay applies each revision to an already balanced partitioner: deletions
// first, then additions, followed by a single FullRebalance pass.
func Replay(ctx context.Context, ns *balancer.NamespacePartitioner, revisions []seed.Revision, underflow, overflow int64) (*ReplayResult, error) {
	res := &ReplayResult{}
	for i, rev := range revisions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		start := time.Now()
		before := ns.Size()
		for _, path := range rev.Deletions {
			err := ns.DeleteNode(trees.NormalizePath(path))
			if errors.Is(err, balancer.ErrNodeNotFound) {
				continue
			}
			if err != nil {
				return res, fmt.Errorf("revision %d: %w", i+1, err)
			}
			res.Deletions++
		}
		for _, e := range rev.Additions {
			node := trees.NewNamespaceNode(trees.NormalizePath(e.Path), e.IsDirectory, false)
			if err := ns.InsertNode(node); err != nil {
				return res, fmt.Errorf("revision %d: %w", i+1, err)
			}
			res.Additions++
		}
		if err := ns.FullRebalance(underflow, overflow); err != nil {
			return res, fmt.Errorf("revision %d: %w", i+1, err)
		}
		ns.RebuildCatalogTree()
		res.Rows = append(res.Rows, stats.NewRow(i+1, ns.Size(), time.Since(start), ns.Size()-before, ns.Summary(), ns.MaxWeight()))
	}
	return res, nil
}
