package cmd

import (
	"fmt"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/balancer"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/bench"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/db"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/stats"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	"github.com/spf13/cobra"
)

// NewModifyCmd creates the modify subcommand. It benchmarks incremental
// rebalancing while random batches change the namespace.
func NewModifyCmd(a *app) *cobra.Command {
	var (
		treeSize   int
		iterations int
		outputPath string
		record     bool
	)

	cmd := &cobra.Command{
		Use:   "modify",
		Short: "Benchmark incremental rebalancing under random changes",
		Long: `Balance a random namespace with catalogs sized at 5% of the tree, then run
--iterations random insertion or deletion batches. Catalogs growing past twice
the initial size are split and catalogs shrinking below an eighth of that are
merged. One statistics row is written per batch. With --record every row and
a snapshot of the catalog weights go to the statistics database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sim := a.cfg.Simulation
			if cmd.Flags().Changed("tree-size") {
				sim.TreeSize = treeSize
			}
			if cmd.Flags().Changed("iterations") {
				sim.Iterations = iterations
			}
			if outputPath == "" {
				outputPath = a.cfg.Report.CSVPath
			}

			opts := bench.ModificationOptions{
				TreeSize:   sim.TreeSize,
				Iterations: sim.Iterations,
				Seed:       sim.Seed,
				Logger:     a.logger,
			}
			if record {
				store, err := db.NewStatsDB(a.cfg.Report.DBPath, a.logger)
				if err != nil {
					return err
				}
				defer store.Close()
				run, err := store.StartRun("modification", fmt.Sprintf("treeSize=%d iterations=%d seed=%d", sim.TreeSize, sim.Iterations, sim.Seed))
				if err != nil {
					return err
				}
				opts.OnIteration = func(row stats.Row, p *balancer.NamespacePartitioner) error {
					if err := store.RecordIterations(run.ID, row); err != nil {
						return err
					}
					_, err := store.TakeSnapshot(run.ID, row.Iteration, p.Weights())
					return err
				}
			}

			res, err := bench.Modification(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := stats.WriteFile(outputPath, res.Rows); err != nil {
				return err
			}
			if err := res.Partitioner.Verify(); err != nil {
				a.logger.Warn().Err(err).Msg("Catalog weights drifted from the namespace")
			}
			m := res.Partitioner.Metrics().Snapshot(res.Partitioner.Root())
			a.logger.Info().
				Int64("catalogs", m.TotalCatalogs).
				Int64("entries", m.TotalEntries).
				Int("depth", m.MaxDepth).
				Int64("splits", m.OperationCounts[trees.OpCatalogSplit]).
				Int64("merges", m.OperationCounts[trees.OpCatalogMerged]).
				Int64("dropped", m.OperationCounts[trees.OpCatalogDropped]).
				Dur("elapsed", m.ProcessingTime).
				Msg("Modification benchmark complete")
			fmt.Fprintf(cmd.OutOrStdout(), "%d iterations, %d catalogs (max %d, min %d), report written to %s\n",
				len(res.Rows)-1, res.Partitioner.CatalogCount(), res.Limits.Max, res.Limits.Min, outputPath)
			return nil
		},
	}

	cmd.Flags().IntVar(&treeSize, "tree-size", 100000, "Initial size of the tree (default from config)")
	cmd.Flags().IntVar(&iterations, "iterations", 100, "Number of batches (default from config)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Report file (default from config)")
	cmd.Flags().BoolVar(&record, "record", false, "Record rows and catalog snapshots in the statistics database")
	return cmd
}
