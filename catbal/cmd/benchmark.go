package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/bench"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/db"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/stats"

	"github.com/spf13/cobra"
)

// parseSequence reads "start,end,step"
func parseSequence(s string) (start, end, step int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: want start,end,step, got %q", bench.ErrInvalidSequence, s)
	}
	values := make([]int, 3)
	for i, p := range parts {
		values[i], err = strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %v", bench.ErrInvalidSequence, err)
		}
	}
	return values[0], values[1], values[2], nil
}

// recordRun stores rows of a finished run when a database path is configured
func recordRun(a *app, dbPath, kind, description string, rows []stats.Row) error {
	if dbPath == "" {
		return nil
	}
	store, err := db.NewStatsDB(dbPath, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()
	run, err := store.StartRun(kind, description)
	if err != nil {
		return err
	}
	if err := store.RecordIterations(run.ID, rows...); err != nil {
		return err
	}
	a.logger.Info().Str("run", run.ID.String()).Str("db", dbPath).Msg("Run recorded")
	return nil
}

// NewBenchmarkCmd creates the benchmark subcommand. It partitions random
// namespaces of increasing size and reports one row per size.
func NewBenchmarkCmd(a *app) *cobra.Command {
	var (
		weights    weightFlags
		sequence   string
		strategy   string
		outputPath string
		dbPath     string
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Partition random namespaces over a range of sizes",
		Long: `Generate one random namespace per size in --sequence (start,end,step),
partition it in memory and write one statistics row per size. Sizes are
processed concurrently by --workers goroutines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			optimal, maxWeight, err := weights.resolve(a)
			if err != nil {
				return err
			}
			start, end, step, err := parseSequence(sequence)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("workers") {
				workers = a.cfg.Simulation.Workers
			}

			rows, err := bench.Sweep(cmd.Context(), bench.SweepOptions{
				Start:         start,
				End:           end,
				Step:          step,
				OptimalWeight: optimal,
				MaxWeight:     maxWeight,
				Seed:          a.cfg.Simulation.Seed,
				Workers:       workers,
				Strategy:      strategy,
				Logger:        a.logger,
			})
			if err != nil {
				return err
			}
			if err := stats.WriteFile(outputPath, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d sizes benchmarked, report written to %s\n", len(rows), outputPath)
			return recordRun(a, dbPath, "sweep-"+strategy, sequence, rows)
		},
	}

	weights.register(cmd)
	cmd.Flags().StringVarP(&sequence, "sequence", "s", "50000,1000000,50000", "Tree sizes as start,end,step")
	cmd.Flags().StringVar(&strategy, "strategy", bench.StrategyOptimal, "Partitioning strategy (optimal, greedy)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "catalog_benchmark.csv", "Report file")
	cmd.Flags().StringVar(&dbPath, "db", "", "Also record the run in this statistics database")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Concurrent sizes (default from config)")
	return cmd
}
