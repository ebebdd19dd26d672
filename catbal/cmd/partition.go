package cmd

import (
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/balancer"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/stats"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// weightFlags lets a command override the configured catalog weights
type weightFlags struct {
	optimal int64
	max     int64
}

func (w *weightFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&w.optimal, "optimal-weight", 0, "Optimal number of entries in a catalog (default from config)")
	cmd.Flags().Int64Var(&w.max, "max-weight", 0, "Maximum number of entries in a catalog (default from config)")
}

func (w *weightFlags) resolve(a *app) (int64, int64, error) {
	optimal, maxWeight := a.cfg.Balancer.OptimalWeight, a.cfg.Balancer.MaxWeight
	if w.optimal > 0 {
		optimal = w.optimal
	}
	if w.max > 0 {
		maxWeight = w.max
	}
	return optimal, maxWeight, balancer.ValidateWeights(optimal, maxWeight)
}

// NewPartitionCmd creates the partition subcommand. It writes a marker file
// into every catalog root of a real directory tree.
func NewPartitionCmd(a *app) *cobra.Command {
	var (
		weights weightFlags
		dryRun  bool
		tree    bool
	)

	cmd := &cobra.Command{
		Use:   "partition ROOT",
		Short: "Partition a directory tree and write catalog markers",
		Long: `Walk ROOT top-down, fold directories into the current catalog until it
reaches the optimal weight, then start new catalogs. Small leaf catalogs are
merged back into their parents and a marker file is written into every
remaining catalog root.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			optimal, maxWeight, err := weights.resolve(a)
			if err != nil {
				return err
			}
			fs := afero.NewOsFs()
			if dryRun {
				fs = afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(fs), afero.NewMemMapFs())
			}
			return runPartition(cmd, a, fs, args[0], optimal, maxWeight, tree)
		},
	}

	weights.register(cmd)
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Compute the partition without touching the tree")
	cmd.Flags().BoolVarP(&tree, "tree", "t", false, "Print the resulting catalog tree")
	return cmd
}

func runPartition(cmd *cobra.Command, a *app, fs afero.Fs, root string, optimal, maxWeight int64, printTree bool) error {
	start := time.Now()
	p, err := balancer.NewFilesystemPartitioner(fs, root, optimal, maxWeight,
		balancer.WithLogger(a.logger),
		balancer.WithMarkerName(a.cfg.Filesystem.MarkerName),
	)
	if err != nil {
		return err
	}
	if err := p.Balance(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if printTree {
		fmt.Fprint(cmd.OutOrStdout(), p.Root().String())
	}
	summary := stats.Summarize(p.Summary())
	fmt.Fprintf(cmd.OutOrStdout(),
		"%s: %d catalogs (%d markers) in %s\n  optimal %d, max %d, mean %.1f, largest %.0f, smallest %.0f\n",
		root, summary.Count, summary.Count-1, elapsed.Round(time.Millisecond),
		optimal, maxWeight, summary.Mean, summary.Max, summary.Min)
	return nil
}
