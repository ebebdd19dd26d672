package cmd

import (
	"fmt"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/balancer"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/bench"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/seed"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/stats"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"

	"github.com/spf13/cobra"
)

// NewReplayCmd creates the replay subcommand. It balances the base namespace
// of a snapshot and then applies each recorded revision incrementally.
func NewReplayCmd(a *app) *cobra.Command {
	var (
		weights    weightFlags
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "replay SNAPSHOT",
		Short: "Replay recorded revisions against a balanced snapshot",
		Long: `Load SNAPSHOT, balance its base namespace, then apply every recorded
revision (deletions first, additions second) followed by one rebalance pass
using the configured underflow and overflow thresholds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			optimal, maxWeight, err := weights.resolve(a)
			if err != nil {
				return err
			}
			snap, err := seed.Load(args[0])
			if err != nil {
				return err
			}

			ns, err := balancer.NewNamespacePartitioner(optimal, maxWeight, balancer.WithLogger(a.logger))
			if err != nil {
				return err
			}
			ns.Populate(snap.Entries)
			if err := ns.Balance(trees.RootPath); err != nil {
				return err
			}

			res, err := bench.Replay(cmd.Context(), ns, snap.Revisions,
				a.cfg.Balancer.UnderflowThreshold, a.cfg.Balancer.OverflowThreshold)
			if err != nil {
				return err
			}
			if outputPath != "" {
				if err := stats.WriteFile(outputPath, res.Rows); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d revisions: %d deletions, %d additions, %d catalogs\n",
				len(snap.Revisions), res.Deletions, res.Additions, ns.CatalogCount())
			return nil
		},
	}

	weights.register(cmd)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write per-revision statistics to this file")
	return cmd
}
