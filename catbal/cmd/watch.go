package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/balancer"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/seed"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/trees"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/watcher"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the watch subcommand. It keeps the catalogs of a live
// directory tree balanced until interrupted.
func NewWatchCmd(a *app) *cobra.Command {
	var (
		weights   weightFlags
		interval  time.Duration
		printTree bool
	)

	cmd := &cobra.Command{
		Use:   "watch ROOT",
		Short: "Keep catalogs balanced while a directory tree changes",
		Long: `Load the namespace of ROOT, balance it, then follow filesystem events and
apply them incrementally. Catalogs touched since the last pass are rebalanced
every --interval. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			optimal, maxWeight, err := weights.resolve(a)
			if err != nil {
				return err
			}
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			entries, err := seed.FromDirectory(afero.NewOsFs(), root, seed.Options{
				MarkerName: a.cfg.Filesystem.MarkerName,
				IgnoreFile: a.cfg.Filesystem.IgnoreFile,
			})
			if err != nil {
				return err
			}
			ns, err := balancer.NewNamespacePartitioner(optimal, maxWeight, balancer.WithLogger(a.logger))
			if err != nil {
				return err
			}
			ns.Populate(entries)
			if err := ns.Balance(trees.RootPath); err != nil {
				return err
			}

			w, err := watcher.New(root, ns,
				watcher.WithLogger(a.logger),
				watcher.WithInterval(interval),
				watcher.WithThresholds(a.cfg.Balancer.UnderflowThreshold, a.cfg.Balancer.OverflowThreshold),
				watcher.WithMarkerName(a.cfg.Filesystem.MarkerName),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := w.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()

			if err := w.Close(); err != nil {
				return err
			}
			s := w.Totals()
			if printTree {
				fmt.Fprint(cmd.OutOrStdout(), ns.Print())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d inserted, %d deleted, %d rebalances, %d catalogs\n",
				s.Inserted, s.Deleted, s.Rebalances, ns.CatalogCount())
			return nil
		},
	}

	weights.register(cmd)
	cmd.Flags().DurationVarP(&interval, "interval", "i", 5*time.Second, "Rebalance interval")
	cmd.Flags().BoolVarP(&printTree, "tree", "t", false, "Print the catalog tree on exit")
	return cmd
}
