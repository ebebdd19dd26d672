package cmd

import (
	"math/rand"
	"os"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/workload"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewGenerateCmd creates the generate subcommand. It builds a random test
// tree on disk and partitions it.
func NewGenerateCmd(a *app) *cobra.Command {
	var (
		weights weightFlags
		root    string
		entries int
		seed    int64
		keep    bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random test tree and partition it",
		Long: `Create a random directory tree of the requested size (about one entry in
four is a directory), then partition it like the partition command does.
Without --root the tree is created in a temporary directory and removed
afterwards unless --keep is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			optimal, maxWeight, err := weights.resolve(a)
			if err != nil {
				return err
			}
			if root == "" {
				root, err = os.MkdirTemp("", "catalog.")
				if err != nil {
					return err
				}
				if !keep {
					defer os.RemoveAll(root)
				}
			}
			if !cmd.Flags().Changed("seed") {
				seed = a.cfg.Simulation.Seed
			}

			fs := afero.NewOsFs()
			rng := rand.New(rand.NewSource(seed))
			if err := workload.GenerateFSTree(fs, rng, root, entries); err != nil {
				return err
			}
			a.logger.Info().Str("root", root).Int("entries", entries).Msg("Test tree generated")
			return runPartition(cmd, a, fs, root, optimal, maxWeight, entries < 150)
		},
	}

	weights.register(cmd)
	cmd.Flags().StringVarP(&root, "root", "r", "", "Directory to generate the tree in (default: temporary)")
	cmd.Flags().IntVarP(&entries, "entries", "e", 150000, "Number of entries to generate")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed (default from config)")
	cmd.Flags().BoolVarP(&keep, "keep", "k", false, "Keep a temporary tree after partitioning")
	return cmd
}
