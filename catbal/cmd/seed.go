package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/ZanzyTHEbar/catalog-balancer/catbal/seed"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewSeedCmd creates the seed subcommand. It snapshots the namespace of a
// directory tree into a msgpack file usable by replay.
func NewSeedCmd(a *app) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "seed ROOT",
		Short: "Snapshot the namespace of a directory tree",
		Long: `Walk ROOT and record every entry, flagging directories that hold a catalog
marker as catalog mountpoints. Paths matching the ignore file at the tree root
are skipped. The snapshot is written atomically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if err := seed.Dump(outputPath, seed.NewSnapshot(root, entries)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries from %s written to %s\n", len(entries), root, outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path to the snapshot file (required)")
	cmd.MarkFlagRequired("output")
	return cmd
}
