package cmd

import (
	internal "github.com/ZanzyTHEbar/catalog-balancer/catbal"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries state shared by every subcommand once flags are parsed
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if cmd.Flags().Changed("log-level") {
		level = a.logLevel
	}
	a.cfg = cfg
	a.logger = internal.GetLevelLogger(level)
	return nil
}

// NewRootCmd creates and returns the root cobra command for the catbal CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   internal.DefaultAppCMDShortCut,
		Short: "catbal - partition large namespaces into bounded catalogs",
		Long: `catbal splits a large directory namespace into nested catalogs whose entry
counts stay between configurable bounds, and keeps them balanced as the
namespace changes.

Use subcommands to perform different operations:
  - partition: Write catalog markers into a real directory tree
  - generate: Create a random test tree and partition it
  - seed: Snapshot a directory tree for later replay
  - replay: Apply recorded revisions to a balanced snapshot
  - watch: Keep catalogs balanced while a directory changes
  - benchmark: Partition random namespaces of increasing size
  - modify: Benchmark incremental rebalancing under random changes`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	groupFilesystem := "filesystem"
	groupBenchmark := "benchmark"
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupFilesystem,
		Title: "Filesystem Operations",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupBenchmark,
		Title: "Benchmarks",
	})

	for _, c := range []*cobra.Command{
		NewPartitionCmd(a),
		NewGenerateCmd(a),
		NewSeedCmd(a),
		NewReplayCmd(a),
		NewWatchCmd(a),
	} {
		c.GroupID = groupFilesystem
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{
		NewBenchmarkCmd(a),
		NewModifyCmd(a),
	} {
		c.GroupID = groupBenchmark
		rootCmd.AddCommand(c)
	}
	return rootCmd
}
