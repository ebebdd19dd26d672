package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/catalog-balancer/catbal"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/balancer"

	"github.com/spf13/viper"
)

// ErrInvalidThresholds reports an inconsistent set of catalog size bounds
var ErrInvalidThresholds = errors.New("invalid catalog thresholds")

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	LogLevel   string           `mapstructure:"logLevel"`
	Balancer   BalancerConfig   `mapstructure:"balancer"`
	Filesystem FilesystemConfig `mapstructure:"filesystem"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Report     ReportConfig     `mapstructure:"report"`
}

// BalancerConfig stores catalog size bounds, in entries per catalog.
type BalancerConfig struct {
	OptimalWeight      int64 `mapstructure:"optimalWeight"`
	MaxWeight          int64 `mapstructure:"maxWeight"`
	UnderflowThreshold int64 `mapstructure:"underflowThreshold"`
	OverflowThreshold  int64 `mapstructure:"overflowThreshold"`
}

// FilesystemConfig stores settings for partitioning real directory trees.
type FilesystemConfig struct {
	MarkerName string `mapstructure:"markerName"`
	IgnoreFile string `mapstructure:"ignoreFile"`
}

// SimulationConfig stores workload generator settings.
type SimulationConfig struct {
	Seed       int64 `mapstructure:"seed"`
	TreeSize   int   `mapstructure:"treeSize"`
	Iterations int   `mapstructure:"iterations"`
	MaxChunk   int   `mapstructure:"maxChunk"`
	Workers    int   `mapstructure:"workers"`
}

// ReportConfig stores where benchmark results go.
type ReportConfig struct {
	CSVPath string `mapstructure:"csvPath"`
	DBPath  string `mapstructure:"dbPath"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
// Environment variables use the CATBAL prefix, e.g. CATBAL_BALANCER_MAXWEIGHT.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("logLevel", "info")

	v.SetDefault("balancer.optimalWeight", internal.DefaultOptimalWeight)
	v.SetDefault("balancer.maxWeight", internal.DefaultMaxWeight)
	v.SetDefault("balancer.underflowThreshold", internal.DefaultUnderflowThreshold)
	v.SetDefault("balancer.overflowThreshold", internal.DefaultOverflowThreshold)

	v.SetDefault("filesystem.markerName", internal.DefaultMarkerName)
	v.SetDefault("filesystem.ignoreFile", internal.DefaultIgnoreFile)

	v.SetDefault("simulation.seed", 1)
	v.SetDefault("simulation.treeSize", 100000)
	v.SetDefault("simulation.iterations", 100)
	v.SetDefault("simulation.maxChunk", 5000)
	v.SetDefault("simulation.workers", 4)

	v.SetDefault("report.csvPath", filepath.Join(internal.DefaultCacheDir, "modifications.csv"))
	v.SetDefault("report.dbPath", internal.DefaultStatsDBPath)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // balancer.maxWeight becomes CATBAL_BALANCER_MAXWEIGHT

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults will be used.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return &cfg, nil
}

// Validate rejects inconsistent thresholds instead of clamping them
func (c *Config) Validate() error {
	b := c.Balancer
	if err := balancer.ValidateWeights(b.OptimalWeight, b.MaxWeight); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidThresholds, err)
	}
	if err := balancer.ValidateThresholds(b.UnderflowThreshold, b.OverflowThreshold); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidThresholds, err)
	}
	if c.Simulation.Workers < 1 {
		return fmt.Errorf("%w: simulation.workers must be at least 1, got %d", ErrInvalidThresholds, c.Simulation.Workers)
	}
	if c.Filesystem.MarkerName == "" {
		return fmt.Errorf("%w: filesystem.markerName must not be empty", ErrInvalidThresholds)
	}
	return nil
}
