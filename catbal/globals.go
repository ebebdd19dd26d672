package internal

import (
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultConfigPath is the default path to the config directory
	DefaultAppName          = "catbal"
	DefaultAppCMDShortCut   = "catbal"
	DefaultConfigPath       = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultCacheDir         = filepath.Join(DefaultConfigPath, ".cache")
	DefaultStatsDBPath      = filepath.Join(DefaultConfigPath, "stats.db")
	DefaultGlobalConfigFile = filepath.Join(DefaultConfigPath, "config.yaml")
	DefaultEnvPrefix        = "CATBAL"

	// Catalog layout
	DefaultMarkerName = ".cvmfscatalog"
	DefaultIgnoreFile = "." + DefaultAppName + "ignore"

	// Default balancing thresholds, in entries per catalog
	DefaultOptimalWeight      = 10000
	DefaultMaxWeight          = 20000
	DefaultUnderflowThreshold = 1000
	DefaultOverflowThreshold  = 40000
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current working directory if home directory is unavailable
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// GetLevelLogger returns the default logger filtered at the named level.
// Unknown level names fall back to info.
func GetLevelLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return GetLogger().Level(lvl)
}
