package config

import (
	"os"
	"path/filepath"
	"testing"

	internal "github.com/ZanzyTHEbar/catalog-balancer/catbal"
	"github.com/ZanzyTHEbar/catalog-balancer/catbal/balancer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()
	require.NoError(suite.T(), os.Chdir(suite.tempDir))
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) writeConfig(content string) string {
	path := filepath.Join(suite.tempDir, "config.yaml")
	require.NoError(suite.T(), os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), "info", cfg.LogLevel)
	assert.Equal(suite.T(), int64(internal.DefaultOptimalWeight), cfg.Balancer.OptimalWeight)
	assert.Equal(suite.T(), int64(internal.DefaultMaxWeight), cfg.Balancer.MaxWeight)
	assert.Equal(suite.T(), int64(internal.DefaultUnderflowThreshold), cfg.Balancer.UnderflowThreshold)
	assert.Equal(suite.T(), int64(internal.DefaultOverflowThreshold), cfg.Balancer.OverflowThreshold)
	assert.Equal(suite.T(), internal.DefaultMarkerName, cfg.Filesystem.MarkerName)
	assert.Equal(suite.T(), internal.DefaultIgnoreFile, cfg.Filesystem.IgnoreFile)
	assert.Equal(suite.T(), 4, cfg.Simulation.Workers)
	assert.Equal(suite.T(), internal.DefaultStatsDBPath, cfg.Report.DBPath)
	assert.Equal(suite.T(), *cfg, AppConfig)
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	path := suite.writeConfig(`
logLevel: debug
balancer:
  optimalWeight: 500
  maxWeight: 1000
  underflowThreshold: 50
  overflowThreshold: 2000
filesystem:
  markerName: .catalog
simulation:
  seed: 42
  workers: 2
`)

	cfg, err := LoadConfig(path)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "debug", cfg.LogLevel)
	assert.Equal(suite.T(), int64(500), cfg.Balancer.OptimalWeight)
	assert.Equal(suite.T(), int64(1000), cfg.Balancer.MaxWeight)
	assert.Equal(suite.T(), int64(50), cfg.Balancer.UnderflowThreshold)
	assert.Equal(suite.T(), int64(2000), cfg.Balancer.OverflowThreshold)
	assert.Equal(suite.T(), ".catalog", cfg.Filesystem.MarkerName)
	assert.Equal(suite.T(), int64(42), cfg.Simulation.Seed)
	assert.Equal(suite.T(), 2, cfg.Simulation.Workers)
	// untouched keys keep their defaults
	assert.Equal(suite.T(), 100000, cfg.Simulation.TreeSize)
}

func (suite *ConfigTestSuite) TestLoadConfigFromWorkingDirectory() {
	suite.writeConfig("balancer:\n  maxWeight: 30000\n")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(30000), cfg.Balancer.MaxWeight)
}

func (suite *ConfigTestSuite) TestEnvironmentOverride() {
	suite.T().Setenv("CATBAL_BALANCER_MAXWEIGHT", "25000")
	suite.T().Setenv("CATBAL_LOGLEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(25000), cfg.Balancer.MaxWeight)
	assert.Equal(suite.T(), "warn", cfg.LogLevel)
}

func (suite *ConfigTestSuite) TestInvalidThresholds() {
	path := suite.writeConfig(`
balancer:
  optimalWeight: 5000
  maxWeight: 1000
`)
	_, err := LoadConfig(path)
	assert.ErrorIs(suite.T(), err, ErrInvalidThresholds)
	assert.ErrorIs(suite.T(), err, balancer.ErrInvalidWeights)

	path = suite.writeConfig(`
balancer:
  underflowThreshold: 50000
  overflowThreshold: 40000
`)
	_, err = LoadConfig(path)
	assert.ErrorIs(suite.T(), err, balancer.ErrInvalidThresholds)
}

func (suite *ConfigTestSuite) TestMalformedFile() {
	path := suite.writeConfig("balancer: [unterminated\n")
	_, err := LoadConfig(path)
	assert.Error(suite.T(), err)

	_, err = LoadConfig(filepath.Join(suite.tempDir, "missing.yaml"))
	assert.Error(suite.T(), err, "an explicit config file must exist")
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Balancer: BalancerConfig{
			OptimalWeight:      10,
			MaxWeight:          20,
			UnderflowThreshold: 1,
			OverflowThreshold:  40,
		},
		Filesystem: FilesystemConfig{MarkerName: ".cvmfscatalog"},
		Simulation: SimulationConfig{Workers: 1},
	}
	require.NoError(t, cfg.Validate())

	noWorkers := cfg
	noWorkers.Simulation.Workers = 0
	assert.ErrorIs(t, noWorkers.Validate(), ErrInvalidThresholds)

	noMarker := cfg
	noMarker.Filesystem.MarkerName = ""
	assert.ErrorIs(t, noMarker.Validate(), ErrInvalidThresholds)
}
