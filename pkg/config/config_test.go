package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saxsdensity/internal/models"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero dmax", func(c *Config) { c.Grid.MaxDimension = 0 }, "grid.maxDimension"},
		{"negative voxel", func(c *Config) { c.Grid.VoxelSize = -1 }, "grid.voxelSize"},
		{"oversampling below one", func(c *Config) { c.Grid.Oversampling = 0.5 }, "grid.oversampling"},
		{"zero iterations", func(c *Config) { c.Iterations.MaxIterations = 0 }, "iterations.maxIterations"},
		{"threshold fraction of one", func(c *Config) { c.ShrinkWrap.ThresholdFraction = 1 }, "shrinkWrap.thresholdFraction"},
		{"unknown schedule", func(c *Config) { c.ShrinkWrap.Schedule = "linear" }, "shrinkWrap.schedule"},
		{"unknown scale method", func(c *Config) { c.Constraints.ScaleMethod = "median" }, "constraints.scaleMethod"},
		{"sigma end above start", func(c *Config) { c.ShrinkWrap.SigmaEnd = 4 }, "shrinkWrap.sigmaEnd"},
		{"annealing downwards", func(c *Config) {
			c.ShrinkWrap.Schedule = "annealed"
			c.ShrinkWrap.ThresholdFractionEnd = 0.1
		}, "shrinkWrap.thresholdFractionEnd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			var cfgErr *models.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, models.ErrCodeInvalidValue, cfgErr.Code)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Grid.MaxDimension = 120
	cfg.Iterations.RandomSeed = 99
	cfg.ShrinkWrap.Schedule = "annealed"
	cfg.ShrinkWrap.ThresholdFractionEnd = 0.3
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid:\n  maxDimension: 80\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 80.0, cfg.Grid.MaxDimension)
	assert.Equal(t, 5.0, cfg.Grid.VoxelSize)
	assert.Equal(t, 5000, cfg.Iterations.MaxIterations)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid:\n  voxelSize: -2\n"), 0644))
	_, err := LoadConfig(path)
	var cfgErr *models.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	require.NoError(t, os.WriteFile(path, []byte("grid: [unclosed"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
