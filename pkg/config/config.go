// Package config provides configuration loading and management for saxsdensity.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the reconstruction configuration loaded from YAML
type Config struct {
	// Grid parameters
	Grid struct {
		// MaxDimension is the particle's maximum dimension Dmax in Å.
		// It sets the initial support radius and the extent of the grid.
		MaxDimension float64 `yaml:"maxDimension" validate:"gt=0"`

		// VoxelSize is the desired real-space sampling in Å
		VoxelSize float64 `yaml:"voxelSize" validate:"gt=0"`

		// Oversampling is the ratio of box side to Dmax
		Oversampling float64 `yaml:"oversampling" validate:"gte=1"`

		// NSamples overrides the grid side when positive
		NSamples int `yaml:"nSamples" validate:"gte=0"`

		// BoundRadiusFactor scales Dmax to give the radius of the global support bound
		BoundRadiusFactor float64 `yaml:"boundRadiusFactor" validate:"gt=0"`
	} `yaml:"grid"`

	// Iteration parameters
	Iterations struct {
		// MaxIterations is the hard cap on iterations per attempt
		MaxIterations int `yaml:"maxIterations" validate:"gt=0"`

		// RandomSeed makes runs reproducible
		RandomSeed uint64 `yaml:"randomSeed"`

		// DivergenceRetries is how many times a diverged attempt is restarted
		DivergenceRetries int `yaml:"divergenceRetries" validate:"gte=0"`

		// RecenterCadence recentres the density every this many iterations
		// while the support is still fixed; 0 disables recentring
		RecenterCadence int `yaml:"recenterCadence" validate:"gte=0"`
	} `yaml:"iterations"`

	// Shrink-wrap parameters
	ShrinkWrap struct {
		// Start is the first iteration at which the support is updated
		Start int `yaml:"start" validate:"gte=0"`

		// Cadence is the number of iterations between support updates; 0 disables shrink-wrap
		Cadence int `yaml:"cadence" validate:"gte=0"`

		// ThresholdFraction is the fraction of the smoothed maximum kept in the support
		ThresholdFraction float64 `yaml:"thresholdFraction" validate:"gt=0,lt=1"`

		// ThresholdFractionEnd is the final fraction of the annealed schedule
		ThresholdFractionEnd float64 `yaml:"thresholdFractionEnd" validate:"gt=0,lt=1"`

		// Schedule is "fixed" or "annealed"
		Schedule string `yaml:"schedule" validate:"oneof=fixed annealed"`

		// AnnealUpdates is the number of updates over which the threshold is annealed
		AnnealUpdates int `yaml:"annealUpdates" validate:"gte=0"`

		// SigmaStart is the initial Gaussian smoothing width in voxels
		SigmaStart float64 `yaml:"sigmaStart" validate:"gt=0"`

		// SigmaEnd is the final Gaussian smoothing width in voxels
		SigmaEnd float64 `yaml:"sigmaEnd" validate:"gt=0"`

		// SigmaDecay multiplies the smoothing width after every update
		SigmaDecay float64 `yaml:"sigmaDecay" validate:"gt=0,lte=1"`

		// MaxBadMasks is the number of consecutive empty or full masks tolerated
		MaxBadMasks int `yaml:"maxBadMasks" validate:"gte=1"`
	} `yaml:"shrinkWrap"`

	// Convergence parameters
	Convergence struct {
		// PlateauWindow is the number of trailing iterations for plateau detection; 0 disables it
		PlateauWindow int `yaml:"plateauWindow" validate:"gte=0"`

		// PlateauTolerance is the minimum relative improvement across the window
		PlateauTolerance float64 `yaml:"plateauTolerance" validate:"gte=0"`

		// Threshold stops the run once the residual falls below it; 0 disables it
		Threshold float64 `yaml:"threshold" validate:"gte=0"`

		// MinIterations suppresses early plateau and threshold stops
		MinIterations int `yaml:"minIterations" validate:"gte=0"`

		// ChiWeighted selects reduced chi-squared over the relative squared error
		ChiWeighted bool `yaml:"chiWeighted"`
	} `yaml:"convergence"`

	// Constraint parameters
	Constraints struct {
		// ScaleMethod is "least_squares", "weighted_least_squares" or "fixed"
		ScaleMethod string `yaml:"scaleMethod" validate:"oneof=least_squares weighted_least_squares fixed"`

		// AmplitudeMode is "scale" or "replace"
		AmplitudeMode string `yaml:"amplitudeMode" validate:"oneof=scale replace"`

		// EnforceFlatSolvent constrains density outside the Dmax bound
		EnforceFlatSolvent bool `yaml:"enforceFlatSolvent"`

		// FlatSolventCap caps density outside the bound at this multiple of the
		// mean density inside it; 0 removes it
		FlatSolventCap float64 `yaml:"flatSolventCap" validate:"gte=0"`
	} `yaml:"constraints"`

	// Numerical safeguards
	Numerics struct {
		// ImagTolerance is the largest acceptable max|imag|/max|real| after the inverse transform
		ImagTolerance float64 `yaml:"imagTolerance" validate:"gt=0"`

		// MaxInstabilityWarnings aborts the run after this many warnings; 0 means unlimited
		MaxInstabilityWarnings int `yaml:"maxInstabilityWarnings" validate:"gte=0"`
	} `yaml:"numerics"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// LogFile also writes JSON logs to this path when set
		LogFile string `yaml:"logFile"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default grid parameters
	cfg.Grid.MaxDimension = 50.0
	cfg.Grid.VoxelSize = 5.0
	cfg.Grid.Oversampling = 3.0
	cfg.Grid.NSamples = 0
	cfg.Grid.BoundRadiusFactor = 0.6

	// Set default iteration parameters
	cfg.Iterations.MaxIterations = 5000
	cfg.Iterations.RandomSeed = 1
	cfg.Iterations.DivergenceRetries = 2
	cfg.Iterations.RecenterCadence = 0

	// Set default shrink-wrap parameters
	cfg.ShrinkWrap.Start = 100
	cfg.ShrinkWrap.Cadence = 20
	cfg.ShrinkWrap.ThresholdFraction = 0.2
	cfg.ShrinkWrap.ThresholdFractionEnd = 0.2
	cfg.ShrinkWrap.Schedule = "fixed"
	cfg.ShrinkWrap.AnnealUpdates = 50
	cfg.ShrinkWrap.SigmaStart = 3.0
	cfg.ShrinkWrap.SigmaEnd = 1.5
	cfg.ShrinkWrap.SigmaDecay = 0.99
	cfg.ShrinkWrap.MaxBadMasks = 3

	// Set default convergence parameters
	cfg.Convergence.PlateauWindow = 200
	cfg.Convergence.PlateauTolerance = 1e-3
	cfg.Convergence.Threshold = 0
	cfg.Convergence.MinIterations = 1000
	cfg.Convergence.ChiWeighted = true

	// Set default constraint parameters
	cfg.Constraints.ScaleMethod = "least_squares"
	cfg.Constraints.AmplitudeMode = "scale"
	cfg.Constraints.EnforceFlatSolvent = false
	cfg.Constraints.FlatSolventCap = 0

	// Set default numerical safeguards
	cfg.Numerics.ImagTolerance = 1e-6
	cfg.Numerics.MaxInstabilityWarnings = 0

	// Set default output parameters
	cfg.Output.Verbose = false
	cfg.Output.LogFile = ""

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
