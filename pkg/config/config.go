// Package config provides configuration loading and management for
// driftsearch. It handles loading configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Search parameters define the candidate trajectory grid
	Search struct {
		// NumAngles is the number of trajectory angles, linearly spaced
		NumAngles int `yaml:"numAngles"`

		// NumVelocities is the number of velocity magnitudes, linearly spaced
		NumVelocities int `yaml:"numVelocities"`

		// MinAngle and MaxAngle bound the angle grid in radians from the +x axis
		MinAngle float32 `yaml:"minAngle"`
		MaxAngle float32 `yaml:"maxAngle"`

		// MinVelocity and MaxVelocity bound the magnitude grid in pixels per unit time
		MinVelocity float32 `yaml:"minVelocity"`
		MaxVelocity float32 `yaml:"maxVelocity"`

		// MinObserved is the minimum number of contributing frames to keep a trajectory
		MinObserved int `yaml:"minObserved"`

		// MinLH drops trajectories below this likelihood
		MinLH float32 `yaml:"minLH"`

		// ResultsPerPixel is the per-pixel retention count K
		ResultsPerPixel int `yaml:"resultsPerPixel"`

		// KeepFraction is the fraction of the globally ranked list to keep
		KeepFraction float64 `yaml:"keepFraction"`
	} `yaml:"search"`

	// Processing parameters
	Processing struct {
		// Workers specifies how many goroutines evaluate starting pixels in parallel
		Workers int `yaml:"workers"`

		// Engine selects the evaluation device ("cpu")
		Engine string `yaml:"engine"`

		// PSFSigma is the Gaussian PSF width broadcast across the stack
		PSFSigma float64 `yaml:"psfSigma"`

		// MaskFlags is the bitmask of per-frame mask flags to apply (0 disables)
		MaskFlags int32 `yaml:"maskFlags"`

		// MaskExceptions lists ANDed flag values exempt from masking
		MaskExceptions []int32 `yaml:"maskExceptions"`

		// GlobalMaskFlags is the bitmask for the cross-frame mask rule (0 disables)
		GlobalMaskFlags int32 `yaml:"globalMaskFlags"`

		// GlobalMaskThreshold is the strict frame-count threshold for the global mask
		GlobalMaskThreshold int `yaml:"globalMaskThreshold"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// ResultsFile is where the ranked trajectory list is written
		ResultsFile string `yaml:"resultsFile"`

		// SaveFraction is the fraction of ranked results written to the file
		SaveFraction float64 `yaml:"saveFraction"`

		// PsiDir and PhiDir receive diagnostic psi/phi dumps when both are set
		PsiDir string `yaml:"psiDir"`
		PhiDir string `yaml:"phiDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default search parameters
	cfg.Search.NumAngles = 128
	cfg.Search.NumVelocities = 128
	cfg.Search.MinAngle = 0.0
	cfg.Search.MaxAngle = 6.283185
	cfg.Search.MinVelocity = 100.0
	cfg.Search.MaxVelocity = 500.0
	cfg.Search.MinObserved = 3
	cfg.Search.MinLH = 0.0
	cfg.Search.ResultsPerPixel = 8
	cfg.Search.KeepFraction = 1.0

	// Set default processing parameters
	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Engine = "cpu"
	cfg.Processing.PSFSigma = 1.0
	cfg.Processing.MaskFlags = 0
	cfg.Processing.GlobalMaskFlags = 0
	cfg.Processing.GlobalMaskThreshold = 2

	// Set default output parameters
	cfg.Output.ResultsFile = "results.txt"
	cfg.Output.SaveFraction = 1.0
	cfg.Output.Verbose = true

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
