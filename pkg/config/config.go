// Package config provides configuration loading and management for lazystack.
// Settings come from a YAML file, then LAZYSTACK_* environment variables
// override individual fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Dataset locates the input files
	Dataset struct {
		// Dir is the directory scanned for frame files
		Dir string `yaml:"dir" env:"LAZYSTACK_DATASET_DIR"`

		// Pattern is a filepath.Match glob applied to file names in Dir
		Pattern string `yaml:"pattern" env:"LAZYSTACK_DATASET_PATTERN"`
	} `yaml:"dataset"`

	// Execution controls how plane reads are scheduled
	Execution struct {
		// Scheduler is "parallel" or "sequential"
		Scheduler string `yaml:"scheduler" env:"LAZYSTACK_SCHEDULER"`

		// Workers bounds concurrent reads for the parallel scheduler
		Workers int `yaml:"workers" env:"LAZYSTACK_WORKERS"`

		// Verbose enables progress logging
		Verbose bool `yaml:"verbose" env:"LAZYSTACK_VERBOSE"`
	} `yaml:"execution"`

	// Filter holds parameters for the processing commands
	Filter struct {
		// Sigma is the gaussian standard deviation per axis (T, Z, Y, X)
		Sigma []float64 `yaml:"sigma" env:"LAZYSTACK_FILTER_SIGMA" envSeparator:","`

		// Size is the box size per axis for minimum/maximum filters
		Size []int `yaml:"size" env:"LAZYSTACK_FILTER_SIZE" envSeparator:","`

		// Threshold is the level used by the threshold filter
		Threshold float64 `yaml:"threshold" env:"LAZYSTACK_FILTER_THRESHOLD"`

		// Cutoff is the low-pass mask width in cycles per pixel
		Cutoff float64 `yaml:"cutoff" env:"LAZYSTACK_FILTER_CUTOFF"`
	} `yaml:"filter"`

	// Output controls exported arrays and images
	Output struct {
		// Dir receives chunked arrays and rendered images
		Dir string `yaml:"dir" env:"LAZYSTACK_OUTPUT_DIR"`

		// Chunks is the chunk size per axis for persisted arrays
		Chunks []int `yaml:"chunks" env:"LAZYSTACK_OUTPUT_CHUNKS" envSeparator:","`

		// Gzip is the chunk compression level, 0 for raw chunks
		Gzip int `yaml:"gzip" env:"LAZYSTACK_OUTPUT_GZIP"`

		// ImageFormat is "png" or "jpeg"
		ImageFormat string `yaml:"imageFormat" env:"LAZYSTACK_OUTPUT_IMAGE_FORMAT"`

		// Quality is the JPEG quality
		Quality int `yaml:"quality" env:"LAZYSTACK_OUTPUT_QUALITY"`
	} `yaml:"output"`

	// Synth sizes the generated demo dataset
	Synth struct {
		Frames int     `yaml:"frames"`
		Depth  int     `yaml:"depth"`
		Height int     `yaml:"height"`
		Width  int     `yaml:"width"`
		Seed   uint64  `yaml:"seed" env:"LAZYSTACK_SYNTH_SEED"`
		Noise  float64 `yaml:"noise"`
		Blobs  int     `yaml:"blobs"`
	} `yaml:"synth"`

	// Telemetry configures trace export
	Telemetry struct {
		// Endpoint is the OTLP/HTTP collector URL; empty disables tracing
		Endpoint string `yaml:"endpoint" env:"LAZYSTACK_OTEL_ENDPOINT"`

		// ServiceName is reported as service.name
		ServiceName string `yaml:"serviceName" env:"LAZYSTACK_OTEL_SERVICE_NAME"`
	} `yaml:"telemetry"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Dataset.Dir = "data"
	cfg.Dataset.Pattern = "*.vstk"

	cfg.Execution.Scheduler = "parallel"
	cfg.Execution.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Execution.Verbose = true

	cfg.Filter.Sigma = []float64{0, 1, 2, 2}
	cfg.Filter.Size = []int{1, 1, 3, 3}
	cfg.Filter.Threshold = 500
	cfg.Filter.Cutoff = 0.1

	cfg.Output.Dir = "output"
	cfg.Output.Chunks = []int{1, 0, 256, 256}
	cfg.Output.ImageFormat = "png"
	cfg.Output.Quality = 90

	cfg.Synth.Frames = 10
	cfg.Synth.Depth = 5
	cfg.Synth.Height = 64
	cfg.Synth.Width = 64
	cfg.Synth.Seed = 1
	cfg.Synth.Noise = 10
	cfg.Synth.Blobs = 4

	cfg.Telemetry.ServiceName = "lazystack"

	return cfg
}

// LoadConfig loads configuration from a YAML file and applies environment
// overrides. If the file doesn't exist, the defaults are used as the base.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv overrides fields of target from their LAZYSTACK_* variables.
// Unset variables leave fields untouched.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects settings the commands cannot run with
func (c *Config) Validate() error {
	switch c.Execution.Scheduler {
	case "parallel", "sequential":
	default:
		return fmt.Errorf("config: unknown scheduler %q", c.Execution.Scheduler)
	}
	if c.Execution.Workers < 1 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Execution.Workers)
	}
	switch c.Output.ImageFormat {
	case "png", "jpeg", "jpg":
	default:
		return fmt.Errorf("config: unknown image format %q", c.Output.ImageFormat)
	}
	if c.Output.Gzip < 0 || c.Output.Gzip > 9 {
		return fmt.Errorf("config: gzip level %d outside 0..9", c.Output.Gzip)
	}
	for _, s := range c.Filter.Sigma {
		if s < 0 {
			return fmt.Errorf("config: negative sigma %g", s)
		}
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
