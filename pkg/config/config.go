// Package config provides configuration loading and management for nmrfid.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"nmrfid/pkg/acqorder"
	"nmrfid/pkg/combine"
	"nmrfid/pkg/script"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores the group loader may use
		NumCores int `yaml:"numCores"`

		// NProcess is the executor worker count written into procOpts, 0 to omit it
		NProcess int `yaml:"nProcess"`
	} `yaml:"processing"`

	// Acquisition layout overrides
	Acquisition struct {
		// AcqOrder is the acquisition order text, e.g. "d2,p1" or "321". Empty uses the default order
		AcqOrder string `yaml:"acqOrder,omitempty"`

		// ArraySizes holds the array factor per dataset dimension, 0 or 1 when not arrayed
		ArraySizes []int `yaml:"arraySizes,omitempty"`

		// Combination lists the combination mode of each indirect dimension
		Combination []string `yaml:"combination"`
	} `yaml:"acquisition"`

	// Script generation parameters
	Script struct {
		// FIDPath is the raw acquisition to process
		FIDPath string `yaml:"fidPath,omitempty"`

		// DatasetPath is the dataset written by a single-file batch run
		DatasetPath string `yaml:"datasetPath"`

		// OutputDir receives one dataset per file in an arrayed batch run
		OutputDir string `yaml:"outputDir"`

		// CombineFiles writes all files of an arrayed run into DatasetPath
		CombineFiles bool `yaml:"combineFiles"`

		// Header holds header-only operations such as sw(5000.0)
		Header []string `yaml:"header,omitempty"`
	} `yaml:"script"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.NProcess = 0

	cfg.Acquisition.Combination = []string{combine.Default.String()}

	cfg.Script.DatasetPath = "output.nv"
	cfg.Script.OutputDir = "."

	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
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
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the values that do not depend on the acquisition itself.
func (c *Config) Validate() error {
	if c.Processing.NumCores < 0 {
		return fmt.Errorf("numCores must not be negative, got %d", c.Processing.NumCores)
	}
	if c.Processing.NProcess < 0 {
		return fmt.Errorf("nProcess must not be negative, got %d", c.Processing.NProcess)
	}
	for i, a := range c.Acquisition.ArraySizes {
		if a < 0 {
			return fmt.Errorf("arraySizes[%d] must not be negative, got %d", i, a)
		}
	}
	if _, err := c.Modes(); err != nil {
		return err
	}
	for _, op := range c.Script.Header {
		parsed, err := script.ParseOperation(op)
		if err != nil {
			return fmt.Errorf("header: %w", err)
		}
		if !script.IsHeaderOp(parsed.Name) {
			return fmt.Errorf("header: %q is not a header operation", parsed.Name)
		}
	}
	return nil
}

// Modes parses the combination mode names. The result is indexed by
// indirect dimension, starting with dataset dimension 2.
func (c *Config) Modes() ([]combine.Mode, error) {
	modes := make([]combine.Mode, len(c.Acquisition.Combination))
	for i, name := range c.Acquisition.Combination {
		m, err := combine.ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("combination[%d]: %w", i, err)
		}
		modes[i] = m
	}
	return modes, nil
}

// Order parses the configured acquisition order for an nDim acquisition,
// falling back to the default order when none is set.
func (c *Config) Order(nDim int) (acqorder.Order, error) {
	if c.Acquisition.AcqOrder == "" {
		return acqorder.Default(nDim), nil
	}
	return acqorder.Parse(c.Acquisition.AcqOrder, nDim)
}

// ScriptHeader returns the environment parameters for generated scripts.
func (c *Config) ScriptHeader() script.Header {
	return script.Header{
		NProcess:    c.Processing.NProcess,
		FIDPath:     c.Script.FIDPath,
		DatasetPath: c.Script.DatasetPath,
	}
}

// ApplyHeader writes the configured header operations into store.
func (c *Config) ApplyHeader(store *script.Store) error {
	for _, op := range c.Script.Header {
		if err := store.SetHeaderOperation(op); err != nil {
			return fmt.Errorf("header %q: %w", op, err)
		}
	}
	return nil
}
