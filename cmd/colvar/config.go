package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML description of one run: the system, the evaluation
// graph and the driver loop.
type Config struct {
	System struct {
		Atoms int        `yaml:"atoms"`
		Cell  [3]float64 `yaml:"cell"`
		// Lattice spacing for the generated starting configuration.
		Spacing float64 `yaml:"spacing"`
		Seed    int64   `yaml:"seed"`
	} `yaml:"system"`

	Steps      int     `yaml:"steps"`
	Jitter     float64 `yaml:"jitter"`
	PrintEvery int     `yaml:"print_every"`

	Parallel struct {
		Workers      int `yaml:"workers"`
		MinChunkSize int `yaml:"min_chunk_size"`
	} `yaml:"parallel"`

	Actions []ActionSpec `yaml:"actions"`

	// Output values printed each reporting step, by name.
	Print []string `yaml:"print"`

	// Bias forces deposited on named values before the backward pass.
	Bias []BiasSpec `yaml:"bias"`
}

// ActionSpec is one line of the graph description.
type ActionSpec struct {
	Keyword string            `yaml:"keyword"`
	Label   string            `yaml:"label"`
	Args    []string          `yaml:"args"`
	Options map[string]string `yaml:"options"`
}

// BiasSpec deposits a constant force on one element of a named value.
type BiasSpec struct {
	Value   string  `yaml:"value"`
	Element int     `yaml:"element"`
	Force   float64 `yaml:"force"`
}

// LoadConfig reads and validates the YAML run description.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.System.Atoms <= 0 {
		return nil, fmt.Errorf("config: system.atoms must be positive")
	}
	if cfg.Steps <= 0 {
		cfg.Steps = 1
	}
	if cfg.PrintEvery <= 0 {
		cfg.PrintEvery = 1
	}
	if cfg.System.Spacing <= 0 {
		cfg.System.Spacing = 1.0
	}
	if len(cfg.Actions) == 0 {
		return nil, fmt.Errorf("config: no actions defined")
	}
	return &cfg, nil
}
