// Package config loads staircase run settings from YAML files and
// environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/danielpatrickdp/sas-staircase/internal/staircase"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvDBPath   = "STAIRCASE_DB"
	EnvLogLevel = "STAIRCASE_LOG_LEVEL"
)

// Config contains all settings for a staircase run.
type Config struct {
	// Staircase holds the engine's constructor arguments and options.
	Staircase StaircaseConfig `json:"staircase" yaml:"staircase"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store configures the trial audit log.
	Store StoreConfig `json:"store" yaml:"store"`
}

// StaircaseConfig holds the engine parameters.
type StaircaseConfig struct {
	TargetProbability float64 `json:"target_probability" yaml:"target_probability"`
	ScaleConstant     float64 `json:"scale_constant" yaml:"scale_constant"`
	StartValue        float64 `json:"start_value" yaml:"start_value"`

	// Options are passed to staircase.WithValues unchanged, so names follow
	// the engine's option keys (xMax, stopMode, ...). Unknown names are
	// logged by the engine and ignored.
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "warn", "info" (default), "debug" or "trace".
	// "debug" logs every trial.
	Level string `json:"level" yaml:"level"`
}

// StoreConfig configures the SQLite trial log.
type StoreConfig struct {
	// Path is the database file. Empty disables the trial log.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Staircase: StaircaseConfig{
			TargetProbability: 0.75,
			ScaleConstant:     10,
			StartValue:        50,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML file on top of the defaults, then applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		c.Store.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the constructor arguments the engine would reject.
func (c *Config) Validate() error {
	s := c.Staircase
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"target_probability", s.TargetProbability},
		{"scale_constant", s.ScaleConstant},
		{"start_value", s.StartValue},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be a finite number", staircase.ErrInvalidParameter, f.name)
		}
	}
	if s.TargetProbability < 0 || s.TargetProbability > 1 {
		return fmt.Errorf("%w: target_probability %v outside [0, 1]", staircase.ErrInvalidParameter, s.TargetProbability)
	}
	return nil
}

// NewEngine builds an engine from the staircase section. extra options
// (logger, observer) are applied after the configured ones.
func (c *Config) NewEngine(extra ...staircase.Option) (*staircase.Engine, error) {
	s := c.Staircase
	opts := append([]staircase.Option{staircase.WithValues(s.Options)}, extra...)
	return staircase.New(s.TargetProbability, s.ScaleConstant, s.StartValue, opts...)
}
