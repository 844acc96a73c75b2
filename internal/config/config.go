// Package config loads engine configuration from YAML with sensible
// defaults, so a host can run with no config file at all.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	Bus      BusConfig     `yaml:"bus"`
	Store    StoreConfig   `yaml:"store"`
	LLM      LLMConfig     `yaml:"llm"`
	Cadence  CadenceConfig `yaml:"cadence"`
	Watchers WatcherConfig `yaml:"watchers"`
	RulesDir string        `yaml:"rules_dir"`
	Logging  LoggingConfig `yaml:"logging"`
}

// BusConfig configures the in-memory event bus.
type BusConfig struct {
	// HistoryCapacity bounds the in-memory event log.
	HistoryCapacity int `yaml:"history_capacity"`
}

// StoreConfig configures the durable event log.
type StoreConfig struct {
	// Path to the SQLite database file. Empty disables persistence.
	Path string `yaml:"path"`
}

// LLMConfig configures the text generation backend.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// CadenceConfig sets per-pipeline dispatch windows in minutes.
// Zero disables throttling for a pipeline.
type CadenceConfig struct {
	FlywheelMinutes int `yaml:"flywheel_minutes"`
	ReactorMinutes  int `yaml:"reactor_minutes"`
}

// WatcherConfig configures derived-event thresholds.
type WatcherConfig struct {
	EngagementThreshold float64 `yaml:"engagement_threshold"`
	DriftThreshold      float64 `yaml:"drift_threshold"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Bus:   BusConfig{HistoryCapacity: 500},
		LLM:   LLMConfig{Model: "gemini-2.5-flash"},
		Cadence: CadenceConfig{
			FlywheelMinutes: 60,
			ReactorMinutes:  30,
		},
		Watchers: WatcherConfig{
			EngagementThreshold: 0.7,
			DriftThreshold:      2.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file, layered over defaults.
// A missing file returns defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides lets the environment win over the file for secrets.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("REFLEX_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("REFLEX_MODEL"); model != "" {
		c.LLM.Model = model
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Bus.HistoryCapacity < 1 {
		return fmt.Errorf("bus.history_capacity must be at least 1, got %d", c.Bus.HistoryCapacity)
	}
	if c.Cadence.FlywheelMinutes < 0 {
		return fmt.Errorf("cadence.flywheel_minutes must be non-negative, got %d", c.Cadence.FlywheelMinutes)
	}
	if c.Cadence.ReactorMinutes < 0 {
		return fmt.Errorf("cadence.reactor_minutes must be non-negative, got %d", c.Cadence.ReactorMinutes)
	}
	if c.Watchers.DriftThreshold < 0 {
		return fmt.Errorf("watchers.drift_threshold must be non-negative, got %g", c.Watchers.DriftThreshold)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
