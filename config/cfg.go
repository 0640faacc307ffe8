// Package config holds the declarative configuration for a relay: the
// buffering limits, the rollover policy and the ordered sink chain.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SinkSpec declares one sink in the chain. The position in the list is
// the priority: the first entry is the primary destination, later
// entries are fallbacks.
type SinkSpec struct {
	// Type selects the sink factory ("console", "file", "nats",
	// "postgres", or a custom registered type).
	Type string `yaml:"type" mapstructure:"type"`

	// Name identifies the sink in notifications and metrics. Defaults
	// to the type when only one sink of that type is configured.
	Name string `yaml:"name" mapstructure:"name"`

	// Params carries the factory-specific configuration.
	Params map[string]any `yaml:"params" mapstructure:"params"`
}

// Config is the full relay configuration.
type Config struct {
	// MaxBufferCount caps buffered records before new ones are dropped.
	MaxBufferCount int `yaml:"maxBufferCount" mapstructure:"maxBufferCount"`

	// ResetRolloverCheckSec is the cooldown in seconds of sustained
	// non-failure before the chain cursor resets to the primary sink.
	// 0 disables the reset.
	ResetRolloverCheckSec int `yaml:"resetRolloverCheckSec" mapstructure:"resetRolloverCheckSec"`

	// RolloverNotificationTarget names the facade channel receiving
	// rollover notifications. Empty disables notification.
	RolloverNotificationTarget string `yaml:"rolloverNotificationTarget" mapstructure:"rolloverNotificationTarget"`

	// WakeIntervalMillSec is the drain worker's safety-net wake
	// interval in milliseconds.
	WakeIntervalMillSec int `yaml:"wakeIntervalMillSec" mapstructure:"wakeIntervalMillSec"`

	// CloseGraceMillSec bounds how long Close waits for the worker.
	CloseGraceMillSec int `yaml:"closeGraceMillSec" mapstructure:"closeGraceMillSec"`

	// MetricsListenAddr enables the Prometheus endpoint when non-empty,
	// e.g. "127.0.0.1:9410".
	MetricsListenAddr string `yaml:"metricsListenAddr" mapstructure:"metricsListenAddr"`

	// Sinks is the chain, in priority order.
	Sinks []SinkSpec `yaml:"sinks" mapstructure:"sinks"`
}

// Default returns the baseline configuration: a large buffer, no reset,
// no notification target and an empty chain.
func Default() *Config {
	return &Config{
		MaxBufferCount:      10000,
		WakeIntervalMillSec: 2000,
		CloseGraceMillSec:   250,
	}
}

// Validate normalizes missing values to their defaults and rejects
// inconsistent configuration.
func (cfg *Config) Validate() error {
	if cfg.MaxBufferCount <= 0 {
		cfg.MaxBufferCount = 10000
	}
	if cfg.WakeIntervalMillSec <= 0 {
		cfg.WakeIntervalMillSec = 2000
	}
	if cfg.CloseGraceMillSec <= 0 {
		cfg.CloseGraceMillSec = 250
	}

	if cfg.ResetRolloverCheckSec < 0 {
		return fmt.Errorf("resetRolloverCheckSec must be non-negative, got %d", cfg.ResetRolloverCheckSec)
	}

	seen := make(map[string]struct{}, len(cfg.Sinks))
	for i := range cfg.Sinks {
		spec := &cfg.Sinks[i]
		if spec.Type == "" {
			return fmt.Errorf("sink %d: type is empty", i)
		}
		if spec.Name == "" {
			spec.Name = spec.Type
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("duplicate sink name '%s'", spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}

	return nil
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
