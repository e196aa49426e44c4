// Package config loads the YAML configuration for the msgwireclient CLI.
// It is independent of pkg/client's functional-option constructor, which
// never touches the filesystem; this package exists purely to translate a
// config file on disk into the arguments that constructor expects.
//
// Modeled on the teacher's client/daemon/config.go: same
// DefaultConfig/LoadConfig/SaveConfig/Validate/LoadOrCreateConfig shape,
// trimmed to the fields this client actually has (connection, identity,
// heartbeat, logging) instead of the teacher's TAP/P2P/relay surface.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of the CLI's configuration file.
type Config struct {
	ConnectionURL string         `yaml:"connection_url"`
	Identity      IdentityConfig `yaml:"identity,omitempty"`
	HeartBeat     time.Duration  `yaml:"heart_beat"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// IdentityConfig holds the optional credentials that put the client into
// secured mode. Leaving both fields empty keeps the client in plaintext
// mode; setting only one of them is rejected by Validate.
type IdentityConfig struct {
	Name   string `yaml:"name,omitempty"`
	Secret string `yaml:"secret,omitempty"`
}

// LoggingConfig controls the CLI's log sink.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // empty logs to stdout
}

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() *Config {
	return &Config{
		ConnectionURL: "ws://127.0.0.1:8765/",
		HeartBeat:     30 * time.Second,
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadConfig reads and validates a YAML config file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating its parent directory if
// needed.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	if c.ConnectionURL == "" {
		return fmt.Errorf("connection_url cannot be empty")
	}
	if c.HeartBeat < time.Second || c.HeartBeat > 600*time.Second {
		return fmt.Errorf("heart_beat must be between 1s and 600s, got %v", c.HeartBeat)
	}
	if (c.Identity.Name == "") != (c.Identity.Secret == "") {
		return fmt.Errorf("identity.name and identity.secret must both be set or both be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// DefaultConfigPath returns the conventional per-user config file location.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".msgwire", "config.yaml")
}

// LoadOrCreate loads the config at path, or writes and returns
// DefaultConfig() if no file exists there yet.
func LoadOrCreate(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.SaveConfig(path); err != nil {
			return nil, fmt.Errorf("config: save default: %w", err)
		}
		return cfg, nil
	}
	return LoadConfig(path)
}
