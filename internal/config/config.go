// Package config loads engine configuration from an optional YAML file,
// applying defaults and clamping out-of-range values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"thinktrace/internal/session"
)

const (
	DefaultMaxThoughts     = 100
	DefaultMaxBranches     = 10
	DefaultMaxSessions     = 100
	DefaultSessionTimeout  = 3600
	DefaultCleanupInterval = 300
)

// Config holds all engine settings.
type Config struct {
	// MaxThoughts caps thoughts per session, counted across all sequences.
	MaxThoughts int `yaml:"max_thoughts_per_session"`

	// MaxBranches caps branches per session.
	MaxBranches int `yaml:"max_branches_per_session"`

	// MaxSessions caps concurrently live sessions.
	MaxSessions int `yaml:"max_sessions"`

	// SessionTimeoutSeconds is the idle time before a session is evicted.
	SessionTimeoutSeconds int `yaml:"session_timeout_seconds"`

	// CleanupIntervalSeconds is how often the eviction loop runs.
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds"`

	// DBPath locates the session archive database.
	DBPath string `yaml:"db_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		MaxThoughts:            DefaultMaxThoughts,
		MaxBranches:            DefaultMaxBranches,
		MaxSessions:            DefaultMaxSessions,
		SessionTimeoutSeconds:  DefaultSessionTimeout,
		CleanupIntervalSeconds: DefaultCleanupInterval,
		DBPath:                 filepath.Join(home, ".thinktrace", "sessions.db"),
	}
}

// Load reads the config file at path, falling back to defaults for missing
// fields. An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.clamp()
	return cfg, nil
}

// clamp pulls out-of-range values back to their defaults.
func (c *Config) clamp() {
	if c.MaxThoughts <= 0 {
		c.MaxThoughts = DefaultMaxThoughts
	}
	if c.MaxBranches <= 0 {
		c.MaxBranches = DefaultMaxBranches
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	if c.SessionTimeoutSeconds <= 0 {
		c.SessionTimeoutSeconds = DefaultSessionTimeout
	}
	if c.CleanupIntervalSeconds <= 0 {
		c.CleanupIntervalSeconds = DefaultCleanupInterval
	}
	if c.DBPath == "" {
		c.DBPath = Default().DBPath
	}
}

// Limits converts the config to per-session limits.
func (c Config) Limits() session.Limits {
	return session.Limits{
		MaxThoughts: c.MaxThoughts,
		MaxBranches: c.MaxBranches,
	}
}

// RegistryConfig converts the config to session registry settings.
func (c Config) RegistryConfig() session.RegistryConfig {
	return session.RegistryConfig{
		MaxSessions:     c.MaxSessions,
		SessionTimeout:  time.Duration(c.SessionTimeoutSeconds) * time.Second,
		CleanupInterval: time.Duration(c.CleanupIntervalSeconds) * time.Second,
		Limits:          c.Limits(),
	}
}
