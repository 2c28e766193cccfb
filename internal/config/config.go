// Package config loads platform configuration from a YAML file with
// environment variable overrides. A missing file is not an error: defaults
// apply, then AGENTCORE_* variables win over everything.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the root platform configuration
type Config struct {
	Database Database `yaml:"database"`
	Mailer   Mailer   `yaml:"mailer"`
	Log      Log      `yaml:"log"`
}

// Database configures the SQLite store.
//
// Fields carry no envconfig name tags on purpose: a named tag doubles as a
// bare alt key that envconfig consults without the prefix, so tagging Path
// "PATH" would read the system $PATH. The field-derived keys already come
// out as AGENTCORE_DATABASE_PATH and friends.
type Database struct {
	// Path is the database file location; ":memory:" for ephemeral stores
	Path string `yaml:"path"`
}

// Mailer configures notification delivery
type Mailer struct {
	// Domain is interpolated into verification and reset links
	Domain string `yaml:"domain"`

	// MaxAttempts bounds the retry loop per delivery
	MaxAttempts int `yaml:"max_attempts" split_words:"true"`

	// BaseDelay is the first retry's backoff before jitter
	BaseDelay time.Duration `yaml:"base_delay" split_words:"true"`

	// Concurrency caps in-flight sends
	Concurrency int64 `yaml:"concurrency"`
}

// Log configures structured logging
type Log struct {
	// Level is a logrus level name: debug, info, warn, error
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file or environment
// overrides are present
func Default() *Config {
	return &Config{
		Database: Database{Path: ".agentcore/agentcore.db"},
		Mailer: Mailer{
			Domain:      "localhost",
			MaxAttempts: 3,
			BaseDelay:   10 * time.Millisecond,
			Concurrency: 8,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path (if it exists), then applies AGENTCORE_* environment
// overrides per section
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := envconfig.Process("AGENTCORE_DATABASE", &cfg.Database); err != nil {
		return nil, fmt.Errorf("processing database env: %w", err)
	}
	if err := envconfig.Process("AGENTCORE_MAILER", &cfg.Mailer); err != nil {
		return nil, fmt.Errorf("processing mailer env: %w", err)
	}
	if err := envconfig.Process("AGENTCORE_LOG", &cfg.Log); err != nil {
		return nil, fmt.Errorf("processing log env: %w", err)
	}

	return cfg, nil
}
