// Package config loads triage settings from .triage/config.json, a .env file
// and the environment, in increasing order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Current config file version.
const Version = "1"

// Defaults.
const (
	DefaultDriver         = "sqlite3"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultWorkers        = 4
	DefaultPendingTimeout = 15 * time.Minute
	DefaultTrackerTimeout = 30 * time.Second
)

// Environment variables that override file settings.
const (
	EnvDBDriver           = "TRIAGE_DB_DRIVER"
	EnvDBDSN              = "TRIAGE_DB_DSN"
	EnvLogLevel           = "TRIAGE_LOG_LEVEL"
	EnvLogFormat          = "TRIAGE_LOG_FORMAT"
	EnvWorkers            = "TRIAGE_WORKERS"
	EnvTrackerURL         = "TRIAGE_TRACKER_URL"
	EnvTrackerToken       = "TRIAGE_TRACKER_TOKEN"
	EnvPushPendingTimeout = "TRIAGE_PUSH_PENDING_TIMEOUT"
)

// Config represents the triage configuration
type Config struct {
	Version  string         `json:"version"`
	Database DatabaseConfig `json:"database"`
	Log      LogConfig      `json:"log"`
	Workers  int            `json:"workers,omitempty"`
	Tracker  TrackerConfig  `json:"tracker,omitempty"`
	Push     PushConfig     `json:"push,omitempty"`
}

// DatabaseConfig selects the classification store.
type DatabaseConfig struct {
	Driver string `json:"driver"`        // "sqlite3" or "mysql"
	DSN    string `json:"dsn,omitempty"` // file path for sqlite3; empty means ~/.triage/triage.db
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "text" or "json"
}

// TrackerConfig points at the issue tracker bridge.
type TrackerConfig struct {
	URL     string `json:"url,omitempty"`
	Token   string `json:"token,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

// PushConfig tunes push deduplication.
type PushConfig struct {
	PendingTimeout string `json:"pending_timeout,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Version:  Version,
		Database: DatabaseConfig{Driver: DefaultDriver},
		Log:      LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Workers:  DefaultWorkers,
	}
}

// LoadConfig reads .triage/config.json from the specified directory.
// Returns error if no config found - caller should handle accordingly.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ".triage", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes config.json to directory
func SaveConfig(dir string, cfg *Config) error {
	triageDir := filepath.Join(dir, ".triage")
	if err := os.MkdirAll(triageDir, 0755); err != nil {
		return fmt.Errorf("failed to create .triage dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(triageDir, "config.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Load resolves the effective configuration for dir: defaults, then the
// config file if present, then dir/.env, then the process environment.
func Load(dir string) (*Config, error) {
	cfg, err := LoadConfig(dir)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return nil, err
	}

	dotenv, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	stringVars := map[string]*string{
		EnvDBDriver:           &c.Database.Driver,
		EnvDBDSN:              &c.Database.DSN,
		EnvLogLevel:           &c.Log.Level,
		EnvLogFormat:          &c.Log.Format,
		EnvTrackerURL:         &c.Tracker.URL,
		EnvTrackerToken:       &c.Tracker.Token,
		EnvPushPendingTimeout: &c.Push.PendingTimeout,
	}
	for key, field := range stringVars {
		if v, ok := lookup(key); ok && v != "" {
			*field = v
		}
	}

	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvWorkers, v, err)
		}
		c.Workers = n
	}

	return nil
}

// Validate checks the configuration for values the application cannot use.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "mysql" && c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required for mysql")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1 (got %d)", c.Workers)
	}
	if _, err := c.PendingTimeout(); err != nil {
		return err
	}
	if _, err := c.TrackerTimeout(); err != nil {
		return err
	}
	return nil
}

// PendingTimeout returns how long a pending push suppresses new attempts.
func (c *Config) PendingTimeout() (time.Duration, error) {
	return parseDuration("push pending timeout", c.Push.PendingTimeout, DefaultPendingTimeout)
}

// TrackerTimeout returns the HTTP timeout for issue tracker calls.
func (c *Config) TrackerTimeout() (time.Duration, error) {
	return parseDuration("tracker timeout", c.Tracker.Timeout, DefaultTrackerTimeout)
}

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive (got %s)", name, value)
	}
	return d, nil
}
