// Package daemon wires the terminal together: config, storage,
// connectivity, sync scheduler, and the HTTP API.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk daemon configuration (~/.tillsync/config.toml).
type Config struct {
	API    APIConfig    `toml:"api"`
	Store  StoreConfig  `toml:"store"`
	Server ServerConfig `toml:"server"`
	Sync   SyncConfig   `toml:"sync"`
}

// APIConfig configures the local HTTP API.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// StoreConfig configures the durable queue database.
type StoreConfig struct {
	Path string `toml:"path"` // empty = <home>/queue.db
}

// ServerConfig points at the remote server of record.
type ServerConfig struct {
	BaseURL       string `toml:"base_url"`
	SubmitTimeout string `toml:"submit_timeout"` // duration, e.g. "10s"
	BatchTimeout  string `toml:"batch_timeout"`  // duration, e.g. "30s"
}

// SyncConfig configures the background sync scheduler.
type SyncConfig struct {
	Interval      string `toml:"interval"`       // fixed cadence, e.g. "1m"
	ProbeInterval string `toml:"probe_interval"` // connectivity probe cadence
	ProbeTimeout  string `toml:"probe_timeout"`
}

// DefaultConfig returns the defaults for a fresh terminal.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    7345,
			Metrics: true,
		},
		Store: StoreConfig{},
		Server: ServerConfig{
			BaseURL:       "http://localhost:8080",
			SubmitTimeout: "10s",
			BatchTimeout:  "30s",
		},
		Sync: SyncConfig{
			Interval:      "1m",
			ProbeInterval: "15s",
			ProbeTimeout:  "3s",
		},
	}
}

// Home returns the tillsync home directory, creating it if needed.
// Overridable via TILLSYNC_HOME for tests and containers.
func Home() (string, error) {
	if dir := os.Getenv("TILLSYNC_HOME"); dir != "" {
		return dir, os.MkdirAll(dir, 0700)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	dir := filepath.Join(home, ".tillsync")
	return dir, os.MkdirAll(dir, 0700)
}

// ConfigPath returns the config file location.
func ConfigPath() (string, error) {
	dir, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadConfig reads the config file, falling back to defaults for a
// missing file. Unknown keys are ignored.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the config file.
func SaveConfig(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// StorePath resolves the queue database path.
func (c Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.db"), nil
}

// parseDuration parses a duration string, returning fallback on empty
// or malformed input.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SubmitTimeout returns the immediate-submission timeout.
func (c Config) SubmitTimeout() time.Duration {
	return parseDuration(c.Server.SubmitTimeout, 10*time.Second)
}

// BatchTimeout returns the batch sync call timeout.
func (c Config) BatchTimeout() time.Duration {
	return parseDuration(c.Server.BatchTimeout, 30*time.Second)
}

// SyncInterval returns the scheduler cadence.
func (c Config) SyncInterval() time.Duration {
	return parseDuration(c.Sync.Interval, time.Minute)
}

// ProbeInterval returns the connectivity probe cadence.
func (c Config) ProbeInterval() time.Duration {
	return parseDuration(c.Sync.ProbeInterval, 15*time.Second)
}

// ProbeTimeout returns the connectivity probe timeout.
func (c Config) ProbeTimeout() time.Duration {
	return parseDuration(c.Sync.ProbeTimeout, 3*time.Second)
}
