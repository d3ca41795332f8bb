// Package config provides configuration management for quickpen.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is the HTTP port the worker listens on.
	DefaultPort = 8791

	// DefaultSessionTTLHours is how long auth tokens stay valid.
	DefaultSessionTTLHours = 24 * 30

	dataDirName    = ".quickpen"
	dbFileName     = "quickpen.db"
	configFileName = "config.yaml"
)

// Config holds all runtime configuration.
type Config struct {
	Port            int    `yaml:"port"`
	DBDriver        string `yaml:"db_driver"` // "sqlite" or "postgres"
	PostgresDSN     string `yaml:"postgres_dsn"`
	MaxConns        int    `yaml:"max_conns"`
	SessionTTLHours int    `yaml:"session_ttl_hours"`
	Timezone        string `yaml:"timezone"` // fallback zone for streaks when a request omits tz
	Debug           bool   `yaml:"debug"`
}

var (
	mu      sync.RWMutex
	current *Config

	// dataDirOverride replaces the default ~/.quickpen location when set
	// via the --data-dir flag.
	dataDirOverride string
)

// SetDataDir overrides the data directory for this process.
func SetDataDir(dir string) {
	mu.Lock()
	defer mu.Unlock()
	dataDirOverride = dir
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port:            DefaultPort,
		DBDriver:        "sqlite",
		MaxConns:        4,
		SessionTTLHours: DefaultSessionTTLHours,
		Timezone:        "UTC",
	}
}

// DataDir returns the quickpen data directory, ~/.quickpen unless
// overridden with SetDataDir.
func DataDir() string {
	mu.RLock()
	override := dataDirOverride
	mu.RUnlock()
	if override != "" {
		return override
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// DBPath returns the SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), dbFileName)
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), configFileName)
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// Load reads the config file, filling gaps with defaults. A missing file is
// not an error; defaults are returned.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ConfigPath())
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "sqlite"
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 4
	}
	if cfg.SessionTTLHours <= 0 {
		cfg.SessionTTLHours = DefaultSessionTTLHours
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
}

// Get returns the process-wide config, loading it on first use.
func Get() *Config {
	mu.RLock()
	if current != nil {
		defer mu.RUnlock()
		return current
	}
	mu.RUnlock()

	cfg, _ := Load()
	Set(cfg)
	return cfg
}

// Set replaces the process-wide config (used by the file watcher on reload).
func Set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	current = cfg
}

// Reload re-reads the config file and swaps the process-wide config.
func Reload() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	Set(cfg)
	return cfg, nil
}
