// Package config loads FitLife settings from defaults, an optional config
// file, FITLIFE_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Guan-Eric/FitLife/internal/sync"
)

// EnvPrefix prefixes every environment variable, e.g. FITLIFE_USER or
// FITLIFE_SYNC_APPEND_MODE.
const EnvPrefix = "FITLIFE"

// ErrNoUser is returned by RequireUser when no user id is configured.
var ErrNoUser = errors.New("no user configured (set --user or FITLIFE_USER)")

// Config is the resolved configuration.
type Config struct {
	Database  string          `mapstructure:"database"`
	Journal   string          `mapstructure:"journal"`
	User      string          `mapstructure:"user"`
	Log       LogConfig       `mapstructure:"log"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Loader    LoaderConfig    `mapstructure:"loader"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// LogConfig controls where diagnostics go. An empty File means stderr.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Verbose    bool   `mapstructure:"verbose"`
}

// SyncConfig configures the sync engine.
type SyncConfig struct {
	AppendMode       string `mapstructure:"append_mode"`
	MaxAppendRetries int    `mapstructure:"max_append_retries"`
	Transactional    bool   `mapstructure:"transactional"`
	Journal          bool   `mapstructure:"journal"`
}

// LoaderConfig configures plan loading.
type LoaderConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	Resume      bool `mapstructure:"resume"`
}

// DashboardConfig configures the dashboard server.
type DashboardConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DaemonConfig configures the inbox daemon.
type DaemonConfig struct {
	Inbox          string        `mapstructure:"inbox"`
	Debounce       time.Duration `mapstructure:"debounce"`
	ResumeInterval time.Duration `mapstructure:"resume_interval"`
}

// New returns a viper instance with defaults, config search paths and
// environment binding set up. Callers bind flags on it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("database", filepath.Join(".fitlife", "fitlife.db"))
	v.SetDefault("journal", filepath.Join(".fitlife", "journal"))
	v.SetDefault("user", "")

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.verbose", false)

	v.SetDefault("sync.append_mode", string(sync.AppendVersioned))
	v.SetDefault("sync.max_append_retries", sync.DefaultMaxAppendRetries)
	v.SetDefault("sync.transactional", false)
	v.SetDefault("sync.journal", true)

	v.SetDefault("loader.concurrency", 1)
	v.SetDefault("loader.resume", true)

	v.SetDefault("dashboard.host", "")
	v.SetDefault("dashboard.port", 8080)

	v.SetDefault("daemon.inbox", filepath.Join(".fitlife", "inbox"))
	v.SetDefault("daemon.debounce", 250*time.Millisecond)
	v.SetDefault("daemon.resume_interval", 30*time.Second)

	v.SetConfigName("fitlife")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".fitlife"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file (file if non-empty, otherwise the first
// fitlife.{yaml,toml,json} on the search path) and resolves v into a
// Config. A missing config file on the search path is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database path is required")
	}
	if _, err := sync.ParseAppendMode(c.Sync.AppendMode); err != nil {
		return fmt.Errorf("sync.append_mode: %w", err)
	}
	if c.Sync.MaxAppendRetries < 1 {
		return fmt.Errorf("sync.max_append_retries must be positive (got %d)", c.Sync.MaxAppendRetries)
	}
	if c.Loader.Concurrency < 1 {
		return fmt.Errorf("loader.concurrency must be positive (got %d)", c.Loader.Concurrency)
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range (got %d)", c.Dashboard.Port)
	}
	if c.Daemon.Debounce <= 0 {
		return fmt.Errorf("daemon.debounce must be positive (got %v)", c.Daemon.Debounce)
	}
	if c.Daemon.ResumeInterval < 0 {
		return fmt.Errorf("daemon.resume_interval must not be negative (got %v)", c.Daemon.ResumeInterval)
	}
	return nil
}

// RequireUser returns ErrNoUser when no user id is configured.
func (c *Config) RequireUser() error {
	if strings.TrimSpace(c.User) == "" {
		return ErrNoUser
	}
	return nil
}

// AppendMode returns the parsed append mode. Validate has already checked it.
func (c *Config) AppendMode() sync.AppendMode {
	mode, _ := sync.ParseAppendMode(c.Sync.AppendMode)
	return mode
}
