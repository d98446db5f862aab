package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Guan-Eric/FitLife/internal/sync"
)

// isolate keeps a developer's own ~/.fitlife config out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Database != filepath.Join(".fitlife", "fitlife.db") {
		t.Errorf("Database = %q", cfg.Database)
	}
	if cfg.AppendMode() != sync.AppendVersioned {
		t.Errorf("AppendMode() = %q, want versioned", cfg.AppendMode())
	}
	if cfg.Sync.MaxAppendRetries != sync.DefaultMaxAppendRetries {
		t.Errorf("MaxAppendRetries = %d", cfg.Sync.MaxAppendRetries)
	}
	if cfg.Loader.Concurrency != 1 || !cfg.Loader.Resume {
		t.Errorf("Loader = %+v", cfg.Loader)
	}
	if cfg.Daemon.Debounce != 250*time.Millisecond || cfg.Daemon.ResumeInterval != 30*time.Second {
		t.Errorf("Daemon = %+v", cfg.Daemon)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want no config file", cfg.File)
	}
	if !errors.Is(cfg.RequireUser(), ErrNoUser) {
		t.Error("RequireUser() should fail without a user")
	}
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("FITLIFE_USER", "env-user")
	t.Setenv("FITLIFE_SYNC_APPEND_MODE", "legacy")
	t.Setenv("FITLIFE_LOADER_CONCURRENCY", "8")
	t.Setenv("FITLIFE_DAEMON_DEBOUNCE", "1s")

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.User != "env-user" {
		t.Errorf("User = %q, want env-user", cfg.User)
	}
	if cfg.AppendMode() != sync.AppendLegacy {
		t.Errorf("AppendMode() = %q, want legacy", cfg.AppendMode())
	}
	if cfg.Loader.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", cfg.Loader.Concurrency)
	}
	if cfg.Daemon.Debounce != time.Second {
		t.Errorf("Debounce = %v, want 1s", cfg.Daemon.Debounce)
	}
	if err := cfg.RequireUser(); err != nil {
		t.Errorf("RequireUser() = %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "fitlife.yaml")
	content := `database: /tmp/plans.db
user: file-user
sync:
  append_mode: legacy
  transactional: true
dashboard:
  port: 9090
log:
  file: /tmp/fitlife.log
  verbose: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("FITLIFE_USER", "env-wins")

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.File != path {
		t.Errorf("File = %q, want %q", cfg.File, path)
	}
	if cfg.Database != "/tmp/plans.db" || !cfg.Sync.Transactional || cfg.Dashboard.Port != 9090 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Log.File != "/tmp/fitlife.log" || !cfg.Log.Verbose || cfg.Log.MaxBackups != 3 {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.User != "env-wins" {
		t.Errorf("User = %q, environment should override the file", cfg.User)
	}
}

func TestLoad_Overrides(t *testing.T) {
	isolate(t)
	v := New()
	v.Set("user", "flag-user")
	v.Set("loader.concurrency", 3)

	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.User != "flag-user" || cfg.Loader.Concurrency != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)

	if _, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() with a missing explicit file should fail")
	}

	t.Setenv("FITLIFE_SYNC_APPEND_MODE", "optimistic")
	_, err := Load(New(), "")
	if err == nil || !strings.Contains(err.Error(), "sync.append_mode") {
		t.Errorf("Load() error = %v, want append mode rejection", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: "db",
			Sync:     SyncConfig{AppendMode: "versioned", MaxAppendRetries: 5},
			Loader:   LoaderConfig{Concurrency: 1},
			Daemon:   DaemonConfig{Debounce: time.Millisecond},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty database", func(c *Config) { c.Database = "" }, "database"},
		{"bad append mode", func(c *Config) { c.Sync.AppendMode = "x" }, "append_mode"},
		{"zero retries", func(c *Config) { c.Sync.MaxAppendRetries = 0 }, "max_append_retries"},
		{"zero concurrency", func(c *Config) { c.Loader.Concurrency = 0 }, "concurrency"},
		{"port out of range", func(c *Config) { c.Dashboard.Port = 70000 }, "port"},
		{"zero debounce", func(c *Config) { c.Daemon.Debounce = 0 }, "debounce"},
		{"negative resume", func(c *Config) { c.Daemon.ResumeInterval = -time.Second }, "resume_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}
