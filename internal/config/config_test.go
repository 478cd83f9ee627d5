package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	if cfg.Tracker != want.Tracker {
		t.Errorf("Tracker = %+v, want %+v", cfg.Tracker, want.Tracker)
	}
	if cfg.PollInterval().Milliseconds() != 500 {
		t.Errorf("PollInterval() = %v, want 500ms", cfg.PollInterval())
	}
	if cfg.FlushInterval() != 30*time.Second {
		t.Errorf("FlushInterval() = %v, want 30s", cfg.FlushInterval())
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "config.yaml", `
database:
  path: /tmp/spools.db
tracker:
  default_density: 1.27
  low_weight_grams: 100
monitor:
  command_log: /var/log/printer/commands.log
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/spools.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Tracker.DefaultDensity != 1.27 {
		t.Errorf("DefaultDensity = %v, want 1.27", cfg.Tracker.DefaultDensity)
	}
	if cfg.Tracker.LowWeightGrams != 100 {
		t.Errorf("LowWeightGrams = %v, want 100", cfg.Tracker.LowWeightGrams)
	}
	// Untouched keys keep their defaults
	if cfg.Tracker.DefaultDiameterMM != 1.75 {
		t.Errorf("DefaultDiameterMM = %v, want 1.75", cfg.Tracker.DefaultDiameterMM)
	}
	if cfg.Monitor.CommandLog != "/var/log/printer/commands.log" {
		t.Errorf("CommandLog = %q", cfg.Monitor.CommandLog)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFile(t, dir, "config.yaml", "tracker: [unclosed")

	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil, want parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SPOOLMANAGER_DB_PATH", "/data/env.db")
	t.Setenv("SPOOLMANAGER_AUTO_COMMIT_MM", "250.5")
	t.Setenv("SPOOLMANAGER_COMMIT_RETRIES", "5")

	cfg := Default()
	if err := cfg.ApplyEnv(""); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Database.Path != "/data/env.db" {
		t.Errorf("Database.Path = %q, want /data/env.db", cfg.Database.Path)
	}
	if cfg.Tracker.AutoCommitMM != 250.5 {
		t.Errorf("AutoCommitMM = %v, want 250.5", cfg.Tracker.AutoCommitMM)
	}
	if cfg.Tracker.CommitRetries != 5 {
		t.Errorf("CommitRetries = %d, want 5", cfg.Tracker.CommitRetries)
	}
}

func TestApplyEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "SPOOLMANAGER_LOG_LEVEL=debug\nSPOOLMANAGER_LOW_WEIGHT=20\n")
	// Variables set in the environment take precedence over the file
	t.Setenv("SPOOLMANAGER_LOW_WEIGHT", "75")
	// Restored after the test; godotenv sets it via os.Setenv
	t.Setenv("SPOOLMANAGER_LOG_LEVEL", "")
	if err := os.Unsetenv("SPOOLMANAGER_LOG_LEVEL"); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Tracker.LowWeightGrams != 75 {
		t.Errorf("LowWeightGrams = %v, want 75", cfg.Tracker.LowWeightGrams)
	}
}

func TestApplyEnvBadNumber(t *testing.T) {
	t.Setenv("SPOOLMANAGER_DEFAULT_DENSITY", "heavy")

	cfg := Default()
	err := cfg.ApplyEnv("")
	if err == nil || !strings.Contains(err.Error(), "SPOOLMANAGER_DEFAULT_DENSITY") {
		t.Errorf("ApplyEnv() error = %v, want density parse error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero density", func(c *Config) { c.Tracker.DefaultDensity = 0 }, "DefaultDensity"},
		{"negative auto commit", func(c *Config) { c.Tracker.AutoCommitMM = -1 }, "AutoCommitMM"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
		{"bad metrics addr", func(c *Config) { c.Monitor.MetricsAddr = "nope" }, "MetricsAddr"},
		{"metrics addr", func(c *Config) { c.Monitor.MetricsAddr = "localhost:9110" }, ""},
		{"no database", func(c *Config) { c.Database.Path = "" }, "Path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
