package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SPOOLMANAGER_"

type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled off"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
	File   string `yaml:"file"`
}

type TrackerConfig struct {
	// Used for spools without their own diameter/density.
	DefaultDiameterMM float64 `yaml:"default_diameter_mm" validate:"gt=0"`
	DefaultDensity    float64 `yaml:"default_density" validate:"gt=0"`
	// A spool at or below this remaining weight is reported low.
	LowWeightGrams float64 `yaml:"low_weight_grams" validate:"gte=0"`
	// Commit a tool's consumption once this much is pending; 0 commits only
	// on demand.
	AutoCommitMM  float64 `yaml:"auto_commit_mm" validate:"gte=0"`
	CommitRetries int     `yaml:"commit_retries" validate:"gte=0,lte=20"`
}

type MonitorConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms" validate:"gt=0"`
	// Pending consumption is committed at least this often; 0 disables.
	FlushIntervalSec int    `yaml:"flush_interval_sec" validate:"gte=0"`
	CommandLog       string `yaml:"command_log"`
	MetricsAddr      string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: defaultDatabasePath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Tracker: TrackerConfig{
			DefaultDiameterMM: 1.75,
			DefaultDensity:    1.24,
			LowWeightGrams:    50,
			AutoCommitMM:      1000,
			CommitRetries:     3,
		},
		Monitor: MonitorConfig{
			PollIntervalMs:   500,
			FlushIntervalSec: 30,
		},
	}
}

func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "spoolmanager", "config.yaml")
}

func defaultDatabasePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "spoolmanager", "spoolmanager.db")
}

// Load reads the YAML file at path over the defaults (a missing file is not
// an error), then applies a .env file next to the working directory and
// SPOOLMANAGER_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv loads envFile into the process environment (variables already set
// win; a missing file is ignored) and applies the SPOOLMANAGER_* overrides.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var errs []error
	setString(&c.Database.Path, "DB_PATH")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Logging.File, "LOG_FILE")
	errs = append(errs,
		setFloat(&c.Tracker.DefaultDiameterMM, "DEFAULT_DIAMETER"),
		setFloat(&c.Tracker.DefaultDensity, "DEFAULT_DENSITY"),
		setFloat(&c.Tracker.LowWeightGrams, "LOW_WEIGHT"),
		setFloat(&c.Tracker.AutoCommitMM, "AUTO_COMMIT_MM"),
		setInt(&c.Tracker.CommitRetries, "COMMIT_RETRIES"),
		setInt(&c.Monitor.PollIntervalMs, "POLL_INTERVAL_MS"),
		setInt(&c.Monitor.FlushIntervalSec, "FLUSH_INTERVAL_SEC"),
	)
	setString(&c.Monitor.CommandLog, "COMMAND_LOG")
	setString(&c.Monitor.MetricsAddr, "METRICS_ADDR")

	return errors.Join(errs...)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollIntervalMs) * time.Millisecond
}

func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Monitor.FlushIntervalSec) * time.Second
}

func setString(dst *string, name string) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = v
	}
}

func setFloat(dst *float64, name string) error {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = f
	return nil
}

func setInt(dst *int, name string) error {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = n
	return nil
}
