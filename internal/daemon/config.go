// Package daemon wires the idle guard to its platform, journal and status
// API, and owns configuration, logging and the process singleton.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/idlelock/idlelock/internal/app/guard"
)

// Config holds all daemon configuration.
type Config struct {
	Guard     GuardConfig     `toml:"guard"`
	API       APIConfig       `toml:"api"`
	Journal   JournalConfig   `toml:"journal"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// GuardConfig tunes the guard's cadences. Durations use time.ParseDuration syntax.
type GuardConfig struct {
	EvaluateInterval  string  `toml:"evaluate_interval"`
	CalibrationWindow string  `toml:"calibration_window"`
	CountdownInterval string  `toml:"countdown_interval"`
	SamplingStride    int     `toml:"sampling_stride"`
	DefaultMsPerTick  float64 `toml:"default_ms_per_tick"`
}

// APIConfig controls the local status server.
type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

// JournalConfig controls the warning history database.
type JournalConfig struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

// TelemetryConfig controls the Prometheus endpoint.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Guard: GuardConfig{
			EvaluateInterval:  "10s",
			CalibrationWindow: "10s",
			CountdownInterval: "1s",
			SamplingStride:    guard.SamplingStride,
			DefaultMsPerTick:  guard.DefaultMillisPerTick,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    7311,
		},
		Journal: JournalConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      filepath.Join(Home(), "idlelock.log"),
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from $IDLELOCK_HOME/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $IDLELOCK_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// GuardSettings builds the guard configuration for the given thresholds.
// Unparseable durations keep their defaults and are reported in the
// returned slice so the caller can log them.
func (c Config) GuardSettings(idleSeconds, graceSeconds int) (guard.Config, []error) {
	gc := guard.DefaultConfig(idleSeconds, graceSeconds)
	var problems []error

	for _, f := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"guard.evaluate_interval", c.Guard.EvaluateInterval, &gc.EvaluateInterval},
		{"guard.calibration_window", c.Guard.CalibrationWindow, &gc.CalibrationWindow},
		{"guard.countdown_interval", c.Guard.CountdownInterval, &gc.CountdownInterval},
	} {
		d, err := parseDuration(f.value, *f.dst)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", f.name, err))
		}
		*f.dst = d
	}

	if c.Guard.SamplingStride > 0 {
		gc.SamplingStride = c.Guard.SamplingStride
	}
	if c.Guard.DefaultMsPerTick > 0 {
		gc.DefaultMillisPerTick = c.Guard.DefaultMsPerTick
	}
	return gc, problems
}

// Retention returns the journal retention window, zero meaning keep forever.
func (c Config) Retention() time.Duration {
	if c.Journal.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.Journal.RetentionDays) * 24 * time.Hour
}

// parseDuration parses a positive duration string, returning fallback when
// empty or invalid.
func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback, err
	}
	if d <= 0 {
		return fallback, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

// Home returns the idlelock data directory.
func Home() string {
	if env := os.Getenv("IDLELOCK_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".idlelock")
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}
