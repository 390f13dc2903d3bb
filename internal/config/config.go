// Package config loads runtime settings from the environment. Flags on
// the CLI override whatever is set here.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds engine and logging settings sourced from HOLODECK_*
// environment variables.
type Config struct {
	// TickInterval is the auto-advance sampling interval.
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"100ms"`

	// TimeScale multiplies elapsed wall time during auto-advance.
	TimeScale float64 `env:"TIME_SCALE" envDefault:"1.0"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LogFormat is "text" or "json".
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads HOLODECK_* variables and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "HOLODECK_"}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.TimeScale <= 0 {
		return fmt.Errorf("time scale must be positive, got %g", c.TimeScale)
	}
	if _, err := c.slogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func (c Config) slogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}

// Logger builds a slog.Logger per the configured level and format.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.slogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
