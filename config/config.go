// Package config loads dbtrack settings from defaults, an optional config
// file and DBTRACK_ environment variables, in increasing precedence.
package config

import (
	"io"
	"os"
	"time"

	"github.com/guileen/dbtrack/logger"
	"github.com/guileen/dbtrack/pebbletrack"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Pebble   PebbleConfig   `mapstructure:"pebble"`
	Leak     LeakConfig     `mapstructure:"leak"`
}

// ServerConfig configures the debug HTTP server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level     string `mapstructure:"level" validate:"required,oneof=trace debug info warn warning error"`
	Format    string `mapstructure:"format" validate:"required,oneof=json text"`
	AddSource bool   `mapstructure:"add_source"`
}

// PostgresConfig configures the tracked pgx driver.
type PostgresConfig struct {
	DriverName string `mapstructure:"driver_name" validate:"required"`
	DSN        string `mapstructure:"dsn" validate:"omitempty,pgdsn"`
}

// PebbleConfig configures the optional tracked pebble database.
type PebbleConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	pebbletrack.Config `mapstructure:",squash"`
}

// LeakConfig configures periodic leak checks.
type LeakConfig struct {
	Threshold time.Duration `mapstructure:"threshold" validate:"gte=0"`
	Interval  time.Duration `mapstructure:"interval" validate:"gt=0"`
}

// LoggerConfig converts c for logger.NewLogger, writing to w.
func (c LogConfig) LoggerConfig(w io.Writer) logger.Config {
	cfg := logger.DefaultConfig()
	if level, ok := logger.ParseLevel(c.Level); ok {
		cfg.Level = level
	}
	cfg.Format = c.Format
	cfg.AddSource = c.AddSource
	if w == nil {
		w = os.Stdout
	}
	cfg.Writer = w
	return cfg
}
