// Package config loads application configuration from YAML files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Clickhouse ClickhouseConfig `mapstructure:"clickhouse"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Log        LogConfig        `mapstructure:"log"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// PostgresConfig configures the snapshot store.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ClickhouseConfig configures the equity history store.
type ClickhouseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SyncConfig configures the capture sync loop.
type SyncConfig struct {
	// Interval between sync cycles.
	Interval time.Duration `mapstructure:"interval"`
	// Brokerage label stamped on captures.
	Brokerage string `mapstructure:"brokerage"`
}

// LogConfig configures zerolog output.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Pretty switches to human-readable console output.
	Pretty bool `mapstructure:"pretty"`
}

// Load reads configuration from the given YAML file and the environment.
// Environment variables use the REBSTOOL prefix with underscores, e.g.
// REBSTOOL_POSTGRES_DSN. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("clickhouse.dsn", "")
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.brokerage", "default")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvPrefix("REBSTOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr must not be empty")
	}
	if c.Sync.Interval <= 0 {
		return errors.New("sync.interval must be positive")
	}
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not a valid level", c.Log.Level)
	}
	// DSNs stay optional: empty means the in-memory fixture mode.
	if (c.Postgres.DSN == "") != (c.Clickhouse.DSN == "") {
		return errors.New("postgres.dsn and clickhouse.dsn must be set together")
	}
	return nil
}

// UseMemoryStores reports whether no external stores are configured.
func (c *Config) UseMemoryStores() bool {
	return c.Postgres.DSN == ""
}
