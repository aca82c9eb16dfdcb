// Package config provides configuration management for Pulse.
package config

import (
	"time"
)

// Config is the root configuration structure for Pulse.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string `mapstructure:"path"`

	// Enable WAL mode (recommended)
	WALMode bool `mapstructure:"wal_mode"`

	// Cache size in KB (negative for KB, positive for pages)
	CacheSize int `mapstructure:"cache_size"`

	// Busy timeout in milliseconds
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	// Enable foreign keys
	ForeignKeys bool `mapstructure:"foreign_keys"`

	// Maximum open connections
	MaxOpenConns int `mapstructure:"max_open_conns"`

	// Maximum idle connections
	MaxIdleConns int `mapstructure:"max_idle_conns"`

	// Connection max lifetime
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig holds settings for the schedule registry and dispatcher.
type SchedulerConfig struct {
	// Enable the background scheduler
	Enabled bool `mapstructure:"enabled"`

	// How often the registry checks for due schedules
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// How long Shutdown waits for in-flight fires before abandoning them
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Per-fire execution deadline passed to the executor (0 = none)
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`

	// How long to keep workflow run records (0 = forever)
	RunRetention time.Duration `mapstructure:"run_retention"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Enable the metrics listener
	Enabled bool `mapstructure:"enabled"`

	// Address to expose /metrics on
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (trace, debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Output format (console, json)
	Format string `mapstructure:"format"`

	// Include caller information
	Caller bool `mapstructure:"caller"`

	// Include timestamps
	Timestamp bool `mapstructure:"timestamp"`
}
