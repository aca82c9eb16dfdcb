package config

import "time"

// Default configuration values.
const (
	// Database defaults.
	DefaultDBPath       = "pulse.db"
	DefaultCacheSize    = -64000 // 64MB
	DefaultBusyTimeout  = 5 * time.Second
	DefaultMaxOpenConns = 1 // SQLite works best with single writer
	DefaultMaxIdleConns = 1

	// Scheduler defaults.
	DefaultPollInterval    = 1 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultDispatchTimeout = 5 * time.Minute
	DefaultRunRetention    = 7 * 24 * time.Hour

	// Metrics defaults.
	DefaultMetricsAddr = "localhost:9109"

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            DefaultDBPath,
			WALMode:         true,
			CacheSize:       DefaultCacheSize,
			BusyTimeout:     DefaultBusyTimeout,
			ForeignKeys:     true,
			MaxOpenConns:    DefaultMaxOpenConns,
			MaxIdleConns:    DefaultMaxIdleConns,
			ConnMaxLifetime: 0, // No limit
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			PollInterval:    DefaultPollInterval,
			ShutdownTimeout: DefaultShutdownTimeout,
			DispatchTimeout: DefaultDispatchTimeout,
			RunRetention:    DefaultRunRetention,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
		Logging: LoggingConfig{
			Level:     DefaultLogLevel,
			Format:    DefaultLogFormat,
			Caller:    false,
			Timestamp: true,
		},
	}
}
