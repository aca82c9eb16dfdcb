package config

import (
	"fmt"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"console": true,
	"json":    true,
}

// Validate checks a Config for values that cannot be acted on.
func Validate(cfg *Config) error {
	if cfg.Database.Path == "" {
		return fmt.Errorf("%w: database.path must not be empty", ErrInvalidConfig)
	}
	if cfg.Database.MaxOpenConns < 1 {
		return fmt.Errorf("%w: database.max_open_conns must be at least 1", ErrInvalidConfig)
	}
	if cfg.Database.MaxIdleConns < 0 {
		return fmt.Errorf("%w: database.max_idle_conns must not be negative", ErrInvalidConfig)
	}

	if cfg.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("%w: scheduler.poll_interval must be positive", ErrInvalidConfig)
	}
	if cfg.Scheduler.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: scheduler.shutdown_timeout must be positive", ErrInvalidConfig)
	}
	if cfg.Scheduler.DispatchTimeout < 0 {
		return fmt.Errorf("%w: scheduler.dispatch_timeout must not be negative", ErrInvalidConfig)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return fmt.Errorf("%w: metrics.addr must be set when metrics are enabled", ErrInvalidConfig)
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("%w: unknown logging.level %q", ErrInvalidConfig, cfg.Logging.Level)
	}
	if !validLogFormats[cfg.Logging.Format] {
		return fmt.Errorf("%w: unknown logging.format %q", ErrInvalidConfig, cfg.Logging.Format)
	}

	return nil
}
