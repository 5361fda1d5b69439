package config

import (
	"fmt"

	"otpdeck/internal/otp"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateEngine()...)
	errors = append(errors, c.validateScheduler()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	validBackends := []string{BackendFile, BackendSQLite, BackendMemory}
	if !contains(validBackends, c.Store.Backend) {
		errors = append(errors, ValidationError{
			Path:    "store.backend",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validBackends, c.Store.Backend),
		})
	}

	if c.Store.LockTimeoutSeconds < 10 {
		errors = append(errors, ValidationError{
			Path:    "store.lock_timeout_seconds",
			Message: fmt.Sprintf("must be at least 10, got %d", c.Store.LockTimeoutSeconds),
		})
	}

	return errors
}

func (c *Config) validateEngine() []ValidationError {
	if otp.Leniency(c.Engine.Leniency).IsValid() {
		return nil
	}

	return []ValidationError{{
		Path:    "engine.leniency",
		Message: fmt.Sprintf("must be '%s' or '%s', got '%s'", otp.Lenient, otp.Strict, c.Engine.Leniency),
	}}
}

func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError

	if c.Scheduler.RedrawIntervalMs < 100 || c.Scheduler.RedrawIntervalMs > 10000 {
		errors = append(errors, ValidationError{
			Path:    "scheduler.redraw_interval_ms",
			Message: fmt.Sprintf("must be between 100 and 10000, got %d", c.Scheduler.RedrawIntervalMs),
		})
	}

	if c.Scheduler.Parallelism < 1 || c.Scheduler.Parallelism > 64 {
		errors = append(errors, ValidationError{
			Path:    "scheduler.parallelism",
			Message: fmt.Sprintf("must be between 1 and 64, got %d", c.Scheduler.Parallelism),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	validLevels := []string{"debug", "info", "warn", "error"}
	if contains(validLevels, c.Logging.Level) {
		return nil
	}

	return []ValidationError{{
		Path:    "logging.level",
		Message: fmt.Sprintf("must be one of %v, got '%s'", validLevels, c.Logging.Level),
	}}
}

// contains checks if a string is in a slice
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
