package config

import (
	"path/filepath"
	"time"

	"otpdeck/internal/fsutil"
)

const (
	// BackendFile stores everything in one JSON document
	BackendFile = "file"
	// BackendSQLite stores entries in a SQLite database
	BackendSQLite = "sqlite"
	// BackendMemory keeps entries for the lifetime of the process
	BackendMemory = "memory"
)

// DefaultConfig returns a configuration with sensible defaults.
// Paths are left empty and resolved against the state directory by the accessors below.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Backend:            BackendFile,
			Encrypt:            true,
			LockTimeoutSeconds: 300,
		},
		Engine: EngineConfig{
			Leniency: "lenient",
		},
		Scheduler: SchedulerConfig{
			RedrawIntervalMs: 1000,
			Parallelism:      4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// StorePath returns the configured store path or the backend's default location
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	name := "secrets.json"
	if c.Store.Backend == BackendSQLite {
		name = "secrets.db"
	}
	return filepath.Join(fsutil.GetStateDir(), name)
}

// PassphrasePath returns the passphrase file location
func (c *Config) PassphrasePath() string {
	if c.Store.PassphraseFile != "" {
		return c.Store.PassphraseFile
	}
	return filepath.Join(fsutil.GetStateDir(), ".passphrase")
}

// LockPath returns the lease file guarding the store
func (c *Config) LockPath() string {
	return c.StorePath() + ".lock"
}

// LogPath returns the log file used while the TUI owns the terminal
func (c *Config) LogPath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(fsutil.GetStateDir(), "otpdeck.log")
}

// RedrawInterval returns the redraw cadence as a duration
func (c *Config) RedrawInterval() time.Duration {
	return time.Duration(c.Scheduler.RedrawIntervalMs) * time.Millisecond
}

// LockTimeout returns the store lease timeout as a duration
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Store.LockTimeoutSeconds) * time.Second
}
