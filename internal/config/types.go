package config

// Config represents the complete otpdeck configuration
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Engine    EngineConfig    `yaml:"engine"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig selects and secures the durable store
type StoreConfig struct {
	Backend            string `yaml:"backend"`
	Path               string `yaml:"path"`
	Encrypt            bool   `yaml:"encrypt"`
	PassphraseFile     string `yaml:"passphrase_file"`
	LockTimeoutSeconds int    `yaml:"lock_timeout_seconds"`
}

// EngineConfig controls secret validation
type EngineConfig struct {
	Leniency string `yaml:"leniency"`
}

// SchedulerConfig controls the redraw cadence and recompute fan-out
type SchedulerConfig struct {
	RedrawIntervalMs int `yaml:"redraw_interval_ms"`
	Parallelism      int `yaml:"parallelism"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
