package diag

import "time"

// Manifest represents the diagnostic package manifest
type Manifest struct {
	Timestamp      string         `json:"timestamp"`
	Host           string         `json:"host"`
	OtpdeckVersion string         `json:"otpdeck_version"`
	Files          []ManifestFile `json:"files"`
}

// ManifestFile represents a file in the diagnostic package
type ManifestFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Config configures diagnostic collection.
// The store itself is never read; Status carries what the caller knows about it.
type Config struct {
	LogPath string
	// ConfigFiles maps an archive name to a config file on disk
	ConfigFiles   map[string]string
	OutputPath    string
	IncludeLogs   bool
	IncludeConfig bool
	Version       string
	Status        map[string]interface{}
}

// NewConfig creates a default diagnostic config
func NewConfig(version string) *Config {
	return &Config{
		ConfigFiles:   make(map[string]string),
		OutputPath:    generateOutputPath(time.Now()),
		IncludeLogs:   true,
		IncludeConfig: true,
		Version:       version,
		Status:        make(map[string]interface{}),
	}
}

func generateOutputPath(now time.Time) string {
	return "otpdeck-diag-" + now.UTC().Format("20060102-150405") + ".zip"
}
