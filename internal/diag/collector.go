package diag

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"otpdeck/internal/logging"
)

// Collector gathers diagnostic artifacts
type Collector struct {
	config   *Config
	redactor *Redactor
	logger   *logging.Logger
}

// NewCollector creates a new diagnostic collector
func NewCollector(config *Config, logger *logging.Logger) *Collector {
	return &Collector{
		config:   config,
		redactor: NewRedactor(),
		logger:   logger,
	}
}

// CollectLogs reads the log file and redacts it line by line
func (c *Collector) CollectLogs() (map[string][]byte, error) {
	if !c.config.IncludeLogs || c.config.LogPath == "" {
		return nil, nil
	}

	files := make(map[string][]byte)

	content, err := os.ReadFile(filepath.Clean(c.config.LogPath)) // #nosec G304 -- path is from config
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Warn("diag.collect.logs.missing", "Log file not found", map[string]interface{}{
				"path": c.config.LogPath,
			})
			return files, nil
		}
		return files, fmt.Errorf("failed to read log file: %w", err)
	}

	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out.WriteString(c.redactor.Redact(scanner.Text()))
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return files, fmt.Errorf("failed to scan log file: %w", err)
	}

	files["logs/"+filepath.Base(c.config.LogPath)] = out.Bytes()

	c.logger.Info("diag.collect.logs.complete", "Log collection complete", map[string]interface{}{
		"bytes": out.Len(),
	})

	return files, nil
}

// CollectConfig gathers and redacts the configuration files that exist
func (c *Collector) CollectConfig() (map[string][]byte, error) {
	if !c.config.IncludeConfig {
		return nil, nil
	}

	files := make(map[string][]byte)

	names := make([]string, 0, len(c.config.ConfigFiles))
	for name := range c.config.ConfigFiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := c.config.ConfigFiles[name]
		content, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is from config
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			c.logger.Error("diag.collect.config.read_error", "Failed to read config file", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			return files, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		files["config/"+name] = []byte(c.redactor.Redact(string(content)))
	}

	c.logger.Info("diag.collect.config.complete", "Config collection complete", map[string]interface{}{
		"file_count": len(files),
		"redacted":   true,
	})

	return files, nil
}

// CollectSystemInfo gathers version, platform and store status
func (c *Collector) CollectSystemInfo() (map[string][]byte, error) {
	files := make(map[string][]byte)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	sysInfo := map[string]interface{}{
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"host":            hostname,
		"otpdeck_version": c.config.Version,
		"go_version":      runtime.Version(),
		"os":              runtime.GOOS,
		"arch":            runtime.GOARCH,
		"store":           c.config.Status,
	}

	sysInfoJSON, err := json.MarshalIndent(sysInfo, "", "  ")
	if err != nil {
		return files, fmt.Errorf("failed to marshal system info: %w", err)
	}

	files["system_info.json"] = sysInfoJSON

	c.logger.Info("diag.collect.sysinfo.complete", "System info collection complete", nil)

	return files, nil
}

// CalculateSHA256 computes SHA256 hash of data
func CalculateSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
