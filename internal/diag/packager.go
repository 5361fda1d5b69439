package diag

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"otpdeck/internal/fsutil"
	"otpdeck/internal/logging"
)

// Packager creates diagnostic ZIP packages
type Packager struct {
	config    *Config
	collector *Collector
	logger    *logging.Logger
}

// NewPackager creates a new diagnostic packager
func NewPackager(config *Config, logger *logging.Logger) *Packager {
	return &Packager{
		config:    config,
		collector: NewCollector(config, logger),
		logger:    logger,
	}
}

// CreatePackage collects all artifacts and writes the ZIP.
// A failing collector is logged and the package is written without its files.
func (p *Packager) CreatePackage() (string, error) {
	p.logger.Info("diag.package.start", "Creating diagnostic package", map[string]interface{}{
		"output": p.config.OutputPath,
	})

	allFiles := make(map[string][]byte)

	collectors := []struct {
		name    string
		collect func() (map[string][]byte, error)
	}{
		{"logs", p.collector.CollectLogs},
		{"config", p.collector.CollectConfig},
		{"sysinfo", p.collector.CollectSystemInfo},
	}
	for _, c := range collectors {
		files, err := c.collect()
		if err != nil {
			p.logger.Error("diag.package."+c.name+"_error", "Failed to collect "+c.name, map[string]interface{}{
				"error": err.Error(),
			})
		}
		for path, content := range files {
			allFiles[path] = content
		}
	}

	manifestJSON, err := json.MarshalIndent(p.createManifest(allFiles), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	allFiles["diag_manifest.json"] = manifestJSON

	if err := p.createZIP(allFiles); err != nil {
		return "", fmt.Errorf("failed to create ZIP: %w", err)
	}

	p.logger.Info("diag.package.complete", "Diagnostic package created", map[string]interface{}{
		"output":     p.config.OutputPath,
		"file_count": len(allFiles),
	})

	return p.config.OutputPath, nil
}

// createManifest lists every collected file with its size and digest
func (p *Packager) createManifest(files map[string][]byte) *Manifest {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	manifest := &Manifest{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Host:           hostname,
		OtpdeckVersion: p.config.Version,
		Files:          make([]ManifestFile, 0, len(files)),
	}

	for _, path := range sortedKeys(files) {
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:      path,
			SizeBytes: int64(len(files[path])),
			SHA256:    CalculateSHA256(files[path]),
		})
	}

	return manifest
}

// createZIP writes the archive with owner-only permissions
func (p *Packager) createZIP(files map[string][]byte) error {
	if dir := filepath.Dir(p.config.OutputPath); dir != "." {
		if err := fsutil.EnsureStateDirectory(dir); err != nil {
			return err
		}
	}

	zipFile, err := os.OpenFile(filepath.Clean(p.config.OutputPath), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer fsutil.CloseWithError(zipFile.Close, p.logger, "diagnostic ZIP file")

	zipWriter := zip.NewWriter(zipFile)

	for _, path := range sortedKeys(files) {
		writer, err := zipWriter.Create(path)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", path, err)
		}
		if _, err := writer.Write(files[path]); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	return zipWriter.Close()
}

func sortedKeys(files map[string][]byte) []string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
