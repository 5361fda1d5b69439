package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"otpdeck/internal/logging"
)

const (
	// StateDirEnv overrides the state directory
	StateDirEnv = "OTPDECK_STATE_DIR"
	// DefaultStatePermissions is the default permission for state directories
	DefaultStatePermissions = 0o700
	// DefaultFilePermissions is the default permission for state files
	DefaultFilePermissions = 0o600
)

// GetStateDir returns the state directory from the environment, falling back to
// ~/.local/state/otpdeck, then to a temp directory. It returns an absolute path when possible.
func GetStateDir() string {
	if env := os.Getenv(StateDirEnv); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
		return env
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "otpdeck")
	}
	return filepath.Join(os.TempDir(), "otpdeck")
}

// EnsureStateDirectory creates the state directory if it doesn't exist.
func EnsureStateDirectory(path string) error {
	if err := os.MkdirAll(path, DefaultStatePermissions); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// AtomicWriteFile writes data to a temp file, syncs it, renames it over path and
// syncs the parent directory. Once it returns nil the new content survives a crash;
// on error the previous content of path is untouched.
func AtomicWriteFile(path string, data []byte, perm os.FileMode, logger *logging.Logger) error {
	tmpPath := path + ".tmp"

	if err := writeAndSync(tmpPath, data, perm); err != nil {
		removeTemp(tmpPath, logger)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		removeTemp(tmpPath, logger)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	if err := syncDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to sync directory: %w", err)
	}

	return nil
}

func writeAndSync(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(filepath.Clean(dir))
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

func removeTemp(tmpPath string, logger *logging.Logger) {
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("fsutil.cleanup_failed", "Failed to remove temp file", map[string]interface{}{
			"path":  tmpPath,
			"error": err.Error(),
		})
	}
}

// CloseWithError closes a resource and logs any error if a logger is provided.
// This is useful for defer statements where close errors should be handled.
func CloseWithError(closer func() error, logger *logging.Logger, resource string) {
	if err := closer(); err != nil {
		logger.Warn("fsutil.close_failed", fmt.Sprintf("Failed to close %s", resource), map[string]interface{}{
			"error": err.Error(),
		})
	}
}
