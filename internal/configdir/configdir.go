package configdir

import (
	"os"
	"path/filepath"
)

// ConfigDirEnv overrides the system configuration directory
const ConfigDirEnv = "OTPDECK_CONFIG_DIR"

const defaultConfigDir = "/etc/otpdeck"

// ConfigDir resolves the configuration directory respecting overrides
func ConfigDir() string {
	if env := os.Getenv(ConfigDirEnv); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
	}
	return defaultConfigDir
}
