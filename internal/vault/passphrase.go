package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PassphraseEnv supplies the passphrase directly, bypassing the passphrase file
const PassphraseEnv = "OTPDECK_PASSPHRASE"

// LoadOrGeneratePassphrase returns the passphrase from the environment, from
// path, or generates a random one and writes it to path with mode 0600.
func LoadOrGeneratePassphrase(path string) (string, error) {
	if env := os.Getenv(PassphraseEnv); env != "" {
		return env, nil
	}

	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is from config
	if err == nil {
		passphrase := strings.TrimSpace(string(data))
		if passphrase == "" {
			return "", fmt.Errorf("passphrase file %s is empty", path)
		}
		return passphrase, nil
	}

	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read passphrase file: %w", err)
	}

	passphrase, err := generatePassphrase()
	if err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create passphrase directory: %w", err)
	}

	// O_EXCL so two first runs racing cannot overwrite each other's passphrase
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return LoadOrGeneratePassphrase(path)
		}
		return "", fmt.Errorf("failed to create passphrase file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(passphrase); err != nil {
		return "", fmt.Errorf("failed to write passphrase: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync passphrase: %w", err)
	}

	return passphrase, nil
}

// generatePassphrase returns 32 random bytes, hex encoded
func generatePassphrase() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
