package kvstore

import (
	"fmt"

	"otpdeck/internal/logging"
	"otpdeck/internal/vault"
)

// Backend names a Store implementation
type Backend string

const (
	// BackendFile is a single JSON document on disk
	BackendFile Backend = "file"
	// BackendSQLite is a SQLite database
	BackendSQLite Backend = "sqlite"
	// BackendMemory keeps nothing across runs
	BackendMemory Backend = "memory"
)

// Options selects and configures a backend
type Options struct {
	Backend Backend
	Path    string
	// Vault seals stored data; nil stores plaintext
	Vault *vault.Vault
}

// Open creates the Store described by opts
func Open(opts Options, logger *logging.Logger) (Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		return OpenFileStore(opts.Path, opts.Vault, logger)
	case BackendSQLite:
		return OpenSQLiteStore(opts.Path, opts.Vault, logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
