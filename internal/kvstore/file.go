package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"otpdeck/internal/fsutil"
	"otpdeck/internal/logging"
	"otpdeck/internal/vault"
)

// FileStore keeps all keys in one JSON document, optionally sealed with a vault.
// Each Set rewrites the whole document with fsutil.AtomicWriteFile.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	vault  *vault.Vault
	doc    map[string]json.RawMessage
	closed bool
	logger *logging.Logger
}

// OpenFileStore loads path, or starts an empty document when it does not exist.
// With a nil vault the document is stored as plain JSON.
func OpenFileStore(path string, v *vault.Vault, logger *logging.Logger) (*FileStore, error) {
	if err := fsutil.EnsureStateDirectory(filepath.Dir(path)); err != nil {
		return nil, err
	}

	s := &FileStore{
		path:   path,
		vault:  v,
		doc:    make(map[string]json.RawMessage),
		logger: logger,
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	logger.Info("kvstore.file.opened", "File store opened", map[string]interface{}{
		"path":      path,
		"encrypted": v != nil,
		"entries":   len(s.doc),
	})

	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(filepath.Clean(s.path)) // #nosec G304 -- path is from config
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read store file: %w", err)
	}

	if vault.IsSealed(data) {
		if s.vault == nil {
			return errors.New("store file is encrypted but no passphrase is configured")
		}
		data, err = s.vault.Open(data)
		if err != nil {
			return fmt.Errorf("failed to decrypt store file: %w", err)
		}
	} else if s.vault != nil && len(data) > 0 {
		s.logger.Warn("kvstore.file.plaintext", "Store file is not encrypted; it will be sealed on next write", map[string]interface{}{
			"path": s.path,
		})
	}

	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return fmt.Errorf("failed to parse store file: %w", err)
	}
	return nil
}

// Get returns the raw JSON stored under key
func (s *FileStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.doc[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores value, which must be valid JSON, and flushes the document to disk
func (s *FileStore) Set(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %s is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	next := make(map[string]json.RawMessage, len(s.doc)+1)
	for k, v := range s.doc {
		next[k] = v
	}
	next[key] = append(json.RawMessage(nil), value...)

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store document: %w", err)
	}

	if s.vault != nil {
		data, err = s.vault.Seal(data)
		if err != nil {
			return fmt.Errorf("failed to seal store document: %w", err)
		}
	}

	if err := fsutil.AtomicWriteFile(s.path, data, fsutil.DefaultFilePermissions, s.logger); err != nil {
		return err
	}

	s.doc = next

	s.logger.Debug("kvstore.file.flushed", "Store document flushed", map[string]interface{}{
		"entry": key,
		"bytes": len(data),
	})

	return nil
}

// Close releases the store; later calls fail with ErrClosed
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
