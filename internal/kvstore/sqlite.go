package kvstore

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"otpdeck/internal/fsutil"
	"otpdeck/internal/logging"
	"otpdeck/internal/vault"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS kv (
	key TEXT NOT NULL PRIMARY KEY,
	value BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

const schemaVersion = 1

// SQLiteStore keeps each key in its own row of a single table.
// With a vault, each value is sealed individually.
type SQLiteStore struct {
	db     *sql.DB
	vault  *vault.Vault
	logger *logging.Logger
}

// OpenSQLiteStore opens or creates the database at dbPath
func OpenSQLiteStore(dbPath string, v *vault.Vault, logger *logging.Logger) (*SQLiteStore, error) {
	if err := fsutil.EnsureStateDirectory(filepath.Dir(dbPath)); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers and avoids "database is locked"
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, vault: v, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("kvstore.sqlite.opened", "SQLite store opened", map[string]interface{}{
		"path":         dbPath,
		"journal_mode": "WAL",
		"encrypted":    v != nil,
	})

	return s, nil
}

// sqliteDSN builds a file: URI for dbPath. The path is escaped so '?' and '#'
// in it cannot end the path early.
func sqliteDSN(dbPath string) string {
	// synchronous=FULL: a committed Set must survive power loss
	return "file:" + (&url.URL{Path: dbPath}).EscapedPath() + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL"
}

func (s *SQLiteStore) initSchema() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to query schema version: %w", err)
	}

	if version >= schemaVersion {
		return nil
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	s.logger.Info("kvstore.sqlite.schema_initialized", "Database schema initialized", map[string]interface{}{
		"version": schemaVersion,
	})
	return nil
}

// Get returns the value stored under key
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query %s: %w", key, err)
	}

	if s.vault != nil {
		value, err = s.vault.Open(value)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decrypt %s: %w", key, err)
		}
	}
	return value, true, nil
}

// Set upserts value under key in a single statement
func (s *SQLiteStore) Set(key string, value []byte) error {
	if s.vault != nil {
		sealed, err := s.vault.Seal(value)
		if err != nil {
			return fmt.Errorf("failed to seal %s: %w", key, err)
		}
		value = sealed
	}

	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", key, err)
	}

	s.logger.Debug("kvstore.sqlite.flushed", "Entry written", map[string]interface{}{
		"entry": key,
		"bytes": len(value),
	})
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
