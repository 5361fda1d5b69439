// Package storelock keeps a lease file next to the store so that two otpdeck
// processes never interleave writes to the same secrets.
package storelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"otpdeck/internal/fsutil"
	"otpdeck/internal/logging"
)

// DefaultLeaseTimeout is the age after which an unrefreshed lease is considered stale
const DefaultLeaseTimeout = 5 * time.Minute

// Manager acquires, refreshes and releases the lease for this process
type Manager struct {
	path         string
	command      string
	pid          int
	leaseTimeout time.Duration
	alive        func(pid int) bool
	now          func() time.Time
	logger       *logging.Logger
}

// NewManager creates a lease manager for the lock file at path
func NewManager(path, command string, leaseTimeout time.Duration, logger *logging.Logger) *Manager {
	if leaseTimeout <= 0 {
		leaseTimeout = DefaultLeaseTimeout
	}
	return &Manager{
		path:         path,
		command:      command,
		pid:          os.Getpid(),
		leaseTimeout: leaseTimeout,
		alive:        processAlive,
		now:          time.Now,
		logger:       logger,
	}
}

// Path returns the lock file location
func (m *Manager) Path() string {
	return m.path
}

// Acquire takes the lease. A lease that is stale or whose holder has exited
// is reclaimed; one held by a live process fails with ErrLocked.
func (m *Manager) Acquire() error {
	if err := fsutil.EnsureStateDirectory(filepath.Dir(m.path)); err != nil {
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := m.create()
		if err == nil {
			m.logger.Info("store.lock.acquired", "Store lock acquired", map[string]interface{}{
				"pid":     m.pid,
				"command": m.command,
			})
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		existing, err := m.load()
		if err != nil {
			// Unreadable lease: treat as abandoned
			m.logger.Warn("store.lock.corrupt", "Lock file unreadable, reclaiming", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			if existing.PID == m.pid {
				return m.Refresh()
			}
			age := existing.Age(m.now())
			if age <= m.leaseTimeout && m.alive(existing.PID) {
				return fmt.Errorf("%w: pid %d (%s) since %s ago", ErrLocked,
					existing.PID, existing.Command, age.Round(time.Second))
			}
			m.logger.Warn("store.lock.stale_detected", "Stale store lock reclaimed", map[string]interface{}{
				"previous_pid": existing.PID,
				"age_seconds":  age.Seconds(),
			})
		}

		if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear stale lock: %w", err)
		}
	}

	return fmt.Errorf("%w: lost race while reclaiming", ErrLocked)
}

// Refresh renews the lease timestamp; the holder calls it while running
func (m *Manager) Refresh() error {
	existing, err := m.load()
	if err != nil {
		return fmt.Errorf("failed to read lock: %w", err)
	}
	if existing.PID != m.pid {
		return fmt.Errorf("%w: lease now held by pid %d", ErrLocked, existing.PID)
	}

	data, err := m.encode()
	if err != nil {
		return err
	}
	if err := fsutil.AtomicWriteFile(m.path, data, fsutil.DefaultFilePermissions, m.logger); err != nil {
		return fmt.Errorf("failed to refresh lock: %w", err)
	}
	return nil
}

// Release removes the lease if this process holds it
func (m *Manager) Release() error {
	existing, err := m.load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock: %w", err)
	}
	if existing.PID != m.pid {
		return fmt.Errorf("cannot release lock held by pid %d", existing.PID)
	}

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	m.logger.Info("store.lock.released", "Store lock released", map[string]interface{}{
		"pid": m.pid,
	})
	return nil
}

// Status returns the current lease, or nil when the store is unlocked
func (m *Manager) Status() (*Lease, error) {
	lease, err := m.load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return lease, nil
}

// create writes a new lease, failing with an os.IsExist error if one is present
func (m *Manager) create() error {
	data, err := m.encode()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Clean(m.path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, fsutil.DefaultFilePermissions)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Join(fmt.Errorf("failed to write lock: %w", err), os.Remove(m.path))
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync lock: %w", err)
	}
	return f.Close()
}

func (m *Manager) encode() ([]byte, error) {
	data, err := json.MarshalIndent(Lease{
		PID:     m.pid,
		Command: m.command,
		SinceTS: m.now().UTC(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}
	return data, nil
}

func (m *Manager) load() (*Lease, error) {
	data, err := os.ReadFile(filepath.Clean(m.path)) // #nosec G304 -- path is from config
	if err != nil {
		return nil, err
	}

	var lease Lease
	if err := json.Unmarshal(data, &lease); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock: %w", err)
	}
	return &lease, nil
}
