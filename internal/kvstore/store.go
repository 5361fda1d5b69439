// Package kvstore is the durable key-value persistence behind the secret list
// and UI preferences. Every Set is atomic and durable once it returns.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// KeySecrets holds the ordered [{label, secret}] sequence
	KeySecrets = "secrets"
	// KeyAddPanelCollapsed holds the add-panel UI preference
	KeyAddPanelCollapsed = "addPanelCollapsed"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("store is closed")

// Store is the durable key-value collaborator.
// A failed Set leaves the previous value readable.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Close() error
}

// GetJSON decodes key into dst. When the key is missing dst keeps its current
// value, which acts as the default.
func GetJSON(s Store, key string, dst interface{}) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key
func SetJSON(s Store, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.Set(key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// PanelCollapsed reads the add-panel preference, defaulting to false
func PanelCollapsed(s Store) (bool, error) {
	collapsed := false
	if _, err := GetJSON(s, KeyAddPanelCollapsed, &collapsed); err != nil {
		return false, err
	}
	return collapsed, nil
}

// SetPanelCollapsed persists the add-panel preference
func SetPanelCollapsed(s Store, collapsed bool) error {
	return SetJSON(s, KeyAddPanelCollapsed, collapsed)
}
