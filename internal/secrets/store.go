// Package secrets holds the ordered, persisted list of label/secret records.
package secrets

import (
	"fmt"
	"strings"
	"sync"

	"otpdeck/internal/kvstore"
	"otpdeck/internal/logging"
	"otpdeck/internal/otp"
)

// Store is the ordered record sequence. Every mutation is flushed to the
// kvstore before it returns; a failed flush leaves the sequence unchanged.
type Store struct {
	mu      sync.Mutex
	kv      kvstore.Store
	policy  otp.Leniency
	records []Record
	logger  *logging.Logger
}

// Open loads the record sequence from kv, defaulting to an empty list
func Open(kv kvstore.Store, policy otp.Leniency, logger *logging.Logger) (*Store, error) {
	if !policy.IsValid() {
		return nil, fmt.Errorf("invalid leniency policy %q", policy)
	}

	records := []Record{}
	if _, err := kvstore.GetJSON(kv, kvstore.KeySecrets, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if records == nil {
		records = []Record{}
	}

	logger.Info("store.loaded", "Secret store loaded", map[string]interface{}{
		"records":  len(records),
		"leniency": string(policy),
	})

	return &Store{
		kv:      kv,
		policy:  policy,
		records: records,
		logger:  logger,
	}, nil
}

// Policy returns the leniency policy the store validates input with
func (s *Store) Policy() otp.Leniency {
	return s.policy
}

// List returns a copy of the current sequence
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns the record at index
func (s *Store) Get(index int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return Record{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.records))
	}
	return s.records[index], nil
}

// Add appends a record. It reports false without error when lenient input is
// empty after trimming; strict mode rejects it and also requires a valid secret.
func (s *Store) Add(label, secret string) (bool, error) {
	label = strings.TrimSpace(label)
	secret = otp.NormalizeSecret(secret)

	if label == "" || secret == "" {
		if s.policy == otp.Strict {
			return false, ErrEmptyField
		}
		return false, nil
	}

	if s.policy == otp.Strict {
		key, err := otp.DecodeStrict(secret)
		if err != nil {
			return false, err
		}
		if len(key) == 0 {
			return false, otp.ErrEmptyKey
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Record, len(s.records), len(s.records)+1)
	copy(next, s.records)
	next = append(next, Record{Label: label, Secret: secret})

	if err := s.commit(next); err != nil {
		return false, err
	}

	s.logger.Info("store.record.added", "Record added", map[string]interface{}{
		"index": len(next) - 1,
		"label": label,
	})
	return true, nil
}

// Rename replaces the label at index. An empty label is a no-op in lenient
// mode and ErrEmptyField in strict mode.
func (s *Store) Rename(index int, label string) (bool, error) {
	label = strings.TrimSpace(label)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(index); err != nil {
		return false, err
	}
	if label == "" {
		if s.policy == otp.Strict {
			return false, ErrEmptyField
		}
		return false, nil
	}

	next := append([]Record(nil), s.records...)
	next[index].Label = label

	if err := s.commit(next); err != nil {
		return false, err
	}

	s.logger.Info("store.record.renamed", "Record renamed", map[string]interface{}{
		"index": index,
		"label": label,
	})
	return true, nil
}

// Delete removes the record at index; later records shift down by one
func (s *Store) Delete(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(index); err != nil {
		return err
	}

	next := make([]Record, 0, len(s.records)-1)
	next = append(next, s.records[:index]...)
	next = append(next, s.records[index+1:]...)

	if err := s.commit(next); err != nil {
		return err
	}

	s.logger.Info("store.record.deleted", "Record deleted", map[string]interface{}{
		"index":     index,
		"remaining": len(next),
	})
	return nil
}

// Move removes the record at from and reinserts it at to in the shortened
// sequence. Equal indices are a no-op.
func (s *Store) Move(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(from); err != nil {
		return err
	}
	if err := s.checkIndex(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}

	next := splice(s.records, from, to)
	if err := s.commit(next); err != nil {
		return err
	}

	s.logger.Info("store.record.moved", "Record moved", map[string]interface{}{
		"from": from,
		"to":   to,
	})
	return nil
}

// splice returns a new slice with records[from] removed and reinserted at to
func splice(records []Record, from, to int) []Record {
	moved := records[from]

	rest := make([]Record, 0, len(records))
	rest = append(rest, records[:from]...)
	rest = append(rest, records[from+1:]...)

	next := make([]Record, 0, len(records))
	next = append(next, rest[:to]...)
	next = append(next, moved)
	next = append(next, rest[to:]...)
	return next
}

func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= len(s.records) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.records))
	}
	return nil
}

// commit flushes next and swaps it in only after the write succeeded.
// Callers hold s.mu.
func (s *Store) commit(next []Record) error {
	if err := kvstore.SetJSON(s.kv, kvstore.KeySecrets, next); err != nil {
		s.logger.Error("store.flush.failed", "Failed to persist secret store", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.records = next
	return nil
}
