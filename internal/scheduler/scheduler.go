// Package scheduler decides when codes are recomputed and holds the code cache.
package scheduler

import (
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"otpdeck/internal/logging"
	"otpdeck/internal/otp"
	"otpdeck/internal/secrets"
)

// State reports whether the cache matches the current period
type State int

const (
	// Stale means the cache is empty or computed for another period
	Stale State = iota
	// Fresh means the cache holds codes for the current period
	Fresh
)

func (s State) String() string {
	if s == Fresh {
		return "fresh"
	}
	return "stale"
}

// Entry is the derived display state of one record
type Entry struct {
	Index int
	Label string
	Code  string
	Err   error
}

// Snapshot is one committed recompute pass
type Snapshot struct {
	Period   uint64
	Computed bool
	Entries  []Entry
}

// Scheduler owns the code cache. Passes are serialized and each commits with
// a single pointer swap, so readers never see a partially updated set.
type Scheduler struct {
	gen         *otp.Generator
	parallelism int
	logger      *logging.Logger

	passMu sync.Mutex
	mu     sync.RWMutex
	cache  *Snapshot
}

// New creates a scheduler computing up to parallelism records at once
func New(gen *otp.Generator, parallelism int, logger *logging.Logger) *Scheduler {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Scheduler{
		gen:         gen,
		parallelism: parallelism,
		logger:      logger,
	}
}

// SecondsUntilNextPeriod returns the countdown in [1,30]
func (s *Scheduler) SecondsUntilNextPeriod(now time.Time) int {
	return otp.SecondsUntilNextPeriod(now)
}

// NextBoundary returns the first instant of the period after now
func NextBoundary(now time.Time) time.Time {
	return otp.PeriodStart(now).Add(otp.StepSeconds * time.Second)
}

// Tick recomputes every record when now falls in a different period than the
// cache, or when nothing is cached. It reports whether a pass ran.
func (s *Scheduler) Tick(now time.Time, records []secrets.Record) bool {
	if s.State(now) == Fresh {
		return false
	}
	s.recompute(now, records, "boundary")
	return true
}

// OnStoreMutated recomputes unconditionally for the current period
func (s *Scheduler) OnStoreMutated(now time.Time, records []secrets.Record) {
	s.recompute(now, records, "mutation")
}

// State compares the cached period with now
func (s *Scheduler) State(now time.Time) State {
	period, err := otp.Period(now)
	if err != nil {
		return Stale
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache == nil || !s.cache.Computed || s.cache.Period != period {
		return Stale
	}
	return Fresh
}

// Snapshot returns a copy of the last committed pass
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache == nil {
		return Snapshot{}
	}
	return Snapshot{
		Period:   s.cache.Period,
		Computed: s.cache.Computed,
		Entries:  append([]Entry(nil), s.cache.Entries...),
	}
}

func (s *Scheduler) recompute(now time.Time, records []secrets.Record, reason string) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	start := time.Now()
	period, periodErr := otp.Period(now)
	entries := make([]Entry, len(records))

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, rec := range records {
		g.Go(func() error {
			entry := Entry{Index: i, Label: rec.Label}
			if periodErr != nil {
				entry.Err = periodErr
			} else {
				entry.Code, entry.Err = s.gen.Generate(rec.Secret, now)
			}
			entries[i] = entry
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, e := range entries {
		if e.Err != nil {
			failed++
		}
	}

	next := &Snapshot{Period: period, Computed: periodErr == nil, Entries: entries}
	s.mu.Lock()
	s.cache = next
	s.mu.Unlock()

	s.logger.Debug("scheduler.pass.completed", "Codes recomputed", map[string]interface{}{
		"reason":      reason,
		"period":      period,
		"records":     len(entries),
		"failed":      failed,
		"duration_us": time.Since(start).Microseconds(),
	})
	if periodErr != nil {
		s.logger.Warn("scheduler.clock.invalid", "Clock reports an instant before the epoch", map[string]interface{}{
			"unix": now.Unix(),
		})
	}
}
