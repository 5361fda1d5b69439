// Package agent runs the single-writer loop that owns the secret store and
// the code cache. Every mutation and every recompute pass executes on the Run
// goroutine, one at a time, so an index is always resolved against the latest
// committed sequence.
package agent

import (
	"context"
	"fmt"
	"time"

	"otpdeck/internal/kvstore"
	"otpdeck/internal/logging"
	"otpdeck/internal/scheduler"
	"otpdeck/internal/secrets"
)

// DefaultRedrawInterval is the cosmetic countdown refresh rate
const DefaultRedrawInterval = time.Second

// Clock is the wall-clock source
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the process wall clock
func SystemClock() Clock { return systemClock{} }

// Lease is renewed once per period while the agent runs
type Lease interface {
	Refresh() error
}

// Frame is everything the display needs for one redraw
type Frame struct {
	Now            time.Time
	Countdown      int
	Period         uint64
	Entries        []scheduler.Entry
	PanelCollapsed bool
}

type op struct {
	name string
	run  func() error
	done chan error
}

// Agent owns the store, the scheduler and UI preferences
type Agent struct {
	store  *secrets.Store
	sched  *scheduler.Scheduler
	prefs  kvstore.Store
	clock  Clock
	lease  Lease
	redraw time.Duration
	logger *logging.Logger

	ops    chan op
	frames chan Frame

	// owned by the Run goroutine
	panelCollapsed bool
	startTime      time.Time
}

// Option configures an Agent
type Option func(*Agent)

// WithClock replaces the system clock
func WithClock(c Clock) Option {
	return func(a *Agent) { a.clock = c }
}

// WithRedrawInterval sets the countdown refresh rate
func WithRedrawInterval(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.redraw = d
		}
	}
}

// WithLease renews l at every period boundary
func WithLease(l Lease) Option {
	return func(a *Agent) { a.lease = l }
}

// New creates an agent. prefs holds the add-panel preference and is usually
// the same kvstore that backs store.
func New(store *secrets.Store, sched *scheduler.Scheduler, prefs kvstore.Store, logger *logging.Logger, opts ...Option) (*Agent, error) {
	collapsed, err := kvstore.PanelCollapsed(prefs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", secrets.ErrPersistence, err)
	}

	a := &Agent{
		store:          store,
		sched:          sched,
		prefs:          prefs,
		clock:          SystemClock(),
		redraw:         DefaultRedrawInterval,
		logger:         logger,
		ops:            make(chan op),
		frames:         make(chan Frame, 1),
		panelCollapsed: collapsed,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Frames delivers the latest frame. Undelivered frames are replaced by newer
// ones. The channel is closed when Run returns.
func (a *Agent) Frames() <-chan Frame {
	return a.frames
}

// Run executes queued operations, boundary recomputes and redraws until ctx
// ends. It must be called once.
func (a *Agent) Run(ctx context.Context) error {
	defer close(a.frames)

	a.startTime = a.clock.Now()
	a.logger.Info("agent.started", "Agent started", map[string]interface{}{
		"records":         a.store.Len(),
		"redraw_interval": a.redraw.String(),
	})

	a.sched.Tick(a.startTime, a.store.List())
	a.publish()

	redraw := time.NewTicker(a.redraw)
	defer redraw.Stop()

	recompute := time.NewTimer(untilBoundary(a.clock.Now()))
	defer recompute.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent.stopped", "Agent stopped", map[string]interface{}{
				"uptime_seconds": a.clock.Now().Sub(a.startTime).Seconds(),
			})
			return nil

		case o := <-a.ops:
			err := o.run()
			o.done <- err
			if err != nil {
				a.logger.Warn("agent.op.failed", "Operation failed", map[string]interface{}{
					"op":    o.name,
					"error": err.Error(),
				})
			}
			a.publish()

		case <-recompute.C:
			now := a.clock.Now()
			a.sched.Tick(now, a.store.List())
			a.refreshLease()
			a.publish()
			recompute.Reset(untilBoundary(a.clock.Now()))

		case <-redraw.C:
			now := a.clock.Now()
			if a.sched.State(now) == scheduler.Stale {
				// Clock moved into another period without the boundary timer
				// firing, e.g. after suspend.
				a.logger.Debug("agent.clock.jump", "Cache stale on redraw, recomputing", map[string]interface{}{
					"unix": now.Unix(),
				})
				a.sched.Tick(now, a.store.List())
			}
			a.publish()
		}
	}
}

func untilBoundary(now time.Time) time.Duration {
	d := scheduler.NextBoundary(now).Sub(now)
	if d <= 0 {
		return time.Millisecond
	}
	return d
}

func (a *Agent) refreshLease() {
	if a.lease == nil {
		return
	}
	if err := a.lease.Refresh(); err != nil {
		a.logger.Warn("agent.lease.refresh_failed", "Failed to refresh store lock", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (a *Agent) publish() {
	now := a.clock.Now()
	snap := a.sched.Snapshot()
	f := Frame{
		Now:            now,
		Countdown:      a.sched.SecondsUntilNextPeriod(now),
		Period:         snap.Period,
		Entries:        snap.Entries,
		PanelCollapsed: a.panelCollapsed,
	}

	select {
	case a.frames <- f:
		return
	default:
	}
	// Drop the stale frame and retry; Run is the only sender.
	select {
	case <-a.frames:
	default:
	}
	select {
	case a.frames <- f:
	default:
	}
}

// submit queues fn on the Run goroutine and waits for its result
func (a *Agent) submit(ctx context.Context, name string, fn func() error) error {
	o := op{name: name, run: fn, done: make(chan error, 1)}

	select {
	case a.ops <- o:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-o.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) mutated() {
	a.sched.OnStoreMutated(a.clock.Now(), a.store.List())
}

// Add appends a record and recomputes codes. It reports false when lenient
// input was empty and nothing changed.
func (a *Agent) Add(ctx context.Context, label, secret string) (bool, error) {
	var added bool
	err := a.submit(ctx, "add", func() error {
		ok, err := a.store.Add(label, secret)
		if err != nil {
			return err
		}
		added = ok
		if ok {
			a.mutated()
		}
		return nil
	})
	return added, err
}

// Rename changes the label at index
func (a *Agent) Rename(ctx context.Context, index int, label string) (bool, error) {
	var renamed bool
	err := a.submit(ctx, "rename", func() error {
		ok, err := a.store.Rename(index, label)
		if err != nil {
			return err
		}
		renamed = ok
		if ok {
			a.mutated()
		}
		return nil
	})
	return renamed, err
}

// Delete removes the record at index
func (a *Agent) Delete(ctx context.Context, index int) error {
	return a.submit(ctx, "delete", func() error {
		if err := a.store.Delete(index); err != nil {
			return err
		}
		a.mutated()
		return nil
	})
}

// Move reorders with remove-then-insert semantics
func (a *Agent) Move(ctx context.Context, from, to int) error {
	return a.submit(ctx, "move", func() error {
		if err := a.store.Move(from, to); err != nil {
			return err
		}
		a.mutated()
		return nil
	})
}

// TogglePanel flips and persists the add-panel preference, returning the new value
func (a *Agent) TogglePanel(ctx context.Context) (bool, error) {
	var collapsed bool
	err := a.submit(ctx, "toggle_panel", func() error {
		next := !a.panelCollapsed
		if err := kvstore.SetPanelCollapsed(a.prefs, next); err != nil {
			return fmt.Errorf("%w: %v", secrets.ErrPersistence, err)
		}
		a.panelCollapsed = next
		collapsed = next
		return nil
	})
	return collapsed, err
}

// Code returns the current code for index, or the record's error
func (a *Agent) Code(ctx context.Context, index int) (string, error) {
	var code string
	err := a.submit(ctx, "code", func() error {
		now := a.clock.Now()
		records := a.store.List()
		a.sched.Tick(now, records)

		entries := a.sched.Snapshot().Entries
		if index < 0 || index >= len(entries) {
			return fmt.Errorf("%w: %d (len %d)", secrets.ErrIndexOutOfRange, index, len(entries))
		}
		if entries[index].Err != nil {
			return entries[index].Err
		}
		code = entries[index].Code
		return nil
	})
	return code, err
}
