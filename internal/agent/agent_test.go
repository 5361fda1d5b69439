package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"otpdeck/internal/kvstore"
	"otpdeck/internal/logging"
	"otpdeck/internal/otp"
	"otpdeck/internal/scheduler"
	"otpdeck/internal/secrets"
)

const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type countingLease struct {
	mu sync.Mutex
	n  int
}

func (l *countingLease) Refresh() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.n++
	return nil
}

type harness struct {
	agent  *Agent
	kv     *kvstore.MemoryStore
	clock  *fakeClock
	cancel context.CancelFunc
	done   chan error
}

func startAgent(t *testing.T, at time.Time, opts ...Option) *harness {
	t.Helper()
	logger := logging.NewLogger(logging.LevelError)
	kv := kvstore.NewMemoryStore()

	store, err := secrets.Open(kv, otp.Lenient, logger)
	if err != nil {
		t.Fatalf("secrets.Open() error = %v", err)
	}
	sched := scheduler.New(otp.NewGenerator(), 4, logger)
	clock := &fakeClock{now: at}

	opts = append([]Option{WithClock(clock), WithRedrawInterval(10 * time.Millisecond)}, opts...)
	a, err := New(store, sched, kv, logger, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{agent: a, kv: kv, clock: clock, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- a.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("Run() did not return after cancel")
		}
	})
	return h
}

func opCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// waitFrame returns the first frame satisfying pred
func waitFrame(t *testing.T, a *Agent, pred func(Frame) bool) Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-a.Frames():
			if !ok {
				t.Fatal("frames channel closed")
			}
			if pred(f) {
				return f
			}
		case <-deadline:
			t.Fatal("timed out waiting for frame")
		}
	}
}

func TestAgent_AddPublishesCode(t *testing.T) {
	h := startAgent(t, time.Unix(59, 0))
	ctx := opCtx(t)

	ok, err := h.agent.Add(ctx, "rfc", rfcSecret)
	if err != nil || !ok {
		t.Fatalf("Add() = %v, %v", ok, err)
	}

	f := waitFrame(t, h.agent, func(f Frame) bool { return len(f.Entries) == 1 })
	if f.Entries[0].Code != "287082" || f.Entries[0].Label != "rfc" {
		t.Errorf("entry = %+v, want rfc 287082", f.Entries[0])
	}
	if f.Countdown != 1 || f.Period != 1 {
		t.Errorf("Countdown = %d, Period = %d, want 1, 1", f.Countdown, f.Period)
	}

	code, err := h.agent.Code(ctx, 0)
	if err != nil || code != "287082" {
		t.Errorf("Code(0) = %q, %v", code, err)
	}
}

func TestAgent_EmptyAddIsNoop(t *testing.T) {
	h := startAgent(t, time.Unix(59, 0))

	ok, err := h.agent.Add(opCtx(t), "  ", rfcSecret)
	if err != nil || ok {
		t.Errorf("Add() = %v, %v, want no-op", ok, err)
	}
}

func TestAgent_MutationsResolveAgainstLatestSequence(t *testing.T) {
	h := startAgent(t, time.Unix(1234567890, 0))
	ctx := opCtx(t)

	for _, label := range []string{"a", "b", "c"} {
		if _, err := h.agent.Add(ctx, label, rfcSecret); err != nil {
			t.Fatal(err)
		}
	}

	if err := h.agent.Move(ctx, 0, 2); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if _, err := h.agent.Rename(ctx, 0, "B"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if err := h.agent.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	f := waitFrame(t, h.agent, func(f Frame) bool { return len(f.Entries) == 2 })
	if f.Entries[0].Label != "B" || f.Entries[1].Label != "a" {
		t.Errorf("labels = %s, %s, want B, a", f.Entries[0].Label, f.Entries[1].Label)
	}
	for i, e := range f.Entries {
		if e.Index != i || e.Code != "005924" {
			t.Errorf("entry %d = %+v", i, e)
		}
	}

	if err := h.agent.Delete(ctx, 5); !errors.Is(err, secrets.ErrIndexOutOfRange) {
		t.Errorf("Delete(5) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestAgent_ConcurrentOpsSerialize(t *testing.T) {
	h := startAgent(t, time.Unix(59, 0))
	ctx := opCtx(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.agent.Add(ctx, "x", rfcSecret); err != nil {
				t.Errorf("Add() error = %v", err)
			}
		}()
	}
	wg.Wait()

	f := waitFrame(t, h.agent, func(f Frame) bool { return len(f.Entries) == 20 })
	for i, e := range f.Entries {
		if e.Index != i {
			t.Errorf("entry %d has index %d", i, e.Index)
		}
	}
}

func TestAgent_RedrawRecoversFromClockJump(t *testing.T) {
	h := startAgent(t, time.Unix(59, 0))
	if _, err := h.agent.Add(opCtx(t), "rfc", rfcSecret); err != nil {
		t.Fatal(err)
	}

	h.clock.Set(time.Unix(1111111111, 0))
	f := waitFrame(t, h.agent, func(f Frame) bool {
		return len(f.Entries) == 1 && f.Entries[0].Code == "050471"
	})
	if f.Countdown != 29 {
		t.Errorf("Countdown = %d, want 29", f.Countdown)
	}
}

func TestAgent_CodeReportsRecordError(t *testing.T) {
	h := startAgent(t, time.Unix(59, 0))
	ctx := opCtx(t)

	if _, err := h.agent.Add(ctx, "empty", "===="); err != nil {
		t.Fatal(err)
	}
	if _, err := h.agent.Add(ctx, "ok", rfcSecret); err != nil {
		t.Fatal(err)
	}

	if _, err := h.agent.Code(ctx, 0); !errors.Is(err, otp.ErrEmptyKey) {
		t.Errorf("Code(0) error = %v, want ErrEmptyKey", err)
	}
	if code, err := h.agent.Code(ctx, 1); err != nil || code != "287082" {
		t.Errorf("Code(1) = %q, %v", code, err)
	}
	if _, err := h.agent.Code(ctx, 2); !errors.Is(err, secrets.ErrIndexOutOfRange) {
		t.Errorf("Code(2) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestAgent_TogglePanelPersists(t *testing.T) {
	h := startAgent(t, time.Unix(59, 0))
	ctx := opCtx(t)

	collapsed, err := h.agent.TogglePanel(ctx)
	if err != nil || !collapsed {
		t.Fatalf("TogglePanel() = %v, %v, want true", collapsed, err)
	}
	if stored, _ := kvstore.PanelCollapsed(h.kv); !stored {
		t.Error("panel preference not persisted")
	}
	waitFrame(t, h.agent, func(f Frame) bool { return f.PanelCollapsed })

	h.kv.FailWrites(errors.New("disk full"))
	if _, err := h.agent.TogglePanel(ctx); !errors.Is(err, secrets.ErrPersistence) {
		t.Errorf("TogglePanel() error = %v, want ErrPersistence", err)
	}
	if stored, _ := kvstore.PanelCollapsed(h.kv); !stored {
		t.Error("failed toggle changed the stored preference")
	}
}

func TestAgent_PersistenceFailureKeepsFrame(t *testing.T) {
	h := startAgent(t, time.Unix(59, 0))
	ctx := opCtx(t)

	if _, err := h.agent.Add(ctx, "a", rfcSecret); err != nil {
		t.Fatal(err)
	}
	h.kv.FailWrites(errors.New("disk full"))

	if err := h.agent.Delete(ctx, 0); !errors.Is(err, secrets.ErrPersistence) {
		t.Fatalf("Delete() error = %v, want ErrPersistence", err)
	}
	f := waitFrame(t, h.agent, func(Frame) bool { return true })
	if len(f.Entries) != 1 {
		t.Errorf("entries = %d after failed delete, want 1", len(f.Entries))
	}
}

func TestAgent_SubmitHonoursContext(t *testing.T) {
	logger := logging.NewLogger(logging.LevelError)
	kv := kvstore.NewMemoryStore()
	store, _ := secrets.Open(kv, otp.Lenient, logger)
	a, err := New(store, scheduler.New(otp.NewGenerator(), 1, logger), kv, logger)
	if err != nil {
		t.Fatal(err)
	}

	// Run was never started, so the op can only end through ctx
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := a.Add(ctx, "x", rfcSecret); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Add() error = %v, want DeadlineExceeded", err)
	}
	if store.Len() != 0 {
		t.Error("op ran without a runner")
	}
}

func TestAgent_LoadsPanelPreference(t *testing.T) {
	logger := logging.NewLogger(logging.LevelError)
	kv := kvstore.NewMemoryStore()
	if err := kvstore.SetPanelCollapsed(kv, true); err != nil {
		t.Fatal(err)
	}
	store, _ := secrets.Open(kv, otp.Lenient, logger)

	a, err := New(store, scheduler.New(otp.NewGenerator(), 1, logger), kv, logger)
	if err != nil {
		t.Fatal(err)
	}
	if !a.panelCollapsed {
		t.Error("panelCollapsed not loaded from prefs")
	}
}

func TestAgent_RunClosesFrames(t *testing.T) {
	logger := logging.NewLogger(logging.LevelError)
	kv := kvstore.NewMemoryStore()
	store, _ := secrets.Open(kv, otp.Lenient, logger)
	lease := &countingLease{}
	a, err := New(store, scheduler.New(otp.NewGenerator(), 1, logger), kv, logger, WithLease(lease))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	waitFrame(t, a, func(Frame) bool { return true })
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	for range a.Frames() {
	}
}

func TestUntilBoundary(t *testing.T) {
	tests := []struct {
		at   time.Time
		want time.Duration
	}{
		{time.Unix(0, 0), 30 * time.Second},
		{time.Unix(29, 500_000_000), 500 * time.Millisecond},
		{time.Unix(59, 0), time.Second},
	}
	for _, tt := range tests {
		if got := untilBoundary(tt.at); got != tt.want {
			t.Errorf("untilBoundary(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}
