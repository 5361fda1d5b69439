package scheduler

import (
	"crypto/md5" // #nosec G501 -- used to provoke a digest size mismatch
	"errors"
	"fmt"
	"testing"
	"time"

	"otpdeck/internal/logging"
	"otpdeck/internal/otp"
	"otpdeck/internal/secrets"
)

const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func newTestScheduler(opts ...otp.Option) *Scheduler {
	return New(otp.NewGenerator(opts...), 4, logging.NewLogger(logging.LevelError))
}

func TestTick_FirstCallComputes(t *testing.T) {
	s := newTestScheduler()
	now := time.Unix(59, 0)

	if s.State(now) != Stale {
		t.Fatal("State() before first pass should be Stale")
	}
	if !s.Tick(now, []secrets.Record{{Label: "rfc", Secret: rfcSecret}}) {
		t.Fatal("Tick() on empty cache should recompute")
	}
	if s.State(now) != Fresh {
		t.Error("State() after Tick should be Fresh")
	}

	snap := s.Snapshot()
	if snap.Period != 1 || len(snap.Entries) != 1 {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if snap.Entries[0].Code != "287082" {
		t.Errorf("Code = %s, want 287082", snap.Entries[0].Code)
	}
}

func TestTick_EmptyRecordList(t *testing.T) {
	s := newTestScheduler()
	now := time.Unix(1000, 0)

	if !s.Tick(now, nil) {
		t.Error("Tick() with no records should still commit a pass")
	}
	if s.Tick(now, nil) {
		t.Error("second Tick() in the same period should be a no-op")
	}
	if len(s.Snapshot().Entries) != 0 {
		t.Error("Snapshot() should be empty")
	}
}

func TestTick_IdempotentWithinPeriod(t *testing.T) {
	s := newTestScheduler()
	records := []secrets.Record{{Label: "a", Secret: "GIO32ZTF6KSJKNBG"}}

	s.Tick(time.Unix(60, 0), records)
	first := s.Snapshot().Entries[0].Code

	for sec := int64(61); sec <= 89; sec++ {
		if s.Tick(time.Unix(sec, 0), records) {
			t.Fatalf("Tick() at %d recomputed inside the same period", sec)
		}
	}
	if got := s.Snapshot().Entries[0].Code; got != first {
		t.Errorf("code changed within period: %s -> %s", first, got)
	}

	if !s.Tick(time.Unix(90, 0), records) {
		t.Fatal("Tick() at boundary should recompute")
	}
	if s.Snapshot().Period != 3 {
		t.Errorf("Period = %d, want 3", s.Snapshot().Period)
	}
}

func TestTick_RecoversAfterClockJump(t *testing.T) {
	s := newTestScheduler()
	records := []secrets.Record{{Label: "rfc", Secret: rfcSecret}}

	s.Tick(time.Unix(59, 0), records)
	jumped := time.Unix(1111111109, 0)
	if s.State(jumped) != Stale {
		t.Fatal("State() after a jump should be Stale")
	}
	if !s.Tick(jumped, records) {
		t.Fatal("Tick() after a jump should recompute")
	}
	if got := s.Snapshot().Entries[0].Code; got != "081804" {
		t.Errorf("Code = %s, want 081804", got)
	}
}

func TestOnStoreMutated_NewRecordInSamePeriod(t *testing.T) {
	s := newTestScheduler()
	now := time.Unix(1234567890, 0)

	records := []secrets.Record{{Label: "a", Secret: "JBSWY3DPEHPK3PXP"}}
	s.Tick(now, records)

	records = append(records, secrets.Record{Label: "rfc", Secret: rfcSecret})
	s.OnStoreMutated(now, records)

	snap := s.Snapshot()
	if len(snap.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(snap.Entries))
	}
	last := snap.Entries[1]
	if last.Index != 1 || last.Label != "rfc" || last.Code != "005924" || last.Err != nil {
		t.Errorf("new entry = %+v, want code 005924", last)
	}
	if s.State(now) != Fresh {
		t.Error("State() after OnStoreMutated should be Fresh")
	}
}

func TestRecompute_IsolatesFailures(t *testing.T) {
	s := newTestScheduler()
	now := time.Unix(59, 0)

	records := []secrets.Record{
		{Label: "good-1", Secret: rfcSecret},
		{Label: "empty", Secret: "===="},
		{Label: "junk", Secret: "!!!"},
		{Label: "good-2", Secret: rfcSecret},
	}
	s.OnStoreMutated(now, records)

	entries := s.Snapshot().Entries
	for _, i := range []int{0, 3} {
		if entries[i].Err != nil || entries[i].Code != "287082" {
			t.Errorf("entry %d = %+v, want code 287082", i, entries[i])
		}
	}
	for _, i := range []int{1, 2} {
		if !errors.Is(entries[i].Err, otp.ErrEmptyKey) {
			t.Errorf("entry %d err = %v, want ErrEmptyKey", i, entries[i].Err)
		}
		if entries[i].Code != "" {
			t.Errorf("entry %d has code %q despite error", i, entries[i].Code)
		}
	}
}

func TestRecompute_CryptoUnavailable(t *testing.T) {
	s := newTestScheduler(otp.WithHash(md5.New))
	s.OnStoreMutated(time.Unix(59, 0), []secrets.Record{{Label: "x", Secret: rfcSecret}})

	if err := s.Snapshot().Entries[0].Err; !errors.Is(err, otp.ErrCryptoUnavailable) {
		t.Errorf("Err = %v, want ErrCryptoUnavailable", err)
	}
}

func TestRecompute_StrictPolicy(t *testing.T) {
	s := newTestScheduler(otp.WithLeniency(otp.Strict))
	s.OnStoreMutated(time.Unix(59, 0), []secrets.Record{
		{Label: "bad", Secret: "GEZD!GNBV"},
		{Label: "ok", Secret: rfcSecret},
	})

	entries := s.Snapshot().Entries
	if !errors.Is(entries[0].Err, otp.ErrInvalidSecretFormat) {
		t.Errorf("Err = %v, want ErrInvalidSecretFormat", entries[0].Err)
	}
	if entries[1].Code != "287082" {
		t.Errorf("Code = %s, want 287082", entries[1].Code)
	}
}

func TestRecompute_PreEpoch(t *testing.T) {
	s := newTestScheduler()
	now := time.Unix(-5, 0)
	s.OnStoreMutated(now, []secrets.Record{{Label: "x", Secret: rfcSecret}})

	if err := s.Snapshot().Entries[0].Err; !errors.Is(err, otp.ErrInvalidTime) {
		t.Errorf("Err = %v, want ErrInvalidTime", err)
	}
	if s.State(now) != Stale {
		t.Error("State() for a pre-epoch clock should stay Stale")
	}
}

func TestRecompute_ParallelMatchesSequential(t *testing.T) {
	now := time.Unix(2000000000, 0)
	records := make([]secrets.Record, 50)
	for i := range records {
		records[i] = secrets.Record{Label: fmt.Sprintf("r%d", i), Secret: otp.Encode([]byte(fmt.Sprintf("key-%02d-0123456789", i)))}
	}

	parallel := New(otp.NewGenerator(), 16, logging.NewLogger(logging.LevelError))
	sequential := New(otp.NewGenerator(), 1, logging.NewLogger(logging.LevelError))
	parallel.OnStoreMutated(now, records)
	sequential.OnStoreMutated(now, records)

	p, q := parallel.Snapshot().Entries, sequential.Snapshot().Entries
	for i := range records {
		if p[i].Index != i || p[i] != q[i] {
			t.Errorf("entry %d: parallel %+v, sequential %+v", i, p[i], q[i])
		}
	}
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	s := newTestScheduler()
	s.OnStoreMutated(time.Unix(59, 0), []secrets.Record{{Label: "a", Secret: rfcSecret}})

	snap := s.Snapshot()
	snap.Entries[0].Code = "000000"
	if s.Snapshot().Entries[0].Code != "287082" {
		t.Error("Snapshot() exposes the internal slice")
	}
}

func TestSecondsUntilNextPeriodAndBoundary(t *testing.T) {
	s := newTestScheduler()
	tests := []struct {
		unix     int64
		want     int
		boundary int64
	}{
		{0, 30, 30},
		{1, 29, 30},
		{29, 1, 30},
		{30, 30, 60},
		{59, 1, 60},
		{1111111111, 29, 1111111140},
	}

	for _, tt := range tests {
		now := time.Unix(tt.unix, 0)
		if got := s.SecondsUntilNextPeriod(now); got != tt.want {
			t.Errorf("SecondsUntilNextPeriod(%d) = %d, want %d", tt.unix, got, tt.want)
		}
		if got := NextBoundary(now).Unix(); got != tt.boundary {
			t.Errorf("NextBoundary(%d) = %d, want %d", tt.unix, got, tt.boundary)
		}
	}
}
