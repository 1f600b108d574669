package ratelimit

import (
	"context"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		MaxRequestsPerMinute: 2,
		MaxRequestsPerHour:   100,
		MaxRequestsPerDay:    1000,
		BurstLimit:           5,
		RetryAfter:           10 * time.Millisecond,
	}
}

func TestCheckLimitMinuteCeiling(t *testing.T) {
	l := New(testConfig())

	if !l.CheckLimit("x") {
		t.Fatalf("first call should pass")
	}
	if !l.CheckLimit("x") {
		t.Fatalf("second call should pass")
	}
	if l.CheckLimit("x") {
		t.Fatalf("third call should be denied before any window reset")
	}
}

func TestDenialDoesNotIncrement(t *testing.T) {
	l := New(testConfig())
	l.CheckLimit("x")
	l.CheckLimit("x")

	for i := 0; i < 5; i++ {
		l.CheckLimit("x")
	}

	l.mu.Lock()
	c := l.tracked["x"]
	l.mu.Unlock()
	if c.minute != 2 || c.hour != 2 || c.day != 2 {
		t.Fatalf("denied calls must not increment counters, got %d/%d/%d", c.minute, c.hour, c.day)
	}
}

func TestUnseenIdentifiersAlwaysPassFirst(t *testing.T) {
	l := New(Config{MaxRequestsPerMinute: 1, MaxRequestsPerHour: 1, MaxRequestsPerDay: 1})
	for _, id := range []string{"a", "b", "c"} {
		if !l.CheckLimit(id) {
			t.Fatalf("first call for %q should pass", id)
		}
	}
}

func TestSweepResetsAdvancedWindows(t *testing.T) {
	l := New(testConfig())
	base := time.Date(2026, 8, 27, 10, 30, 59, 0, time.UTC)
	l.now = func() time.Time { return base }

	l.CheckLimit("x")
	l.CheckLimit("x")
	if l.CheckLimit("x") {
		t.Fatalf("expected denial at minute ceiling")
	}

	// minute bucket advances, hour and day do not
	base = base.Add(2 * time.Second)
	l.sweep(base)

	if !l.CheckLimit("x") {
		t.Fatalf("expected pass after minute reset")
	}
	l.mu.Lock()
	c := l.tracked["x"]
	l.mu.Unlock()
	if c.minute != 1 {
		t.Fatalf("expected minute counter reset to 1, got %d", c.minute)
	}
	if c.hour != 3 || c.day != 3 {
		t.Fatalf("hour/day counters must survive a minute reset, got %d/%d", c.hour, c.day)
	}
}

func TestSweepBeforeBoundaryIsNoop(t *testing.T) {
	l := New(testConfig())
	base := time.Date(2026, 8, 27, 10, 30, 10, 0, time.UTC)
	l.now = func() time.Time { return base }

	l.CheckLimit("x")
	l.sweep(base.Add(5 * time.Second)) // same minute

	l.mu.Lock()
	c := l.tracked["x"]
	l.mu.Unlock()
	if c.minute != 1 {
		t.Fatalf("sweep inside the same bucket must not reset, got %d", c.minute)
	}
}

func TestWaitForSlotDrainsQueue(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequestsPerMinute = 10
	l := New(cfg)
	l.batchPause = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() { errCh <- l.WaitForSlot(ctx, "q") }()
	}
	for i := 0; i < 8; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("waitForSlot failed: %v", err)
		}
	}

	if st := l.Stats(); st.QueueDepth != 0 {
		t.Fatalf("expected drained queue, got depth %d", st.QueueDepth)
	}
}

func TestWaitForSlotRetriesAfterDenial(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequestsPerMinute = 1
	l := New(cfg)
	l.batchPause = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := l.WaitForSlot(ctx, "r"); err != nil {
		t.Fatalf("first slot: %v", err)
	}

	// second request is denied until the minute counter resets
	done := make(chan error, 1)
	go func() { done <- l.WaitForSlot(ctx, "r") }()

	select {
	case err := <-done:
		t.Fatalf("expected request to stay queued, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	l.sweep(l.now().Add(2 * time.Minute))
	if err := <-done; err != nil {
		t.Fatalf("expected admission after reset, got %v", err)
	}
}

func TestWaitForSlotHonorsContext(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequestsPerMinute = 0 // never admit
	l := New(cfg)
	l.batchPause = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := l.WaitForSlot(ctx, "c"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestStats(t *testing.T) {
	l := New(testConfig())
	l.CheckLimit("a")
	l.CheckLimit("b")

	st := l.Stats()
	if st.TrackedIdentifiers != 2 {
		t.Fatalf("expected 2 tracked identifiers, got %d", st.TrackedIdentifiers)
	}
	if st.QueueDepth != 0 || st.DrainActive {
		t.Fatalf("expected idle queue, got %+v", st)
	}
}
