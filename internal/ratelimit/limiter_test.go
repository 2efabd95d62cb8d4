package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

// fakeClock is a manually advanced Clock for deterministic window tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestFixedWindowLimiter_Allow(t *testing.T) {
	clock := newFakeClock()
	l := NewFixedWindow(3, time.Minute, WithClock(clock))

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected below the limit", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("request allowed past the limit within the window")
	}
}

func TestFixedWindowLimiter_PerKey(t *testing.T) {
	l := NewFixedWindow(1, time.Minute)

	if !l.Allow("10.0.0.1") {
		t.Fatal("first request for key rejected")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("one key's traffic throttled another key")
	}
	if l.Allow("10.0.0.1") {
		t.Error("second request for exhausted key allowed")
	}
}

func TestFixedWindowLimiter_WindowRollover(t *testing.T) {
	clock := newFakeClock()
	l := NewFixedWindow(2, time.Minute, WithClock(clock))

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("requests rejected below the limit")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("request allowed past the limit")
	}

	// Just short of the boundary the window still holds.
	clock.Advance(59 * time.Second)
	if l.Allow("10.0.0.1") {
		t.Error("request allowed before the window rolled over")
	}

	clock.Advance(time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("request rejected after the window rolled over")
	}
}

func TestFixedWindowLimiter_BoundedUnderFreshKeyFlood(t *testing.T) {
	clock := newFakeClock()
	l := NewFixedWindow(5, time.Minute, WithClock(clock), WithMaxKeys(10))

	// Many distinct sources inside a single window, so no tracked window
	// ever goes stale.
	for i := 0; i < 100; i++ {
		if !l.Allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256)) {
			t.Fatalf("first request for source %d rejected", i)
		}
	}

	l.mu.Lock()
	tracked := len(l.windows)
	l.mu.Unlock()
	if tracked > 10 {
		t.Errorf("tracked %d keys, want at most the configured bound of 10", tracked)
	}
}

func TestFixedWindowLimiter_EvictsOldestWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewFixedWindow(5, time.Minute, WithClock(clock), WithMaxKeys(2))

	l.Allow("10.0.0.1")
	clock.Advance(time.Second)
	l.Allow("10.0.0.2")
	clock.Advance(time.Second)

	// Both windows are fresh; the oldest one makes room.
	if !l.Allow("10.0.0.3") {
		t.Fatal("fresh key rejected at the bound")
	}

	l.mu.Lock()
	_, oldest := l.windows["10.0.0.1"]
	_, newer := l.windows["10.0.0.2"]
	_, newest := l.windows["10.0.0.3"]
	l.mu.Unlock()

	if oldest {
		t.Error("oldest window survived eviction")
	}
	if !newer || !newest {
		t.Error("eviction removed more than the oldest window")
	}
}

func TestFixedWindowLimiter_SweepsStaleKeys(t *testing.T) {
	clock := newFakeClock()
	l := NewFixedWindow(1, time.Minute, WithClock(clock), WithMaxKeys(5))

	for i := 0; i < 5; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i))
	}

	// All tracked windows are stale by now; a new key triggers the sweep
	// instead of growing the map.
	clock.Advance(2 * time.Minute)
	if !l.Allow("10.0.1.1") {
		t.Fatal("fresh key rejected")
	}

	l.mu.Lock()
	tracked := len(l.windows)
	l.mu.Unlock()
	if tracked != 1 {
		t.Errorf("tracked %d keys after sweep, want 1", tracked)
	}
}
