// Package ratelimit provides a fixed-window request limiter keyed by
// source address, used to shield the webhook endpoint from request storms.
// The clock is injected so the window logic is testable deterministically.
package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// systemClock is the production Clock backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }

// window tracks request counts for one key within the current fixed window.
type window struct {
	start time.Time
	count int
}

// FixedWindowLimiter allows up to limit requests per key per window.
// State is bounded: at maxKeys, stale windows are swept and, failing that,
// the oldest window is evicted. All methods are safe for concurrent use.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	limit   int
	size    time.Duration
	maxKeys int
	clock   Clock
}

// Option is a function that configures a FixedWindowLimiter.
type Option func(*FixedWindowLimiter)

// WithClock injects a custom clock.
func WithClock(c Clock) Option {
	return func(l *FixedWindowLimiter) {
		l.clock = c
	}
}

// WithMaxKeys bounds the number of tracked source keys.
func WithMaxKeys(n int) Option {
	return func(l *FixedWindowLimiter) {
		if n > 0 {
			l.maxKeys = n
		}
	}
}

// NewFixedWindow creates a limiter allowing limit requests per window per key.
func NewFixedWindow(limit int, windowSize time.Duration, opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		windows: make(map[string]window),
		limit:   limit,
		size:    windowSize,
		maxKeys: 10000,
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether a request from the given key may proceed, and
// counts it if so. Requests beyond the limit within the current window
// are rejected until the window rolls over.
func (l *FixedWindowLimiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.size {
		if !ok && len(l.windows) >= l.maxKeys {
			l.evictLocked(now)
		}
		l.windows[key] = window{start: now, count: 1}
		return true
	}

	if w.count >= l.limit {
		return false
	}

	w.count++
	l.windows[key] = w
	return true
}

// evictLocked drops stale windows, then the oldest window if the map is
// still at the bound, so the key set never grows past maxKeys. Caller must
// hold the lock.
func (l *FixedWindowLimiter) evictLocked(now time.Time) {
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.size {
			delete(l.windows, k)
		}
	}
	if len(l.windows) < l.maxKeys {
		return
	}

	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, w := range l.windows {
		if !found || w.start.Before(oldestAt) {
			oldestKey = k
			oldestAt = w.start
			found = true
		}
	}
	if found {
		delete(l.windows, oldestKey)
	}
}
