// Package cache provides a short-TTL read-through cache for task status
// polling. Entries are keyed by (taskID, ownerID) and deleted, not merely
// expired, whenever a task's status changes, so a poller never observes a
// cached pre-transition snapshot. The cache is never authoritative; the
// task store is the source of truth.
package cache

import (
	"sync"
	"time"

	"github.com/vidforge/vidforge-api/internal/task"
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

// key identifies one cached projection.
type key struct {
	taskID  string
	ownerID string
}

// entry is one cached task snapshot with its expiry.
type entry struct {
	task      *task.Task
	expiresAt time.Time
}

// StatusCache is a bounded, TTL-based cache of task projections.
// All methods are safe for concurrent use.
type StatusCache struct {
	mu         sync.Mutex
	entries    map[key]entry
	ttl        time.Duration
	maxEntries int
	clock      Clock
}

// Option is a function that configures a StatusCache.
type Option func(*StatusCache)

// WithClock injects a custom clock.
func WithClock(c Clock) Option {
	return func(sc *StatusCache) {
		sc.clock = c
	}
}

// WithMaxEntries bounds the number of cached projections.
func WithMaxEntries(n int) Option {
	return func(sc *StatusCache) {
		if n > 0 {
			sc.maxEntries = n
		}
	}
}

// New creates a StatusCache with the given entry TTL.
func New(ttl time.Duration, opts ...Option) *StatusCache {
	sc := &StatusCache{
		entries:    make(map[key]entry),
		ttl:        ttl,
		maxEntries: 10000,
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Get returns the cached projection for (taskID, ownerID) if present and
// unexpired. Expired entries are removed on read.
func (sc *StatusCache) Get(taskID, ownerID string) (*task.Task, bool) {
	k := key{taskID: taskID, ownerID: ownerID}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	e, ok := sc.entries[k]
	if !ok {
		return nil, false
	}
	if sc.clock.Now().After(e.expiresAt) {
		delete(sc.entries, k)
		return nil, false
	}
	return e.task.Clone(), true
}

// Set stores a task projection under its (taskID, ownerID) key.
func (sc *StatusCache) Set(t *task.Task) {
	k := key{taskID: t.TaskID, ownerID: t.OwnerID}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if len(sc.entries) >= sc.maxEntries {
		sc.evictLocked()
	}

	sc.entries[k] = entry{
		task:      t.Clone(),
		expiresAt: sc.clock.Now().Add(sc.ttl),
	}
}

// Invalidate deletes the entry for (taskID, ownerID). Callers invoke it
// synchronously with every status mutation.
func (sc *StatusCache) Invalidate(taskID, ownerID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.entries, key{taskID: taskID, ownerID: ownerID})
}

// Len returns the number of cached entries, expired ones included.
func (sc *StatusCache) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.entries)
}

// evictLocked drops expired entries, then the soonest-expiring entry if
// the cache is still full. Caller must hold the lock.
func (sc *StatusCache) evictLocked() {
	now := sc.clock.Now()
	for k, e := range sc.entries {
		if now.After(e.expiresAt) {
			delete(sc.entries, k)
		}
	}
	if len(sc.entries) < sc.maxEntries {
		return
	}

	var (
		oldestKey key
		oldestAt  time.Time
		found     bool
	)
	for k, e := range sc.entries {
		if !found || e.expiresAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.expiresAt
			found = true
		}
	}
	if found {
		delete(sc.entries, oldestKey)
	}
}
