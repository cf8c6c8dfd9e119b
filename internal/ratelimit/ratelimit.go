// Package ratelimit implements a process-local sliding-window request
// limiter. Counters live only in this instance's memory: horizontally scaled
// deployments rate-limit independently per instance, which is an accepted
// tradeoff, not a bug.
package ratelimit

import (
	"sort"
	"sync"
	"time"
)

// Default limiter sizing.
const (
	// DefaultMaxEntries caps the number of tracked keys.
	DefaultMaxEntries = 10000
	// DefaultCleanupInterval bounds how often expired entries are swept.
	DefaultCleanupInterval = time.Minute
)

// Result is the outcome of a limit check.
type Result struct {
	Allowed    bool          // Whether the request may proceed.
	Remaining  int           // Requests left in the current window.
	RetryAfter time.Duration // Wait time before the window resets; zero when allowed.
}

// entry tracks one key's current window.
type entry struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window counter keyed by arbitrary strings (client IPs,
// user ids). Construct one per process and share it across handlers; tests
// construct isolated instances with a fake clock.
type Limiter struct {
	mu          sync.Mutex
	entries     map[string]entry
	maxEntries  int
	cleanupGap  time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the limiter's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithMaxEntries overrides the tracked-key cap.
func WithMaxEntries(max int) Option {
	return func(l *Limiter) {
		if max > 0 {
			l.maxEntries = max
		}
	}
}

// WithCleanupInterval overrides the minimum gap between sweeps.
func WithCleanupInterval(gap time.Duration) Option {
	return func(l *Limiter) {
		if gap > 0 {
			l.cleanupGap = gap
		}
	}
}

// New constructs a Limiter with the given options.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries:    make(map[string]entry),
		maxEntries: DefaultMaxEntries,
		cleanupGap: DefaultCleanupInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastCleanup = l.now()
	return l
}

// Check records one request for key and reports whether it is allowed under
// maxRequests per window. The first request of a window always passes; once
// the count reaches maxRequests further requests are rejected until the
// window resets.
func (l *Limiter) Check(key string, maxRequests int, window time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeCleanup(now)

	e, ok := l.entries[key]
	if !ok || e.resetAt.Before(now) {
		l.entries[key] = entry{count: 1, resetAt: now.Add(window)}
		return Result{Allowed: true, Remaining: maxRequests - 1}
	}

	if e.count >= maxRequests {
		return Result{Allowed: false, Remaining: 0, RetryAfter: e.resetAt.Sub(now)}
	}

	e.count++
	l.entries[key] = e
	return Result{Allowed: true, Remaining: maxRequests - e.count}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// maybeCleanup sweeps expired entries at most once per cleanup interval and
// evicts the entries nearest to expiry when the store exceeds its cap.
// Caller must hold the mutex.
func (l *Limiter) maybeCleanup(now time.Time) {
	if now.Sub(l.lastCleanup) >= l.cleanupGap {
		l.lastCleanup = now
		for key, e := range l.entries {
			if e.resetAt.Before(now) {
				delete(l.entries, key)
			}
		}
	}

	if len(l.entries) < l.maxEntries {
		return
	}

	type keyed struct {
		key     string
		resetAt time.Time
	}
	ordered := make([]keyed, 0, len(l.entries))
	for key, e := range l.entries {
		ordered = append(ordered, keyed{key: key, resetAt: e.resetAt})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].resetAt.Before(ordered[j].resetAt)
	})
	for _, item := range ordered {
		if len(l.entries) < l.maxEntries {
			break
		}
		delete(l.entries, item.key)
	}
}
