package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

// fakeClock is a controllable time source for limiter tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(opts ...Option) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(opts...), clock
}

func TestCheckAllowsUpToLimitThenRejects(t *testing.T) {
	limiter, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		result := limiter.Check("ip:1.2.3.4", 5, time.Minute)
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if result.Remaining != 5-(i+1) {
			t.Fatalf("request %d remaining = %d, want %d", i+1, result.Remaining, 5-(i+1))
		}
	}

	result := limiter.Check("ip:1.2.3.4", 5, time.Minute)
	if result.Allowed {
		t.Fatalf("6th request in window should be rejected")
	}
	if result.RetryAfter <= 0 {
		t.Fatalf("rejected request must carry a positive retry-after, got %v", result.RetryAfter)
	}
}

func TestCheckStartsFreshWindowAfterExpiry(t *testing.T) {
	limiter, clock := newTestLimiter()

	for i := 0; i < 3; i++ {
		limiter.Check("k", 3, time.Minute)
	}
	if limiter.Check("k", 3, time.Minute).Allowed {
		t.Fatalf("limit should be exhausted")
	}

	clock.Advance(time.Minute + time.Second)

	result := limiter.Check("k", 3, time.Minute)
	if !result.Allowed {
		t.Fatalf("request after window expiry should be allowed")
	}
	if result.Remaining != 2 {
		t.Fatalf("fresh window remaining = %d, want 2", result.Remaining)
	}
}

func TestCheckKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter()

	for i := 0; i < 2; i++ {
		limiter.Check("a", 2, time.Minute)
	}
	if limiter.Check("a", 2, time.Minute).Allowed {
		t.Fatalf("key a should be exhausted")
	}
	if !limiter.Check("b", 2, time.Minute).Allowed {
		t.Fatalf("key b must not be affected by key a")
	}
}

func TestCleanupRemovesExpiredEntries(t *testing.T) {
	limiter, clock := newTestLimiter(WithCleanupInterval(time.Minute))

	for i := 0; i < 10; i++ {
		limiter.Check(fmt.Sprintf("k%d", i), 5, 30*time.Second)
	}
	if limiter.Len() != 10 {
		t.Fatalf("expected 10 tracked keys, got %d", limiter.Len())
	}

	clock.Advance(2 * time.Minute)
	limiter.Check("fresh", 5, 30*time.Second)

	if limiter.Len() != 1 {
		t.Fatalf("expected expired entries to be swept, got %d keys", limiter.Len())
	}
}

func TestEvictionKeepsStoreBounded(t *testing.T) {
	limiter, clock := newTestLimiter(WithMaxEntries(100), WithCleanupInterval(time.Hour))

	// Later keys get later reset times, so eviction should drop the earliest.
	for i := 0; i < 150; i++ {
		limiter.Check(fmt.Sprintf("ip:%d", i), 5, time.Hour)
		clock.Advance(time.Millisecond)
	}

	if limiter.Len() > 100 {
		t.Fatalf("store size %d exceeds cap 100", limiter.Len())
	}

	// The newest key must have survived eviction.
	result := limiter.Check("ip:149", 5, time.Hour)
	if result.Remaining != 3 {
		t.Fatalf("newest key should retain its window count, remaining = %d", result.Remaining)
	}
}
