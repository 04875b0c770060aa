package gantry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BucketLimitStore is a token-bucket LimitStore over x/time/rate, one
// limiter per key. Unlike the fixed-window stores it smooths admissions
// across the window instead of allowing a burst at each window boundary.
// The fixed-window stores remain the default; this one is opt-in for
// callers that prefer smoothing.
//
// The refill rate is derived from the first Limit seen for a key
// (MaxAttempts per Window, burst MaxAttempts); later Limit values for the
// same key are ignored until the janitor evicts the idle limiter.
type BucketLimitStore struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry
	idleTTL time.Duration
	now     func() time.Time
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewBucketLimitStore creates an empty token-bucket limit store.
func NewBucketLimitStore() *BucketLimitStore {
	return &BucketLimitStore{
		entries: make(map[string]*bucketEntry),
		idleTTL: 15 * time.Minute,
		now:     time.Now,
	}
}

// WithIdleTTL overrides how long an unused key's limiter survives before the
// janitor evicts it, and returns the store for chaining.
func (s *BucketLimitStore) WithIdleTTL(ttl time.Duration) *BucketLimitStore {
	s.idleTTL = ttl
	return s
}

// WithClock overrides the time source and returns the store for chaining.
func (s *BucketLimitStore) WithClock(now func() time.Time) *BucketLimitStore {
	s.now = now
	return s
}

// Admit implements LimitStore. rate.Limiter serializes its own
// reservations, so per-key atomicity holds without a lock across the
// reservation itself.
func (s *BucketLimitStore) Admit(_ context.Context, key string, limit Limit) (Admission, error) {
	now := s.now()
	lim := s.limiterFor(key, limit, now)

	reservation := lim.ReserveN(now, 1)
	if !reservation.OK() {
		return Admission{Allowed: false, RetryAfter: limit.Window}, nil
	}

	delay := reservation.DelayFrom(now)
	if delay > 0 {
		// Not admissible right now: cancel so the failed attempt does not
		// consume a token the caller never used.
		reservation.CancelAt(now)
		return Admission{Allowed: false, RetryAfter: delay}, nil
	}

	return Admission{Allowed: true, Remaining: int(lim.TokensAt(now))}, nil
}

// Reset implements LimitStore.
func (s *BucketLimitStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	return nil
}

func (s *BucketLimitStore) limiterFor(key string, limit Limit, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok {
		entry.lastSeen = now
		return entry.lim
	}

	every := limit.Window / time.Duration(limit.MaxAttempts)
	lim := rate.NewLimiter(rate.Every(every), limit.MaxAttempts)
	s.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

// Sweep removes limiters unused for longer than the idle TTL.
func (s *BucketLimitStore) Sweep() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}

// StartJanitor sweeps idle limiters every interval until ctx is canceled.
func (s *BucketLimitStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

var _ LimitStore = (*BucketLimitStore)(nil)
