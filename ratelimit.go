package gantry

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"
)

// ErrStoreUnavailable indicates the rate limit store's backend could not be
// reached. It is not a recognized rejection kind: the classifier collapses it
// to KindInternal.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// Limit bounds the number of admitted attempts per key within a window.
type Limit struct {
	MaxAttempts int
	Window      time.Duration
}

// Admission is the outcome of a single Admit call.
type Admission struct {
	Allowed    bool
	Remaining  int           // Attempts left in the current window, 0 when rejected.
	RetryAfter time.Duration // Time until the window resets, positive only when rejected.
}

// LimitStore tracks attempt counts per key and admits or rejects.
// Implementations must guarantee read-modify-write atomicity per key: two
// concurrent Admit calls for the same key must never both observe the same
// pre-update count. Independent keys must not block each other.
type LimitStore interface {
	// Admit records an attempt for key and reports whether it is within the
	// limit. Every call counts, including rejected ones.
	Admit(ctx context.Context, key string, limit Limit) (Admission, error)

	// Reset clears the counter for key, starting a fresh window on the next
	// attempt.
	Reset(ctx context.Context, key string) error
}

// purgeGrace is how long an expired record survives before the janitor may
// collect it.
const purgeGrace = time.Minute

// memoryShardCount must be a power of two.
const memoryShardCount = 64

type limitRecord struct {
	count       int
	windowStart time.Time
	windowEnd   time.Time
}

type limitShard struct {
	mu      sync.Mutex
	records map[string]*limitRecord
}

// MemoryLimitStore is an in-process fixed-window LimitStore. Records are
// sharded by key hash so admits for independent keys contend only within a
// shard, never on a table-wide lock. Expired records are reset lazily on the
// next access to their key; StartJanitor adds a periodic sweep.
type MemoryLimitStore struct {
	shards [memoryShardCount]limitShard
	now    func() time.Time
}

// NewMemoryLimitStore creates an empty in-process limit store.
func NewMemoryLimitStore() *MemoryLimitStore {
	s := &MemoryLimitStore{now: time.Now}
	for i := range s.shards {
		s.shards[i].records = make(map[string]*limitRecord)
	}
	return s
}

// WithClock overrides the time source and returns the store for chaining.
func (s *MemoryLimitStore) WithClock(now func() time.Time) *MemoryLimitStore {
	s.now = now
	return s
}

func (s *MemoryLimitStore) shardFor(key string) *limitShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.shards[h.Sum32()&(memoryShardCount-1)]
}

// Admit implements LimitStore. The read-increment-compare sequence runs
// under the shard lock, so concurrent admits for the same key serialize.
func (s *MemoryLimitStore) Admit(_ context.Context, key string, limit Limit) (Admission, error) {
	now := s.now()
	shard := s.shardFor(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	rec, ok := shard.records[key]
	if !ok || !now.Before(rec.windowEnd) {
		// Absent or elapsed window: fresh record, first attempt admitted.
		shard.records[key] = &limitRecord{
			count:       1,
			windowStart: now,
			windowEnd:   now.Add(limit.Window),
		}
		return Admission{Allowed: true, Remaining: limit.MaxAttempts - 1}, nil
	}

	rec.count++
	if rec.count <= limit.MaxAttempts {
		return Admission{Allowed: true, Remaining: limit.MaxAttempts - rec.count}, nil
	}

	return Admission{
		Allowed:    false,
		RetryAfter: rec.windowEnd.Sub(now),
	}, nil
}

// Reset implements LimitStore.
func (s *MemoryLimitStore) Reset(_ context.Context, key string) error {
	shard := s.shardFor(key)

	shard.mu.Lock()
	delete(shard.records, key)
	shard.mu.Unlock()

	return nil
}

// Sweep removes records whose window elapsed more than the grace period ago.
func (s *MemoryLimitStore) Sweep() {
	cutoff := s.now().Add(-purgeGrace)

	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		for key, rec := range shard.records {
			if rec.windowEnd.Before(cutoff) {
				delete(shard.records, key)
			}
		}
		shard.mu.Unlock()
	}
}

// StartJanitor sweeps expired records every interval until ctx is canceled.
func (s *MemoryLimitStore) StartJanitor(ctx context.Context, interval time.Duration) {
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
