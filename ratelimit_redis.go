package gantry

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimitStore is a fixed-window LimitStore backed by Redis counters,
// suitable when admission must be shared across processes. Per-key atomicity
// comes from INCR: every Admit is a single atomic increment, so concurrent
// callers can never observe the same pre-update count.
type RedisLimitStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLimitStore creates a LimitStore over the given Redis client.
// Keys are namespaced under "gantry:rl:".
func NewRedisLimitStore(client redis.UniversalClient) *RedisLimitStore {
	return &RedisLimitStore{
		client: client,
		prefix: "gantry:rl:",
	}
}

// WithPrefix overrides the key namespace and returns the store for chaining.
func (s *RedisLimitStore) WithPrefix(prefix string) *RedisLimitStore {
	s.prefix = prefix
	return s
}

// Admit implements LimitStore.
func (s *RedisLimitStore) Admit(ctx context.Context, key string, limit Limit) (Admission, error) {
	redisKey := s.prefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Admission{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set only for the first hit in the
	// window. Expiry in Redis doubles as the purge of stale records.
	if count == 1 {
		if err := s.client.PExpire(ctx, redisKey, limit.Window).Err(); err != nil {
			return Admission{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if count <= int64(limit.MaxAttempts) {
		return Admission{Allowed: true, Remaining: limit.MaxAttempts - int(count)}, nil
	}

	retryAfter, err := s.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Admission{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if retryAfter < 0 {
		// Key exists without TTL (e.g., a racing expiry). Report the full
		// window rather than admitting for free.
		retryAfter = limit.Window
	}

	return Admission{Allowed: false, RetryAfter: retryAfter}, nil
}

// Reset implements LimitStore.
func (s *RedisLimitStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

var _ LimitStore = (*RedisLimitStore)(nil)
