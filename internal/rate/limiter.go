package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is a fixed-window budget: at most Max hits per Period.
type Window struct {
	Max    int
	Period time.Duration
}

// Limiter counts hits per key in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Limiter] whose keys all start with prefix.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Allow records one hit for key and returns [ErrRateLimited] once the hit count
// exceeds w.Max inside the current window.
func (l *Limiter) Allow(ctx context.Context, key string, w Window) error {
	if l == nil || l.redis == nil || w.Max <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.key(key), w.Period)
	if err != nil {
		return err
	}
	if count > int64(w.Max) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the window for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(key string) string {
	return l.prefix + ":" + key
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
