package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authform/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLookupRateLimited = errors.New("email lookup rate limited")
	ErrLookupUnavailable = errors.New("email lookup limiter unavailable")
)

type LookupConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Window                   time.Duration
}

// LookupLimiter bounds blur-time availability lookups across forms, keyed by the
// normalized email and the client IP.
type LookupLimiter struct {
	limiter *rate.Limiter
	config  LookupConfig
}

func NewLookupLimiter(redisClient redis.UniversalClient, cfg LookupConfig) *LookupLimiter {
	return &LookupLimiter{
		limiter: rate.New(redisClient, "afl"),
		config:  cfg,
	}
}

func (l *LookupLimiter) Enforce(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}

	w := rate.Window{Max: l.config.MaxAttempts, Period: l.config.Window}
	if l.config.EnableIdentifierThrottle && email != "" {
		if err := translate(l.limiter.Allow(ctx, "e:"+email, w), ErrLookupRateLimited, ErrLookupUnavailable); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := translate(l.limiter.Allow(ctx, "ip:"+ip, w), ErrLookupRateLimited, ErrLookupUnavailable); err != nil {
			return err
		}
	}
	return nil
}
