package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authform/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSubmitRateLimited = errors.New("form submit rate limited")
	ErrSubmitUnavailable = errors.New("form submit limiter unavailable")
)

type SubmitConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxAttempts              int
	Cooldown                 time.Duration
}

// SubmitLimiter bounds form submissions per mode, keyed by the normalized email
// and the client IP.
type SubmitLimiter struct {
	limiter *rate.Limiter
	config  SubmitConfig
}

func NewSubmitLimiter(redisClient redis.UniversalClient, cfg SubmitConfig) *SubmitLimiter {
	return &SubmitLimiter{
		limiter: rate.New(redisClient, "afs"),
		config:  cfg,
	}
}

func (l *SubmitLimiter) Enforce(ctx context.Context, mode, email, ip string) error {
	if l == nil {
		return nil
	}

	w := rate.Window{Max: l.config.MaxAttempts, Period: l.config.Cooldown}
	if l.config.EnableIdentifierThrottle && email != "" {
		if err := translate(l.limiter.Allow(ctx, mode+":e:"+email, w), ErrSubmitRateLimited, ErrSubmitUnavailable); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := translate(l.limiter.Allow(ctx, mode+":ip:"+ip, w), ErrSubmitRateLimited, ErrSubmitUnavailable); err != nil {
			return err
		}
	}
	return nil
}

// Clear drops the per-email window for mode. The IP window is left alone.
func (l *SubmitLimiter) Clear(ctx context.Context, mode, email string) error {
	if l == nil || !l.config.EnableIdentifierThrottle || email == "" {
		return nil
	}
	if err := l.limiter.Reset(ctx, mode+":e:"+email); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitUnavailable, err)
	}
	return nil
}

func translate(err, limited, unavailable error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return limited
	default:
		return fmt.Errorf("%w: %v", unavailable, err)
	}
}
