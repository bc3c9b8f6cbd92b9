package rate

import "errors"

var (
	// ErrRateLimited is returned when a window's budget is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any Redis failure while counting.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
