package rate

import "errors"

var (
	// ErrRedisUnavailable wraps any Redis failure seen by the limiter.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
