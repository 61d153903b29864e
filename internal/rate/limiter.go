package rate

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rl:"

// Decision is the outcome of a Check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RemainingSeconds returns RetryAfter rounded up to whole seconds.
func (d Decision) RemainingSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(d.RetryAfter.Seconds()))
}

// Limiter is a sliding-window attempt counter. Each key is a Redis sorted
// set whose members are attempts scored by their unix-millisecond time.
//
// A nil Limiter allows everything.
type Limiter struct {
	redis   redis.UniversalClient
	now     func() time.Time
	onError func(op, key string, err error)
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the limiter's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithErrorHook is called whenever Redis fails and the limiter falls open.
func WithErrorHook(fn func(op, key string, err error)) Option {
	return func(l *Limiter) {
		l.onError = fn
	}
}

// New creates a rate [Limiter] backed by the given Redis client. A nil
// client yields a nil limiter.
func New(redisClient redis.UniversalClient, opts ...Option) *Limiter {
	if redisClient == nil {
		return nil
	}
	l := &Limiter{
		redis:   redisClient,
		now:     time.Now,
		onError: func(string, string, error) {},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key joins a scope and identity into a limiter key.
func Key(scope, identity string) string {
	return keyPrefix + scope + ":" + identity
}

// Check reports whether another attempt on key is allowed given at most
// maxAttempts within the trailing window. Entries older than the window are
// pruned first. Redis failures allow the attempt.
func (l *Limiter) Check(ctx context.Context, key string, maxAttempts int, window time.Duration) Decision {
	if l == nil || maxAttempts <= 0 || window <= 0 {
		return Decision{Allowed: true}
	}

	now := l.now()
	var oldest *redis.ZSliceCmd
	var count *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff(now, window))
		count = pipe.ZCard(ctx, key)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		return nil
	})
	if err != nil {
		l.onError("check", key, fmt.Errorf("%w: %v", ErrRedisUnavailable, err))
		return Decision{Allowed: true}
	}

	if count.Val() < int64(maxAttempts) {
		return Decision{Allowed: true}
	}

	entries := oldest.Val()
	if len(entries) == 0 {
		return Decision{Allowed: true}
	}
	first := time.UnixMilli(int64(entries[0].Score))
	remaining := first.Add(window).Sub(now)
	if remaining <= 0 {
		return Decision{Allowed: true}
	}

	return Decision{Allowed: false, RetryAfter: remaining}
}

// Record appends an attempt on key, prunes entries outside the window and
// resets the key's expiry to window. Errors are wrapped in
// ErrRedisUnavailable; callers treat them as non-fatal.
func (l *Limiter) Record(ctx context.Context, key string, window time.Duration) error {
	if l == nil || window <= 0 {
		return nil
	}

	now := l.now()
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff(now, window))
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString(),
		})
		pipe.PExpire(ctx, key, window)
		return nil
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		l.onError("record", key, err)
		return err
	}
	return nil
}

// cutoff returns the exclusive lower score bound of the window ending at now.
func cutoff(now time.Time, window time.Duration) string {
	return "(" + strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
}
