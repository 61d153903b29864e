package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rv:"

// ErrRedisUnavailable wraps any Redis failure seen by the denylist.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store is a Redis denylist of session token ids. Entries expire together
// with the token they revoke. A nil Store never reports a revocation.
type Store struct {
	redis redis.UniversalClient
	now   func() time.Time
}

// New creates a denylist backed by redisClient. A nil client yields a nil Store.
func New(redisClient redis.UniversalClient, now func() time.Time) *Store {
	if redisClient == nil {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &Store{redis: redisClient, now: now}
}

// Revoke denylists tokenID until expiresAt. Tokens that already expired
// are ignored.
func (s *Store) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s == nil || tokenID == "" {
		return nil
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, keyPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether tokenID is denylisted.
func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s == nil || tokenID == "" {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
