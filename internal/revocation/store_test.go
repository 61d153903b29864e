package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, nil), mr
}

func TestRevokeAndExpire(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := s.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v err=%v", revoked, err)
	}

	mr.FastForward(time.Hour + time.Second)
	revoked, err = s.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected entry to expire, got %v err=%v", revoked, err)
	}
}

func TestRevokeIgnoresExpiredToken(t *testing.T) {
	s, mr := newTestStore(t)
	if err := s.Revoke(context.Background(), "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if mr.Exists(keyPrefix + "old") {
		t.Fatal("expired token should not be stored")
	}
}

func TestRedisFailureIsWrapped(t *testing.T) {
	s, mr := newTestStore(t)
	mr.SetError("boom")

	if _, err := s.IsRevoked(context.Background(), "x"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestNilStore(t *testing.T) {
	var s *Store
	if err := s.Revoke(context.Background(), "x", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("nil revoke: %v", err)
	}
	if revoked, err := s.IsRevoked(context.Background(), "x"); revoked || err != nil {
		t.Fatalf("nil store must not report revocations")
	}
}
