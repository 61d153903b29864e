package donorhub

import (
	"context"
	"errors"
	"testing"
	"time"
)

const (
	aliceEmail    = "alice@example.org"
	alicePassword = "correct-password-123"
)

func TestLoginSuccessReturnsProfileAndToken(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)

	res, err := h.engine.Login(context.Background(), "  Alice@Example.org ", alicePassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected session token")
	}
	if res.User.Email != aliceEmail || res.User.Name != "Alice" {
		t.Fatalf("unexpected profile: %+v", res.User)
	}
	if want := h.clock.Now().Add(24 * time.Hour); !res.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, res.ExpiresAt)
	}

	id, err := h.engine.ValidateToken(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if id.Email != aliceEmail || id.Name != "Alice" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestLoginUnknownEmailIsPlainInvalidCredentials(t *testing.T) {
	h := newEngineHarness(t, testConfig())

	_, err := h.engine.Login(context.Background(), "nobody@example.org", "whatever-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	var attempts *InvalidCredentialsError
	if errors.As(err, &attempts) {
		t.Fatal("unknown email must not report remaining attempts")
	}
}

func TestLoginRejectsEmptyFields(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	if _, err := h.engine.Login(context.Background(), "", "x"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := h.engine.Login(context.Background(), aliceEmail, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestLoginWrongPasswordReportsRemainingAttempts(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)
	ctx := context.Background()

	for want := 2; want >= 1; want-- {
		_, err := h.engine.Login(ctx, aliceEmail, "wrong-password")
		var attempts *InvalidCredentialsError
		if !errors.As(err, &attempts) {
			t.Fatalf("expected *InvalidCredentialsError, got %v", err)
		}
		if attempts.AttemptsRemaining != want {
			t.Fatalf("expected %d attempts remaining, got %d", want, attempts.AttemptsRemaining)
		}
	}
	if got := h.account(t, aliceEmail).FailedAttempts; got != 2 {
		t.Fatalf("expected failedAttempts=2, got %d", got)
	}
}

func TestLoginThirdFailureLocksForFifteenMinutes(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = h.engine.Login(ctx, aliceEmail, "wrong-password")
	}

	_, err := h.engine.Login(ctx, aliceEmail, "wrong-password")
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected *AccountLockedError, got %v", err)
	}
	if !locked.JustLocked || locked.RemainingMinutes() != 15 {
		t.Fatalf("unexpected lock error: %+v", locked)
	}

	acct := h.account(t, aliceEmail)
	if acct.FailedAttempts != 3 {
		t.Fatalf("expected failedAttempts=3, got %d", acct.FailedAttempts)
	}
	if acct.LockedUntil == nil || !acct.LockedUntil.Equal(h.clock.Now().Add(15*time.Minute)) {
		t.Fatalf("expected lockedUntil=now+15m, got %v", acct.LockedUntil)
	}
}

func TestLoginLockedAccountRejectsCorrectPassword(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = h.engine.Login(ctx, aliceEmail, "wrong-password")
	}
	h.clock.Advance(5*time.Minute + 30*time.Second)

	_, err := h.engine.Login(ctx, aliceEmail, alicePassword)
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected *AccountLockedError, got %v", err)
	}
	if locked.JustLocked {
		t.Fatal("active lock must not be reported as newly set")
	}
	if locked.RemainingMinutes() != 10 {
		t.Fatalf("expected 10 minutes remaining (rounded up), got %d", locked.RemainingMinutes())
	}
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatal("lock error must match ErrAccountLocked")
	}
}

func TestLoginSuccessClearsFailedAttempts(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = h.engine.Login(ctx, aliceEmail, "wrong-password")
	}
	if _, err := h.engine.Login(ctx, aliceEmail, alicePassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	acct := h.account(t, aliceEmail)
	if acct.FailedAttempts != 0 || acct.LockedUntil != nil {
		t.Fatalf("expected cleared lockout state, got failed=%d lockedUntil=%v", acct.FailedAttempts, acct.LockedUntil)
	}
}

func TestLoginLapsedLockResetsCounter(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	h := newEngineHarness(t, cfg)
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = h.engine.Login(ctx, aliceEmail, "wrong-password")
	}
	h.clock.Advance(16 * time.Minute)

	_, err := h.engine.Login(ctx, aliceEmail, "wrong-password")
	var attempts *InvalidCredentialsError
	if !errors.As(err, &attempts) {
		t.Fatalf("expected *InvalidCredentialsError after lapsed lock, got %v", err)
	}
	if attempts.AttemptsRemaining != 2 {
		t.Fatalf("expected counter to restart, got %d remaining", attempts.AttemptsRemaining)
	}

	acct := h.account(t, aliceEmail)
	if acct.FailedAttempts != 1 || acct.LockedUntil != nil {
		t.Fatalf("expected failed=1 and no lock, got failed=%d lockedUntil=%v", acct.FailedAttempts, acct.LockedUntil)
	}

	if _, err := h.engine.Login(ctx, aliceEmail, alicePassword); err != nil {
		t.Fatalf("login after lapsed lock failed: %v", err)
	}
}

func TestLoginRehashesWhenCostRaised(t *testing.T) {
	cfg := testConfig()
	cfg.Password.Cost = 5
	h := newEngineHarness(t, cfg)
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)

	before := h.account(t, aliceEmail).HashedPassword
	if _, err := h.engine.Login(context.Background(), aliceEmail, alicePassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	after := h.account(t, aliceEmail).HashedPassword
	if before == after {
		t.Fatal("expected password to be rehashed at the higher cost")
	}
	if needs, _ := h.engine.passwords.NeedsUpgrade(after); needs {
		t.Fatal("rehashed password still needs upgrade")
	}
}

func TestLoginRateLimitedByClientIP(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.MaxAttempts = 2
	h := newEngineHarness(t, cfg)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	for i := 0; i < 2; i++ {
		_, err := h.engine.Login(ctx, "ghost@example.org", "wrong-password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := h.engine.Login(ctx, "other@example.org", "wrong-password")
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("expected *RateLimitedError, got %v", err)
	}
	if limited.Scope != "login" || limited.RemainingMinutes() != 60 {
		t.Fatalf("unexpected rate limit error: %+v", limited)
	}

	other := WithClientIP(context.Background(), "203.0.113.8")
	if _, err := h.engine.Login(other, "ghost@example.org", "wrong-password"); errors.Is(err, ErrRateLimited) {
		t.Fatal("a different client must have its own budget")
	}
}

func TestLoginFailsOpenWhenRedisDown(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)
	h.redis.Close()

	if _, err := h.engine.Login(context.Background(), aliceEmail, alicePassword); err != nil {
		t.Fatalf("expected login to succeed with limiter down, got %v", err)
	}
	if h.engine.MetricsSnapshot().Counters[MetricRateLimitFailOpen] == 0 {
		t.Fatal("expected fail-open to be counted")
	}
}

func TestRateLimitOutageCountedOncePerCall(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)
	h.redis.Close()

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if _, err := h.engine.Login(ctx, aliceEmail, "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// one failed Check and one failed Record
	if got := h.engine.MetricsSnapshot().Counters[MetricRateLimitFailOpen]; got != 2 {
		t.Fatalf("expected 2 fail-open events, got %d", got)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)
	ctx := context.Background()

	res, err := h.engine.Login(ctx, aliceEmail, alicePassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	h.engine.Logout(ctx, res.Token)

	if _, err := h.engine.ValidateToken(ctx, res.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}

func TestLogoutToleratesGarbage(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.engine.Logout(context.Background(), "")
	h.engine.Logout(context.Background(), "not-a-token")
	if h.engine.MetricsSnapshot().Counters[MetricLogout] != 2 {
		t.Fatal("expected both logout calls to be counted")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)

	res, err := h.engine.Login(context.Background(), aliceEmail, alicePassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	h.clock.Advance(24*time.Hour + time.Second)

	if _, err := h.engine.ValidateToken(context.Background(), res.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestValidateTokenAllowsWhenDenylistDown(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)

	res, err := h.engine.Login(context.Background(), aliceEmail, alicePassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	h.redis.Close()

	if _, err := h.engine.ValidateToken(context.Background(), res.Token); err != nil {
		t.Fatalf("expected validation to fail open, got %v", err)
	}
}

func TestProfileUnknownUser(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	if _, err := h.engine.Profile(context.Background(), "ghost@example.org"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
