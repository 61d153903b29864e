package donorhub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/donorhub/account"
)

func registerBob(t *testing.T, h *engineHarness) string {
	t.Helper()
	if _, err := h.engine.Register(context.Background(), RegisterRequest{
		Email:    "bob@example.org",
		Password: "a-long-password",
		Name:     "Bob",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return h.mailer.last(t, "verify").token
}

func TestVerifyEmail(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	token := registerBob(t, h)

	res, err := h.engine.VerifyEmail(context.Background(), token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if res.Email != "bob@example.org" || res.AlreadyVerified {
		t.Fatalf("unexpected verify result: %+v", res)
	}

	acct := h.account(t, "bob@example.org")
	if !acct.EmailVerified || acct.VerificationToken != "" || acct.VerificationExpires != nil {
		t.Fatalf("expected verified account without token, got %+v", acct)
	}
}

func TestVerifyEmailConsumedTokenIsInvalid(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	token := registerBob(t, h)

	if _, err := h.engine.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, err := h.engine.VerifyEmail(context.Background(), token); !errors.Is(err, ErrVerificationTokenInvalid) {
		t.Fatalf("expected ErrVerificationTokenInvalid, got %v", err)
	}
}

func TestVerifyEmailExpired(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	token := registerBob(t, h)
	h.clock.Advance(time.Hour + time.Second)

	if _, err := h.engine.VerifyEmail(context.Background(), token); !errors.Is(err, ErrVerificationTokenExpired) {
		t.Fatalf("expected ErrVerificationTokenExpired, got %v", err)
	}
	if h.account(t, "bob@example.org").EmailVerified {
		t.Fatal("expired token must not verify the account")
	}
}

func TestVerifyEmailAlreadyVerifiedIsIdempotent(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	token := registerBob(t, h)

	verified := true
	if err := h.store.MemoryAccounts.Update(context.Background(), "bob@example.org", account.Update{EmailVerified: &verified}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	res, err := h.engine.VerifyEmail(context.Background(), token)
	if err != nil {
		t.Fatalf("expected idempotent success, got %v", err)
	}
	if !res.AlreadyVerified {
		t.Fatal("expected AlreadyVerified")
	}
	if h.account(t, "bob@example.org").VerificationToken == "" {
		t.Fatal("idempotent verify must not consume the token")
	}
}

func TestResendVerification(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	first := registerBob(t, h)
	ctx := context.Background()

	if err := h.engine.ResendVerification(ctx, "bob@example.org"); err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	second := h.mailer.last(t, "verify").token
	if second == first {
		t.Fatal("expected a fresh token")
	}
	if _, err := h.engine.VerifyEmail(ctx, first); !errors.Is(err, ErrVerificationTokenInvalid) {
		t.Fatalf("expected superseded token to be invalid, got %v", err)
	}
	if _, err := h.engine.VerifyEmail(ctx, second); err != nil {
		t.Fatalf("latest token must verify: %v", err)
	}
}

func TestResendVerificationErrors(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)
	ctx := context.Background()

	if err := h.engine.ResendVerification(ctx, "ghost@example.org"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := h.engine.ResendVerification(ctx, aliceEmail); !errors.Is(err, ErrEmailAlreadyVerified) {
		t.Fatalf("expected ErrEmailAlreadyVerified, got %v", err)
	}
}

func TestResendVerificationReportsMailFailure(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	registerBob(t, h)
	h.mailer.err = errors.New("smtp down")

	if err := h.engine.ResendVerification(context.Background(), "bob@example.org"); !errors.Is(err, ErrMailDelivery) {
		t.Fatalf("expected ErrMailDelivery, got %v", err)
	}
}
