package donorhub

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegisterCreatesUnverifiedAccountAndMailsToken(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	ctx := context.Background()

	res, err := h.engine.Register(ctx, RegisterRequest{
		Email:    "Bob@Example.org",
		Password: "a-long-password",
		Name:     "Bob",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if res.Token == "" || res.User.Email != "bob@example.org" || res.User.EmailVerified {
		t.Fatalf("unexpected register result: %+v", res)
	}

	acct := h.account(t, "bob@example.org")
	if acct.VerificationToken == "" || acct.VerificationExpires == nil {
		t.Fatal("expected stored verification token")
	}
	if !acct.VerificationExpires.Equal(h.clock.Now().Add(time.Hour)) {
		t.Fatalf("expected verification expiry in 1h, got %v", acct.VerificationExpires)
	}

	mail := h.mailer.last(t, "verify")
	if mail.email != "bob@example.org" || len(mail.token) != 64 {
		t.Fatalf("unexpected verification mail: %+v", mail)
	}
	if mail.token == acct.VerificationToken {
		t.Fatal("stored token must be a digest, not the mailed value")
	}
}

func TestRegisterBuildsNameFromParts(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	res, err := h.engine.Register(context.Background(), RegisterRequest{
		Email:     "carol@example.org",
		Password:  "a-long-password",
		FirstName: "Carol",
		LastName:  "Danvers",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if res.User.Name != "Carol Danvers" {
		t.Fatalf("expected combined name, got %q", res.User.Name)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)

	_, err := h.engine.Register(context.Background(), RegisterRequest{
		Email:    aliceEmail,
		Password: "a-long-password",
		Name:     "Impostor",
	})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	ctx := context.Background()

	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"bad email", RegisterRequest{Email: "not-an-email", Password: "a-long-password", Name: "X"}, ErrInvalidRequest},
		{"missing name", RegisterRequest{Email: "x@example.org", Password: "a-long-password"}, ErrInvalidRequest},
		{"short password", RegisterRequest{Email: "x@example.org", Password: "short", Name: "X"}, ErrPasswordPolicy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.engine.Register(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterSucceedsWhenMailFails(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.mailer.err = errors.New("smtp down")

	if _, err := h.engine.Register(context.Background(), RegisterRequest{
		Email:    "dan@example.org",
		Password: "a-long-password",
		Name:     "Dan",
	}); err != nil {
		t.Fatalf("expected register to succeed despite mail failure, got %v", err)
	}
}

func TestRegisterRateLimitedPerClient(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.MaxAttempts = 1
	h := newEngineHarness(t, cfg)
	ctx := WithClientIP(context.Background(), "198.51.100.4")

	if _, err := h.engine.Register(ctx, RegisterRequest{Email: "e1@example.org", Password: "a-long-password", Name: "E"}); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	_, err := h.engine.Register(ctx, RegisterRequest{Email: "e2@example.org", Password: "a-long-password", Name: "E"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)
	ctx := context.Background()

	if err := h.engine.ChangePassword(ctx, aliceEmail, "wrong-current", "brand-new-password"); !errors.Is(err, ErrCurrentPasswordInvalid) {
		t.Fatalf("expected ErrCurrentPasswordInvalid, got %v", err)
	}
	if err := h.engine.ChangePassword(ctx, aliceEmail, alicePassword, alicePassword); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse, got %v", err)
	}
	if err := h.engine.ChangePassword(ctx, aliceEmail, alicePassword, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	if err := h.engine.ChangePassword(ctx, aliceEmail, alicePassword, "brand-new-password"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}

	if _, err := h.engine.Login(ctx, aliceEmail, alicePassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := h.engine.Login(ctx, aliceEmail, "brand-new-password"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestChangePasswordUnknownUser(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	err := h.engine.ChangePassword(context.Background(), "ghost@example.org", "whatever-1", "whatever-2")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSuppressEmail(t *testing.T) {
	h := newEngineHarness(t, testConfig())
	h.seedAccount(t, aliceEmail, "Alice", alicePassword)
	ctx := context.Background()

	ok, err := h.engine.SuppressEmail(ctx, aliceEmail, "bounce")
	if err != nil || !ok {
		t.Fatalf("expected suppression, got ok=%v err=%v", ok, err)
	}
	acct := h.account(t, aliceEmail)
	if !acct.EmailSuppressed || acct.SuppressionReason != "bounce" {
		t.Fatalf("unexpected suppression state: %+v", acct)
	}

	ok, err = h.engine.SuppressEmail(ctx, "ghost@example.org", "complaint")
	if err != nil || ok {
		t.Fatalf("unknown recipient must be ignored, got ok=%v err=%v", ok, err)
	}
}
