package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/donorhub/account"
)

// PasswordResetMetrics carries metric IDs used by the reset flows.
type PasswordResetMetrics struct {
	PasswordResetRequest        int
	PasswordResetRateLimited    int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
}

// PasswordResetEvents carries audit event names used by the reset flows.
type PasswordResetEvents struct {
	PasswordResetRequest string
	PasswordResetConfirm string
}

// PasswordResetErrors carries host-level sentinel errors used by the reset flows.
type PasswordResetErrors struct {
	EngineNotReady   error
	InvalidRequest   error
	TokenInvalid     error
	TokenExpired     error
	PasswordPolicy   error
	StoreUnavailable error
}

// PasswordResetDeps captures password reset dependencies.
type PasswordResetDeps struct {
	Hooks

	ResetTTL time.Duration

	GetAccount       func(context.Context, string) (*account.Account, error)
	UpdateAccount    func(context.Context, string, account.Update) error
	FindByResetToken func(context.Context, string) (*account.Account, error)

	CheckPolicy  func(string) error
	HashPassword func(string) (string, error)
	NewToken     func() (string, error)
	HashToken    func(string) string

	// SendReset delivers the reset link. Failures are logged and hidden from
	// the caller so the response never discloses account existence.
	SendReset func(ctx context.Context, email, name, token string) error

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunRequestPasswordReset stores a fresh reset token for email and mails it.
// Unknown addresses succeed with an empty token.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) (string, error) {
	deps.normalize()
	if deps.GetAccount == nil || deps.UpdateAccount == nil || deps.NewToken == nil || deps.HashToken == nil {
		return "", deps.Errors.EngineNotReady
	}
	if email == "" {
		return "", deps.Errors.InvalidRequest
	}

	if err := deps.CheckRate(ctx, ScopeForgot, email); err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetRateLimited)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, email, err, reason("rate_limited"))
		return "", err
	}
	deps.RecordRate(ctx, ScopeForgot, email)
	deps.MetricInc(deps.Metrics.PasswordResetRequest)

	acct, err := deps.GetAccount(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, email, nil, reason("unknown_account"))
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	rawToken, err := deps.NewToken()
	if err != nil {
		return "", err
	}
	now := deps.Now()
	update := account.Update{
		ResetToken: &account.Token{Hash: deps.HashToken(rawToken), Expires: now.Add(deps.ResetTTL)},
		UpdatedAt:  now,
	}
	if err := deps.UpdateAccount(ctx, acct.Email, update); err != nil {
		return "", fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	if deps.SendReset != nil {
		if err := deps.SendReset(ctx, acct.Email, acct.DisplayName(), rawToken); err != nil {
			deps.Warn("donorhub: password reset mail failed", "email", acct.Email, "error", err)
		}
	}

	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, acct.Email, nil, nil)
	return rawToken, nil
}

// RunConfirmPasswordReset consumes a reset token and sets a new password.
// The hash, token removal, and lockout clearing land in one guarded write,
// so a token can be consumed at most once.
func RunConfirmPasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) (string, error) {
	deps.normalize()
	if deps.FindByResetToken == nil || deps.UpdateAccount == nil || deps.HashPassword == nil || deps.HashToken == nil {
		return "", deps.Errors.EngineNotReady
	}
	if token == "" || newPassword == "" {
		return "", deps.Errors.InvalidRequest
	}

	fail := func(email string, err error, why string) (string, error) {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, email, err, reason(why))
		return "", err
	}

	if deps.CheckPolicy != nil {
		if err := deps.CheckPolicy(newPassword); err != nil {
			return "", fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
		}
	}

	digest := deps.HashToken(token)
	acct, err := deps.FindByResetToken(ctx, digest)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return fail("", deps.Errors.TokenInvalid, "unknown_token")
		}
		return "", fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	now := deps.Now()
	if acct.ResetExpires == nil || !acct.ResetExpires.After(now) {
		return fail(acct.Email, deps.Errors.TokenExpired, "expired")
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return "", fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
	}

	zero := 0
	update := account.Update{
		HashedPassword:   &hash,
		ClearResetToken:  true,
		FailedAttempts:   &zero,
		ClearLock:        true,
		ExpectResetToken: digest,
		UpdatedAt:        now,
	}
	if err := deps.UpdateAccount(ctx, acct.Email, update); err != nil {
		if errors.Is(err, account.ErrConflict) || errors.Is(err, account.ErrNotFound) {
			return fail(acct.Email, deps.Errors.TokenInvalid, "consumed")
		}
		return "", fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, acct.Email, nil, nil)
	return acct.Email, nil
}
