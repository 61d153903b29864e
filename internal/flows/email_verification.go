package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/donorhub/account"
)

// EmailVerificationMetrics carries metric IDs used by the verification flows.
type EmailVerificationMetrics struct {
	EmailVerificationRequest     int
	EmailVerificationRateLimited int
	EmailVerificationSuccess     int
	EmailVerificationFailure     int
}

// EmailVerificationEvents carries audit event names used by the verification flows.
type EmailVerificationEvents struct {
	EmailVerificationRequest string
	EmailVerificationConfirm string
}

// EmailVerificationErrors carries host-level sentinel errors used by the verification flows.
type EmailVerificationErrors struct {
	EngineNotReady   error
	InvalidRequest   error
	TokenInvalid     error
	TokenExpired     error
	UserNotFound     error
	AlreadyVerified  error
	MailDelivery     error
	StoreUnavailable error
}

// EmailVerificationDeps captures email verification dependencies.
type EmailVerificationDeps struct {
	Hooks

	VerificationTTL time.Duration

	GetAccount              func(context.Context, string) (*account.Account, error)
	UpdateAccount           func(context.Context, string, account.Update) error
	FindByVerificationToken func(context.Context, string) (*account.Account, error)

	NewToken         func() (string, error)
	HashToken        func(string) string
	SendVerification func(ctx context.Context, email, name, token string) error

	Metrics EmailVerificationMetrics
	Events  EmailVerificationEvents
	Errors  EmailVerificationErrors
}

// VerifyResult reports which account a token belonged to and whether it had
// already been verified.
type VerifyResult struct {
	Email           string
	AlreadyVerified bool
}

// RunVerifyEmail consumes a verification token. An account that is already
// verified succeeds without consuming the token.
func RunVerifyEmail(ctx context.Context, token string, deps EmailVerificationDeps) (VerifyResult, error) {
	deps.normalize()
	if deps.FindByVerificationToken == nil || deps.UpdateAccount == nil || deps.HashToken == nil {
		return VerifyResult{}, deps.Errors.EngineNotReady
	}
	if token == "" {
		return VerifyResult{}, deps.Errors.InvalidRequest
	}

	fail := func(email string, err error, why string) (VerifyResult, error) {
		deps.MetricInc(deps.Metrics.EmailVerificationFailure)
		deps.EmitAudit(ctx, deps.Events.EmailVerificationConfirm, false, email, err, reason(why))
		return VerifyResult{}, err
	}

	digest := deps.HashToken(token)
	acct, err := deps.FindByVerificationToken(ctx, digest)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return fail("", deps.Errors.TokenInvalid, "unknown_token")
		}
		return VerifyResult{}, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	if acct.EmailVerified {
		return VerifyResult{Email: acct.Email, AlreadyVerified: true}, nil
	}

	now := deps.Now()
	if acct.VerificationExpires == nil || !acct.VerificationExpires.After(now) {
		return fail(acct.Email, deps.Errors.TokenExpired, "expired")
	}

	verified := true
	update := account.Update{
		EmailVerified:           &verified,
		ClearVerificationToken:  true,
		ExpectVerificationToken: digest,
		UpdatedAt:               now,
	}
	if err := deps.UpdateAccount(ctx, acct.Email, update); err != nil {
		if errors.Is(err, account.ErrConflict) || errors.Is(err, account.ErrNotFound) {
			return fail(acct.Email, deps.Errors.TokenInvalid, "consumed")
		}
		return VerifyResult{}, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.EmailVerificationSuccess)
	deps.EmitAudit(ctx, deps.Events.EmailVerificationConfirm, true, acct.Email, nil, nil)
	return VerifyResult{Email: acct.Email}, nil
}

// RunResendVerification replaces the verification token of an unverified
// account and mails the new one. Unlike the initial registration mail, a
// delivery failure here is reported.
func RunResendVerification(ctx context.Context, email string, deps EmailVerificationDeps) (string, error) {
	deps.normalize()
	if deps.GetAccount == nil || deps.UpdateAccount == nil || deps.NewToken == nil || deps.HashToken == nil {
		return "", deps.Errors.EngineNotReady
	}
	if email == "" {
		return "", deps.Errors.InvalidRequest
	}

	if err := deps.CheckRate(ctx, ScopeResend, email); err != nil {
		deps.MetricInc(deps.Metrics.EmailVerificationRateLimited)
		deps.EmitAudit(ctx, deps.Events.EmailVerificationRequest, false, email, err, reason("rate_limited"))
		return "", err
	}
	deps.RecordRate(ctx, ScopeResend, email)

	acct, err := deps.GetAccount(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return "", deps.Errors.UserNotFound
		}
		return "", fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}
	if acct.EmailVerified {
		return "", deps.Errors.AlreadyVerified
	}

	rawToken, err := deps.NewToken()
	if err != nil {
		return "", err
	}
	now := deps.Now()
	update := account.Update{
		VerificationToken: &account.Token{Hash: deps.HashToken(rawToken), Expires: now.Add(deps.VerificationTTL)},
		UpdatedAt:         now,
	}
	if err := deps.UpdateAccount(ctx, acct.Email, update); err != nil {
		return "", fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.EmailVerificationRequest)
	if deps.SendVerification != nil {
		if err := deps.SendVerification(ctx, acct.Email, acct.DisplayName(), rawToken); err != nil {
			deps.EmitAudit(ctx, deps.Events.EmailVerificationRequest, false, acct.Email, err, reason("mail_failed"))
			return "", fmt.Errorf("%w: %v", deps.Errors.MailDelivery, err)
		}
	}

	deps.EmitAudit(ctx, deps.Events.EmailVerificationRequest, true, acct.Email, nil, nil)
	return rawToken, nil
}
