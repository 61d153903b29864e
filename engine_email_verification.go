package donorhub

import (
	"context"

	"github.com/MrEthical07/donorhub/internal"
	"github.com/MrEthical07/donorhub/internal/flows"
)

// VerifyEmail describes the verifyemail operation and its observable behavior.
//
// VerifyEmail is idempotent for accounts that are already verified. It
// returns ErrVerificationTokenInvalid for unknown or consumed tokens and
// ErrVerificationTokenExpired once the token has lapsed.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (VerifyResult, error) {
	if e == nil || e.accounts == nil {
		return VerifyResult{}, ErrEngineNotReady
	}
	if !internal.ValidOpaqueToken(token) {
		if token == "" {
			return VerifyResult{}, ErrInvalidRequest
		}
		return VerifyResult{}, ErrVerificationTokenInvalid
	}
	res, err := flows.RunVerifyEmail(ctx, token, e.emailVerificationDeps())
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Email: res.Email, AlreadyVerified: res.AlreadyVerified}, nil
}

// ResendVerification describes the resendverification operation and its observable behavior.
//
// ResendVerification replaces the verification token and mails it. It
// returns ErrUserNotFound for unknown addresses, ErrEmailAlreadyVerified
// for verified ones, and ErrMailDelivery when the mail cannot be handed off.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	_, err = flows.RunResendVerification(ctx, normalized, e.emailVerificationDeps())
	return err
}

func (e *Engine) emailVerificationDeps() flows.EmailVerificationDeps {
	return flows.EmailVerificationDeps{
		Hooks:                   e.hooks(),
		VerificationTTL:         e.config.EmailVerification.TTL,
		GetAccount:              e.accounts.Get,
		UpdateAccount:           e.accounts.Update,
		FindByVerificationToken: e.accounts.FindByVerificationToken,
		NewToken:                e.newToken,
		HashToken:               internal.HashToken,
		SendVerification:        e.sendVerification,
		Metrics: flows.EmailVerificationMetrics{
			EmailVerificationRequest:     int(MetricEmailVerificationRequest),
			EmailVerificationRateLimited: int(MetricEmailVerificationRateLimited),
			EmailVerificationSuccess:     int(MetricEmailVerificationSuccess),
			EmailVerificationFailure:     int(MetricEmailVerificationFailure),
		},
		Events: flows.EmailVerificationEvents{
			EmailVerificationRequest: auditEventEmailVerificationRequest,
			EmailVerificationConfirm: auditEventEmailVerificationConfirm,
		},
		Errors: flows.EmailVerificationErrors{
			EngineNotReady:   ErrEngineNotReady,
			InvalidRequest:   ErrInvalidRequest,
			TokenInvalid:     ErrVerificationTokenInvalid,
			TokenExpired:     ErrVerificationTokenExpired,
			UserNotFound:     ErrUserNotFound,
			AlreadyVerified:  ErrEmailAlreadyVerified,
			MailDelivery:     ErrMailDelivery,
			StoreUnavailable: ErrStoreUnavailable,
		},
	}
}
