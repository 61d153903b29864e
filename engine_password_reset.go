package donorhub

import (
	"context"

	"github.com/MrEthical07/donorhub/internal"
	"github.com/MrEthical07/donorhub/internal/flows"
	"github.com/MrEthical07/donorhub/password"
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset stores a 15 minute reset token and mails it. It
// succeeds for unknown addresses and for mail failures, returning an empty
// token in the first case. Only the rate limit and store outages surface.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e == nil || e.accounts == nil {
		return "", ErrEngineNotReady
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	return flows.RunRequestPasswordReset(ctx, normalized, e.passwordResetDeps())
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset returns ErrResetTokenInvalid for unknown or already
// consumed tokens and ErrResetTokenExpired once the token has lapsed. On
// success the lockout state is cleared with the new password.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if !internal.ValidOpaqueToken(token) {
		if token == "" {
			return ErrInvalidRequest
		}
		return ErrResetTokenInvalid
	}
	_, err := flows.RunConfirmPasswordReset(ctx, token, newPassword, e.passwordResetDeps())
	return err
}

func (e *Engine) passwordResetDeps() flows.PasswordResetDeps {
	return flows.PasswordResetDeps{
		Hooks:            e.hooks(),
		ResetTTL:         e.config.PasswordReset.TTL,
		GetAccount:       e.accounts.Get,
		UpdateAccount:    e.accounts.Update,
		FindByResetToken: e.accounts.FindByResetToken,
		CheckPolicy:      password.CheckPolicy,
		HashPassword:     e.passwords.Hash,
		NewToken:         e.newToken,
		HashToken:        internal.HashToken,
		SendReset:        e.sendReset,
		Metrics: flows.PasswordResetMetrics{
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetRateLimited:    int(MetricPasswordResetRateLimited),
			PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
		},
		Events: flows.PasswordResetEvents{
			PasswordResetRequest: auditEventPasswordResetRequest,
			PasswordResetConfirm: auditEventPasswordResetConfirm,
		},
		Errors: flows.PasswordResetErrors{
			EngineNotReady:   ErrEngineNotReady,
			InvalidRequest:   ErrInvalidRequest,
			TokenInvalid:     ErrResetTokenInvalid,
			TokenExpired:     ErrResetTokenExpired,
			PasswordPolicy:   ErrPasswordPolicy,
			StoreUnavailable: ErrStoreUnavailable,
		},
	}
}
