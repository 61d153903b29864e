package donorhub

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginRateLimited         = "login_rate_limited"
	auditEventAccountLocked            = "account_locked"
	auditEventLogout                   = "logout"
	auditEventRegister                 = "register"
	auditEventPasswordChange           = "password_change"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationConfirm = "email_verification_confirm"
	auditEventEmailSuppressed          = "email_suppressed"
)

// AuditErrorCode is the stable error classification recorded on failed events.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpiredToken       AuditErrorCode = "expired_token"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrMailDelivery       AuditErrorCode = "mail_delivery"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrCurrentPasswordInvalid):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrResetTokenInvalid),
		errors.Is(err, ErrVerificationTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrResetTokenExpired),
		errors.Is(err, ErrVerificationTokenExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrMailDelivery):
		return auditErrMailDelivery
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
