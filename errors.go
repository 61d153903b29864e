package donorhub

import (
	"errors"
	"math"
	"strconv"
	"time"
)

var (
	// ErrEngineNotReady is returned when an Engine method runs without its dependencies.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidRequest reports missing or malformed input fields.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized reports a missing, invalid, expired, or revoked session token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials reports an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked reports an account inside its lockout window.
	ErrAccountLocked = errors.New("account locked")
	// ErrUserNotFound reports an unknown account where disclosure is acceptable.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists reports a registration for an email that is already taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrRateLimited reports a request rejected by the sliding-window limiter.
	ErrRateLimited = errors.New("rate limited")
	// ErrPasswordPolicy reports a new password outside the accepted length range.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse reports a password change to the current password.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrCurrentPasswordInvalid reports a wrong current password on change-password.
	ErrCurrentPasswordInvalid = errors.New("current password is incorrect")
	// ErrResetTokenInvalid reports a reset token that matches no account.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
	// ErrResetTokenExpired reports a reset token presented after its expiry.
	ErrResetTokenExpired = errors.New("reset token has expired")
	// ErrVerificationTokenInvalid reports a verification token that matches no account.
	ErrVerificationTokenInvalid = errors.New("invalid or expired verification token")
	// ErrVerificationTokenExpired reports a verification token presented after its expiry.
	ErrVerificationTokenExpired = errors.New("verification token has expired")
	// ErrEmailAlreadyVerified reports a resend request for a verified address.
	ErrEmailAlreadyVerified = errors.New("email already verified")
	// ErrMailDelivery reports a failed email hand-off where the caller must know.
	ErrMailDelivery = errors.New("email delivery failed")
	// ErrStoreUnavailable wraps account store failures.
	ErrStoreUnavailable = errors.New("account store unavailable")
)

// AccountLockedError is returned by Login while an account is locked and
// on the failed attempt that locks it. It matches ErrAccountLocked.
type AccountLockedError struct {
	Remaining  time.Duration
	JustLocked bool
}

func (e *AccountLockedError) Error() string {
	if e.JustLocked {
		return "account locked for " + strconv.Itoa(e.RemainingMinutes()) + " minutes after too many failed attempts"
	}
	return "account locked, retry in " + strconv.Itoa(e.RemainingMinutes()) + " minutes"
}

// Unwrap lets errors.Is match ErrAccountLocked.
func (e *AccountLockedError) Unwrap() error { return ErrAccountLocked }

// RemainingMinutes returns the lock time left, rounded up to whole minutes.
func (e *AccountLockedError) RemainingMinutes() int {
	return ceilMinutes(e.Remaining)
}

// InvalidCredentialsError is returned by Login on a wrong password for an
// existing, unlocked account. It matches ErrInvalidCredentials.
type InvalidCredentialsError struct {
	AttemptsRemaining int
}

func (e *InvalidCredentialsError) Error() string {
	return "invalid credentials, " + strconv.Itoa(e.AttemptsRemaining) + " attempts remaining"
}

// Unwrap lets errors.Is match ErrInvalidCredentials.
func (e *InvalidCredentialsError) Unwrap() error { return ErrInvalidCredentials }

// RateLimitedError carries the wait before the limiter admits another attempt.
// It matches ErrRateLimited.
type RateLimitedError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return e.Scope + " rate limited, retry in " + e.RetryAfter.Round(time.Second).String()
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// RemainingMinutes returns RetryAfter rounded up to whole minutes.
func (e *RateLimitedError) RemainingMinutes() int {
	return ceilMinutes(e.RetryAfter)
}

// RemainingSeconds returns RetryAfter rounded up to whole seconds.
func (e *RateLimitedError) RemainingSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
