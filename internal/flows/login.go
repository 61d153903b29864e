package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/donorhub/account"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Account   *account.Account
	Token     string
	ExpiresAt time.Time
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	AccountLocked    int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	AccountLocked    string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidRequest     error
	InvalidCredentials error
	StoreUnavailable   error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Hooks

	LockoutThreshold       int
	LockoutDuration        time.Duration
	PasswordUpgradeOnLogin bool

	GetAccount    func(context.Context, string) (*account.Account, error)
	UpdateAccount func(context.Context, string, account.Update) error

	VerifyPassword       func(string, string) (bool, error)
	VerifyDummy          func(string)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)
	IssueToken           func(email, name string) (string, time.Time, error)

	// LockedError builds the error for an active or newly set lock.
	LockedError func(remaining time.Duration, justLocked bool) error
	// AttemptsError builds the error for a wrong password that did not lock.
	AttemptsError func(attemptsRemaining int) error

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin applies the lockout policy to a password login and issues a
// session token on success.
//
// A lock whose window has passed is treated as cleared: the failed-attempt
// counter restarts from zero and the stale lock is removed by the next write.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	deps.normalize()
	if deps.GetAccount == nil ||
		deps.UpdateAccount == nil ||
		deps.VerifyPassword == nil ||
		deps.IssueToken == nil ||
		deps.LockedError == nil ||
		deps.AttemptsError == nil ||
		deps.LockoutThreshold <= 0 {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.VerifyDummy == nil {
		deps.VerifyDummy = func(string) {}
	}
	if email == "" || password == "" {
		return nil, deps.Errors.InvalidRequest
	}

	identity := deps.ClientIPFromContext(ctx)
	if identity == "" {
		identity = email
	}

	if err := deps.CheckRate(ctx, ScopeLogin, identity); err != nil {
		deps.MetricInc(deps.Metrics.LoginRateLimited)
		deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, email, err, nil)
		return nil, err
	}

	acct, err := deps.GetAccount(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			deps.VerifyDummy(password)
			deps.RecordRate(ctx, ScopeLogin, identity)
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, deps.Events.LoginFailure, false, email, deps.Errors.InvalidCredentials, reason("unknown_account"))
			return nil, deps.Errors.InvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	now := deps.Now()
	if acct.IsLocked(now) {
		deps.VerifyDummy(password)
		deps.MetricInc(deps.Metrics.AccountLocked)
		lockErr := deps.LockedError(acct.LockedUntil.Sub(now), false)
		deps.EmitAudit(ctx, deps.Events.AccountLocked, false, acct.Email, lockErr, reason("lock_active"))
		return nil, lockErr
	}

	failed := acct.FailedAttempts
	lapsedLock := acct.LockedUntil != nil
	if lapsedLock {
		failed = 0
	}

	ok, err := deps.VerifyPassword(password, acct.HashedPassword)
	if err != nil {
		deps.Warn("donorhub: stored password hash unreadable", "email", acct.Email, "error", err)
		ok = false
	}

	if !ok {
		failed++
		update := account.Update{FailedAttempts: &failed, UpdatedAt: now}
		locking := failed >= deps.LockoutThreshold
		if locking {
			until := now.Add(deps.LockoutDuration)
			update.LockedUntil = &until
		} else if lapsedLock {
			update.ClearLock = true
		}
		if err := deps.UpdateAccount(ctx, acct.Email, update); err != nil {
			return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
		}
		deps.RecordRate(ctx, ScopeLogin, identity)

		if locking {
			deps.MetricInc(deps.Metrics.AccountLocked)
			lockErr := deps.LockedError(deps.LockoutDuration, true)
			deps.EmitAudit(ctx, deps.Events.AccountLocked, false, acct.Email, lockErr, func() map[string]string {
				return map[string]string{"failed_attempts": fmt.Sprint(failed)}
			})
			return nil, lockErr
		}

		deps.MetricInc(deps.Metrics.LoginFailure)
		attemptsErr := deps.AttemptsError(deps.LockoutThreshold - failed)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, acct.Email, attemptsErr, reason("password_mismatch"))
		return nil, attemptsErr
	}

	var update account.Update
	if acct.FailedAttempts != 0 || acct.LockedUntil != nil {
		zero := 0
		update.FailedAttempts = &zero
		update.ClearLock = true
	}
	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil {
		if needs, err := deps.PasswordNeedsUpgrade(acct.HashedPassword); err == nil && needs {
			if upgraded, err := deps.HashPassword(password); err == nil {
				update.HashedPassword = &upgraded
			} else {
				deps.Warn("donorhub: password rehash failed", "email", acct.Email, "error", err)
			}
		}
	}
	if !update.Empty() {
		update.UpdatedAt = now
		if err := deps.UpdateAccount(ctx, acct.Email, update); err != nil {
			return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
		}
		update.Apply(acct)
	}

	token, expiresAt, err := deps.IssueToken(acct.Email, acct.DisplayName())
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, acct.Email, nil, nil)

	return &LoginResult{Account: acct, Token: token, ExpiresAt: expiresAt}, nil
}
