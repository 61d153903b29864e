package donorhub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/donorhub/account"
	"github.com/MrEthical07/donorhub/internal"
	"github.com/MrEthical07/donorhub/internal/flows"
	"github.com/MrEthical07/donorhub/internal/rate"
	"github.com/MrEthical07/donorhub/internal/revocation"
	"github.com/MrEthical07/donorhub/jwt"
	"github.com/MrEthical07/donorhub/password"
)

// Engine defines a public type used by donorhub APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	accounts    account.Store
	limiter     *rate.Limiter
	revocations *revocation.Store
	audit       *auditQueue
	metrics     *Metrics
	passwords   *password.Bcrypt
	tokens      *jwt.Manager
	mailer      Mailer
	logger      *slog.Logger
	now         func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close flushes queued audit events and stops the audit queue.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login describes the login operation and its observable behavior.
//
// Login returns *InvalidCredentialsError or *AccountLockedError for wrong
// passwords, ErrInvalidCredentials for unknown emails, and *RateLimitedError
// when the caller exceeded the login attempt budget.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || pass == "" {
		return nil, ErrInvalidRequest
	}

	res, err := flows.RunLogin(ctx, email, pass, flows.LoginDeps{
		Hooks:                  e.hooks(),
		LockoutThreshold:       e.config.Lockout.Threshold,
		LockoutDuration:        e.config.Lockout.Duration,
		PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		GetAccount:             e.accounts.Get,
		UpdateAccount:          e.accounts.Update,
		VerifyPassword:         e.passwords.Verify,
		VerifyDummy:            e.passwords.VerifyDummy,
		PasswordNeedsUpgrade:   e.passwords.NeedsUpgrade,
		HashPassword:           e.passwords.Hash,
		IssueToken:             e.issueToken,
		LockedError: func(remaining time.Duration, justLocked bool) error {
			return &AccountLockedError{Remaining: remaining, JustLocked: justLocked}
		},
		AttemptsError: func(remaining int) error {
			return &InvalidCredentialsError{AttemptsRemaining: remaining}
		},
		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			AccountLocked:    int(MetricAccountLocked),
		},
		Events: flows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			AccountLocked:    auditEventAccountLocked,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidRequest:     ErrInvalidRequest,
			InvalidCredentials: ErrInvalidCredentials,
			StoreUnavailable:   ErrStoreUnavailable,
		},
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:      profileOf(res.Account),
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	}, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout never fails. A valid token is denylisted until it expires when
// revocation is configured; anything else is ignored.
func (e *Engine) Logout(ctx context.Context, token string) {
	if e == nil {
		return
	}
	deps := flows.LogoutDeps{
		Hooks: e.hooks(),
		ParseToken: func(tok string) (string, string, time.Time, error) {
			claims, err := e.tokens.Parse(tok)
			if err != nil {
				return "", "", time.Time{}, err
			}
			return claims.ID, claims.Email, claims.ExpiresAt.Time, nil
		},
		MetricLogout:       int(MetricLogout),
		MetricTokenRevoked: int(MetricTokenRevoked),
		EventLogout:        auditEventLogout,
	}
	if e.revocations != nil {
		deps.Revoke = e.revocations.Revoke
	}
	flows.RunLogout(ctx, token, deps)
}

// ValidateToken describes the validatetoken operation and its observable behavior.
//
// ValidateToken never reads the account store. It returns ErrUnauthorized
// for any signature, expiry, or revocation failure.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	deps := flows.ValidateDeps{
		Hooks: e.hooks(),
		ParseToken: func(tok string) (flows.ValidatedToken, error) {
			claims, err := e.tokens.Parse(tok)
			if err != nil {
				return flows.ValidatedToken{}, err
			}
			return flows.ValidatedToken{
				Email:     claims.Email,
				Name:      claims.Name,
				TokenID:   claims.ID,
				ExpiresAt: claims.ExpiresAt.Time,
			}, nil
		},
		MetricTokenRejected: int(MetricTokenRejected),
		Unauthorized:        ErrUnauthorized,
		EngineNotReady:      ErrEngineNotReady,
	}
	if e.revocations != nil {
		deps.IsRevoked = e.revocations.IsRevoked
	}

	v, err := flows.RunValidate(ctx, token, deps)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Email:     v.Email,
		Name:      v.Name,
		TokenID:   v.TokenID,
		ExpiresAt: v.ExpiresAt,
	}, nil
}

// Profile returns the public profile of an account.
func (e *Engine) Profile(ctx context.Context, email string) (Profile, error) {
	if e == nil || e.accounts == nil {
		return Profile{}, ErrEngineNotReady
	}
	acct, err := e.accounts.Get(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, wrapStore(err)
	}
	return profileOf(acct), nil
}

func (e *Engine) issueToken(email, name string) (string, time.Time, error) {
	token, claims, err := e.tokens.Issue(email, name)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

func (e *Engine) hooks() flows.Hooks {
	return flows.Hooks{
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		CheckRate:           e.checkRate,
		RecordRate:          e.recordRate,
		MetricInc:           func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:           e.emitAudit,
		Warn:                e.logger.Warn,
	}
}

func (e *Engine) checkRate(ctx context.Context, scope, identity string) error {
	if e.limiter == nil || identity == "" {
		return nil
	}
	d := e.limiter.Check(ctx, rate.Key(scope, identity), e.config.RateLimit.MaxAttempts, e.config.RateLimit.Window)
	if d.Allowed {
		return nil
	}
	return &RateLimitedError{Scope: scope, RetryAfter: d.RetryAfter}
}

func (e *Engine) recordRate(ctx context.Context, scope, identity string) {
	if e.limiter == nil || identity == "" {
		return
	}
	// Failures are counted and logged by the limiter's error hook.
	_ = e.limiter.Record(ctx, rate.Key(scope, identity), e.config.RateLimit.Window)
}

func (e *Engine) newToken() (string, error) {
	return internal.NewOpaqueToken()
}

func (e *Engine) sendVerification(ctx context.Context, email, name, token string) error {
	if e.mailer == nil {
		return nil
	}
	return e.mailer.SendVerificationEmail(ctx, email, name, token)
}

func (e *Engine) sendReset(ctx context.Context, email, name, token string) error {
	if e.mailer == nil {
		return nil
	}
	return e.mailer.SendPasswordResetEmail(ctx, email, name, token)
}

// normalizeEmail maps malformed addresses to ErrInvalidRequest.
func normalizeEmail(email string) (string, error) {
	normalized, err := account.NormalizeEmail(email)
	if err != nil {
		return "", ErrInvalidRequest
	}
	return normalized, nil
}

func wrapStore(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
