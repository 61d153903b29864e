package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/donorhub/account"
)

// RegisterInput is the validated registration request.
type RegisterInput struct {
	Email     string
	Password  string
	Name      string
	FirstName string
	LastName  string
	Phone     string
}

// RegisterResult carries the created account, its session token, and the
// opaque verification token that was mailed.
type RegisterResult struct {
	Account           *account.Account
	Token             string
	ExpiresAt         time.Time
	VerificationToken string
}

// AccountMetrics carries metric IDs used by the account flows.
type AccountMetrics struct {
	RegisterSuccess          int
	RegisterDuplicate        int
	RegisterRateLimited      int
	PasswordChangeSuccess    int
	PasswordChangeInvalidOld int
	EmailSuppressed          int
}

// AccountEvents carries audit event names used by the account flows.
type AccountEvents struct {
	Register       string
	PasswordChange string
	Suppression    string
}

// AccountErrors carries host-level sentinel errors used by the account flows.
type AccountErrors struct {
	EngineNotReady         error
	InvalidRequest         error
	AccountExists          error
	UserNotFound           error
	PasswordPolicy         error
	PasswordReuse          error
	CurrentPasswordInvalid error
	StoreUnavailable       error
}

// AccountDeps captures registration, password change, and suppression dependencies.
type AccountDeps struct {
	Hooks

	VerificationTTL time.Duration

	GetAccount    func(context.Context, string) (*account.Account, error)
	CreateAccount func(context.Context, *account.Account) error
	UpdateAccount func(context.Context, string, account.Update) error

	CheckPolicy    func(string) error
	HashPassword   func(string) (string, error)
	VerifyPassword func(string, string) (bool, error)
	NewToken       func() (string, error)
	HashToken      func(string) string
	IssueToken     func(email, name string) (string, time.Time, error)

	// SendVerification delivers the verification link. Failures are logged;
	// the account already exists at that point.
	SendVerification func(ctx context.Context, email, name, token string) error

	Metrics AccountMetrics
	Events  AccountEvents
	Errors  AccountErrors
}

// RunRegister creates an unverified account, stores a fresh verification
// token, mails it, and signs the donor in.
func RunRegister(ctx context.Context, in RegisterInput, deps AccountDeps) (*RegisterResult, error) {
	deps.normalize()
	if deps.CreateAccount == nil ||
		deps.HashPassword == nil ||
		deps.NewToken == nil ||
		deps.HashToken == nil ||
		deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if in.Email == "" || in.Password == "" {
		return nil, deps.Errors.InvalidRequest
	}

	identity := deps.ClientIPFromContext(ctx)
	if identity == "" {
		identity = in.Email
	}
	if err := deps.CheckRate(ctx, ScopeRegister, identity); err != nil {
		deps.MetricInc(deps.Metrics.RegisterRateLimited)
		deps.EmitAudit(ctx, deps.Events.Register, false, in.Email, err, reason("rate_limited"))
		return nil, err
	}
	deps.RecordRate(ctx, ScopeRegister, identity)

	if deps.CheckPolicy != nil {
		if err := deps.CheckPolicy(in.Password); err != nil {
			return nil, fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
		}
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
	}
	rawToken, err := deps.NewToken()
	if err != nil {
		return nil, err
	}

	now := deps.Now()
	expires := now.Add(deps.VerificationTTL)
	acct := &account.Account{
		Email:               in.Email,
		Name:                in.Name,
		FirstName:           in.FirstName,
		LastName:            in.LastName,
		Phone:               in.Phone,
		HashedPassword:      hash,
		VerificationToken:   deps.HashToken(rawToken),
		VerificationExpires: &expires,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if acct.Name == "" {
		acct.Name = acct.DisplayName()
	}

	if err := deps.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, account.ErrExists) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			deps.EmitAudit(ctx, deps.Events.Register, false, in.Email, deps.Errors.AccountExists, reason("duplicate"))
			return nil, deps.Errors.AccountExists
		}
		return nil, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	if deps.SendVerification != nil {
		if err := deps.SendVerification(ctx, acct.Email, acct.DisplayName(), rawToken); err != nil {
			deps.Warn("donorhub: verification mail failed", "email", acct.Email, "error", err)
		}
	}

	token, expiresAt, err := deps.IssueToken(acct.Email, acct.DisplayName())
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.Register, true, acct.Email, nil, nil)

	return &RegisterResult{
		Account:           acct,
		Token:             token,
		ExpiresAt:         expiresAt,
		VerificationToken: rawToken,
	}, nil
}

// RunChangePassword replaces the password of an authenticated donor after
// re-checking the current one.
func RunChangePassword(ctx context.Context, email, current, next string, deps AccountDeps) error {
	deps.normalize()
	if deps.GetAccount == nil || deps.UpdateAccount == nil || deps.HashPassword == nil || deps.VerifyPassword == nil {
		return deps.Errors.EngineNotReady
	}
	if email == "" || current == "" || next == "" {
		return deps.Errors.InvalidRequest
	}
	if deps.CheckPolicy != nil {
		if err := deps.CheckPolicy(next); err != nil {
			return fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
		}
	}

	acct, err := deps.GetAccount(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return deps.Errors.UserNotFound
		}
		return fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	ok, err := deps.VerifyPassword(current, acct.HashedPassword)
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.PasswordChangeInvalidOld)
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, email, deps.Errors.CurrentPasswordInvalid, nil)
		return deps.Errors.CurrentPasswordInvalid
	}
	if current == next {
		return deps.Errors.PasswordReuse
	}

	hash, err := deps.HashPassword(next)
	if err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
	}
	if err := deps.UpdateAccount(ctx, email, account.Update{HashedPassword: &hash, UpdatedAt: deps.Now()}); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return deps.Errors.UserNotFound
		}
		return fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChange, true, email, nil, nil)
	return nil
}

// RunSuppressEmail marks an address as undeliverable. Unknown addresses are
// ignored and report false.
func RunSuppressEmail(ctx context.Context, email, why string, deps AccountDeps) (bool, error) {
	deps.normalize()
	if deps.UpdateAccount == nil {
		return false, deps.Errors.EngineNotReady
	}
	if email == "" {
		return false, deps.Errors.InvalidRequest
	}

	suppressed := true
	err := deps.UpdateAccount(ctx, email, account.Update{
		EmailSuppressed:   &suppressed,
		SuppressionReason: &why,
		UpdatedAt:         deps.Now(),
	})
	if errors.Is(err, account.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", deps.Errors.StoreUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.EmailSuppressed)
	deps.EmitAudit(ctx, deps.Events.Suppression, true, email, nil, reason(why))
	return true, nil
}
