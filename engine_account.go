package donorhub

import (
	"context"
	"strings"

	"github.com/MrEthical07/donorhub/internal"
	"github.com/MrEthical07/donorhub/internal/flows"
	"github.com/MrEthical07/donorhub/password"
)

// Register describes the register operation and its observable behavior.
//
// Register creates an unverified account, mails a verification link, and
// signs the donor in. It returns ErrAccountExists for a taken email.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Password == "" || (req.Name == "" && req.FirstName == "") {
		return nil, ErrInvalidRequest
	}

	res, err := flows.RunRegister(ctx, flows.RegisterInput{
		Email:     email,
		Password:  req.Password,
		Name:      req.Name,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     strings.TrimSpace(req.Phone),
	}, e.accountDeps())
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:      profileOf(res.Account),
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	}, nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword returns ErrCurrentPasswordInvalid when current does not
// match and ErrPasswordReuse when next equals current.
func (e *Engine) ChangePassword(ctx context.Context, email, current, next string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	return flows.RunChangePassword(ctx, email, current, next, e.accountDeps())
}

// SuppressEmail marks an address as undeliverable after a permanent bounce
// or complaint. It reports whether an account was updated.
func (e *Engine) SuppressEmail(ctx context.Context, email, reason string) (bool, error) {
	if e == nil || e.accounts == nil {
		return false, ErrEngineNotReady
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return false, err
	}
	return flows.RunSuppressEmail(ctx, normalized, reason, e.accountDeps())
}

func (e *Engine) accountDeps() flows.AccountDeps {
	return flows.AccountDeps{
		Hooks:            e.hooks(),
		VerificationTTL:  e.config.EmailVerification.TTL,
		GetAccount:       e.accounts.Get,
		CreateAccount:    e.accounts.Create,
		UpdateAccount:    e.accounts.Update,
		CheckPolicy:      password.CheckPolicy,
		HashPassword:     e.passwords.Hash,
		VerifyPassword:   e.passwords.Verify,
		NewToken:         e.newToken,
		HashToken:        internal.HashToken,
		IssueToken:       e.issueToken,
		SendVerification: e.sendVerification,
		Metrics: flows.AccountMetrics{
			RegisterSuccess:          int(MetricRegisterSuccess),
			RegisterDuplicate:        int(MetricRegisterDuplicate),
			RegisterRateLimited:      int(MetricRegisterRateLimited),
			PasswordChangeSuccess:    int(MetricPasswordChangeSuccess),
			PasswordChangeInvalidOld: int(MetricPasswordChangeInvalidOld),
			EmailSuppressed:          int(MetricEmailSuppressed),
		},
		Events: flows.AccountEvents{
			Register:       auditEventRegister,
			PasswordChange: auditEventPasswordChange,
			Suppression:    auditEventEmailSuppressed,
		},
		Errors: flows.AccountErrors{
			EngineNotReady:         ErrEngineNotReady,
			InvalidRequest:         ErrInvalidRequest,
			AccountExists:          ErrAccountExists,
			UserNotFound:           ErrUserNotFound,
			PasswordPolicy:         ErrPasswordPolicy,
			PasswordReuse:          ErrPasswordReuse,
			CurrentPasswordInvalid: ErrCurrentPasswordInvalid,
			StoreUnavailable:       ErrStoreUnavailable,
		},
	}
}
