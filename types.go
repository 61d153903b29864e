package donorhub

import (
	"context"
	"time"

	"github.com/MrEthical07/donorhub/account"
)

// Profile is the public subset of an account returned to clients.
type Profile struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Phone         string `json:"phone,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

func profileOf(acct *account.Account) Profile {
	if acct == nil {
		return Profile{}
	}
	return Profile{
		Email:         acct.Email,
		Name:          acct.DisplayName(),
		FirstName:     acct.FirstName,
		LastName:      acct.LastName,
		Phone:         acct.Phone,
		EmailVerified: acct.EmailVerified,
	}
}

// LoginResult is returned by Login and Register.
type LoginResult struct {
	User      Profile
	Token     string
	ExpiresAt time.Time
}

// RegisterRequest carries the fields accepted at registration. Either Name
// or FirstName/LastName must be present.
type RegisterRequest struct {
	Email     string
	Password  string
	Name      string
	FirstName string
	LastName  string
	Phone     string
}

// Identity is the verified content of a session token.
type Identity struct {
	Email     string
	Name      string
	TokenID   string
	ExpiresAt time.Time
}

// VerifyResult reports the outcome of VerifyEmail.
type VerifyResult struct {
	Email           string
	AlreadyVerified bool
}

// Mailer delivers account emails. Implementations decide templates and
// transport; the engine only hands over the opaque token.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, name, token string) error
	SendPasswordResetEmail(ctx context.Context, email, name, token string) error
}
