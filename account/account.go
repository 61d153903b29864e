package account

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no account exists for the key.
	ErrNotFound = errors.New("account not found")
	// ErrExists is returned by Store.Create when the email is already registered.
	ErrExists = errors.New("account already exists")
	// ErrConflict is returned by Store.Update when a guard condition no longer holds.
	ErrConflict = errors.New("account update conflict")
	// ErrInvalidEmail is returned by NormalizeEmail for malformed addresses.
	ErrInvalidEmail = errors.New("invalid email address")
)

// Account is the persisted credential record. Attribute names match the
// table layout shared with the web client.
type Account struct {
	Email          string `dynamodbav:"email" json:"email"`
	Name           string `dynamodbav:"name,omitempty" json:"name,omitempty"`
	FirstName      string `dynamodbav:"firstName,omitempty" json:"firstName,omitempty"`
	LastName       string `dynamodbav:"lastName,omitempty" json:"lastName,omitempty"`
	Phone          string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	HashedPassword string `dynamodbav:"hashedPassword" json:"-"`

	FailedAttempts int        `dynamodbav:"failedAttempts" json:"-"`
	LockedUntil    *time.Time `dynamodbav:"lockedUntil,omitempty" json:"-"`

	ResetToken   string     `dynamodbav:"resetToken,omitempty" json:"-"`
	ResetExpires *time.Time `dynamodbav:"resetExpires,omitempty" json:"-"`

	VerificationToken   string     `dynamodbav:"verification_token,omitempty" json:"-"`
	VerificationExpires *time.Time `dynamodbav:"verification_expires,omitempty" json:"-"`
	EmailVerified       bool       `dynamodbav:"email_verified" json:"email_verified"`

	EmailSuppressed   bool   `dynamodbav:"email_suppressed" json:"-"`
	SuppressionReason string `dynamodbav:"suppression_reason,omitempty" json:"-"`

	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updatedAt,omitempty" json:"-"`
}

// DisplayName returns Name, falling back to "First Last".
func (a *Account) DisplayName() string {
	if a == nil {
		return ""
	}
	if a.Name != "" {
		return a.Name
	}
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// IsLocked reports whether the lock window is still open at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a != nil && a.LockedUntil != nil && a.LockedUntil.After(now)
}

// Token is an opaque token digest and its absolute expiry.
type Token struct {
	Hash    string
	Expires time.Time
}

// Update describes every field change of one state transition. Nil pointers
// and false Clear flags leave the stored attribute untouched. Stores apply
// the whole Update as a single conditional write.
type Update struct {
	HashedPassword *string
	FailedAttempts *int
	LockedUntil    *time.Time
	ClearLock      bool

	ResetToken      *Token
	ClearResetToken bool

	VerificationToken      *Token
	ClearVerificationToken bool
	EmailVerified          *bool

	EmailSuppressed   *bool
	SuppressionReason *string

	// ExpectResetToken and ExpectVerificationToken guard token consumption:
	// the write fails with ErrConflict when the stored digest differs.
	ExpectResetToken        string
	ExpectVerificationToken string

	UpdatedAt time.Time
}

// Empty reports whether the update carries no field change.
func (u Update) Empty() bool {
	return u.HashedPassword == nil &&
		u.FailedAttempts == nil &&
		u.LockedUntil == nil &&
		!u.ClearLock &&
		u.ResetToken == nil &&
		!u.ClearResetToken &&
		u.VerificationToken == nil &&
		!u.ClearVerificationToken &&
		u.EmailVerified == nil &&
		u.EmailSuppressed == nil &&
		u.SuppressionReason == nil
}

// Apply mutates acct in place. In-memory stores and tests use it to mirror
// what the DynamoDB update expression does.
func (u Update) Apply(acct *Account) {
	if acct == nil {
		return
	}
	if u.HashedPassword != nil {
		acct.HashedPassword = *u.HashedPassword
	}
	if u.FailedAttempts != nil {
		acct.FailedAttempts = *u.FailedAttempts
	}
	if u.ClearLock {
		acct.LockedUntil = nil
	}
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		acct.LockedUntil = &t
	}
	if u.ClearResetToken {
		acct.ResetToken = ""
		acct.ResetExpires = nil
	}
	if u.ResetToken != nil {
		exp := u.ResetToken.Expires
		acct.ResetToken = u.ResetToken.Hash
		acct.ResetExpires = &exp
	}
	if u.ClearVerificationToken {
		acct.VerificationToken = ""
		acct.VerificationExpires = nil
	}
	if u.VerificationToken != nil {
		exp := u.VerificationToken.Expires
		acct.VerificationToken = u.VerificationToken.Hash
		acct.VerificationExpires = &exp
	}
	if u.EmailVerified != nil {
		acct.EmailVerified = *u.EmailVerified
	}
	if u.EmailSuppressed != nil {
		acct.EmailSuppressed = *u.EmailSuppressed
	}
	if u.SuppressionReason != nil {
		acct.SuppressionReason = *u.SuppressionReason
	}
	if !u.UpdatedAt.IsZero() {
		acct.UpdatedAt = u.UpdatedAt
	}
}

// Store persists account records keyed by normalized email.
type Store interface {
	Get(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, acct *Account) error
	Update(ctx context.Context, email string, update Update) error
	FindByResetToken(ctx context.Context, tokenHash string) (*Account, error)
	FindByVerificationToken(ctx context.Context, tokenHash string) (*Account, error)
}

// NormalizeEmail trims and lowercases an address and rejects values that do
// not parse as a bare RFC 5322 address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
