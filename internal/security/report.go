package security

import (
	"log/slog"
	"time"
)

// Report summarizes which account protections are actually in force.
type Report struct {
	SigningAlgorithm     string
	TokenTTL             time.Duration
	BcryptCost           int
	RehashOnLogin        bool
	LockoutActive        bool
	LockoutThreshold     int
	LockoutDuration      time.Duration
	RateLimitingActive   bool
	RevocationActive     bool
	MailDeliveryActive   bool
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
	AuditActive          bool
	LatencyHistogramsOn  bool
}

type ReportInput struct {
	SigningAlgorithm     string
	TokenTTL             time.Duration
	BcryptCost           int
	RehashOnLogin        bool
	LockoutThreshold     int
	LockoutDuration      time.Duration
	RateLimitEnabled     bool
	LimiterConfigured    bool
	RevokeOnLogout       bool
	RevocationConfigured bool
	MailerConfigured     bool
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
	AuditEnabled         bool
	MetricsEnabled       bool
	LatencyHistograms    bool
}

// BuildReport resolves configured switches against the collaborators that
// back them. A limiter flag without Redis is reported inactive.
func BuildReport(input ReportInput) Report {
	return Report{
		SigningAlgorithm:     input.SigningAlgorithm,
		TokenTTL:             input.TokenTTL,
		BcryptCost:           input.BcryptCost,
		RehashOnLogin:        input.RehashOnLogin,
		LockoutActive:        input.LockoutThreshold > 0 && input.LockoutDuration > 0,
		LockoutThreshold:     input.LockoutThreshold,
		LockoutDuration:      input.LockoutDuration,
		RateLimitingActive:   input.RateLimitEnabled && input.LimiterConfigured,
		RevocationActive:     input.RevokeOnLogout && input.RevocationConfigured,
		MailDeliveryActive:   input.MailerConfigured,
		EmailVerificationTTL: input.EmailVerificationTTL,
		PasswordResetTTL:     input.PasswordResetTTL,
		AuditActive:          input.AuditEnabled,
		LatencyHistogramsOn:  input.MetricsEnabled && input.LatencyHistograms,
	}
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("signing_alg", r.SigningAlgorithm),
		slog.Duration("token_ttl", r.TokenTTL),
		slog.Int("bcrypt_cost", r.BcryptCost),
		slog.Bool("rehash_on_login", r.RehashOnLogin),
		slog.Bool("lockout", r.LockoutActive),
		slog.Int("lockout_threshold", r.LockoutThreshold),
		slog.Duration("lockout_duration", r.LockoutDuration),
		slog.Bool("rate_limiting", r.RateLimitingActive),
		slog.Bool("revocation", r.RevocationActive),
		slog.Bool("mail_delivery", r.MailDeliveryActive),
		slog.Bool("audit", r.AuditActive),
	)
}
