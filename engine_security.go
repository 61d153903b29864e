package donorhub

import (
	"github.com/MrEthical07/donorhub/internal/security"
)

// SecurityReport describes the protections the engine enforces with its
// current configuration and collaborators.
func (e *Engine) SecurityReport() security.Report {
	if e == nil {
		return security.Report{}
	}
	cfg := e.config
	return security.BuildReport(security.ReportInput{
		SigningAlgorithm:     "HS256",
		TokenTTL:             e.tokens.TTL(),
		BcryptCost:           e.passwords.Cost(),
		RehashOnLogin:        cfg.Password.UpgradeOnLogin,
		LockoutThreshold:     cfg.Lockout.Threshold,
		LockoutDuration:      cfg.Lockout.Duration,
		RateLimitEnabled:     cfg.RateLimit.Enabled,
		LimiterConfigured:    e.limiter != nil,
		RevokeOnLogout:       cfg.Session.RevokeOnLogout,
		RevocationConfigured: e.revocations != nil,
		MailerConfigured:     e.mailer != nil,
		EmailVerificationTTL: cfg.EmailVerification.TTL,
		PasswordResetTTL:     cfg.PasswordReset.TTL,
		AuditEnabled:         cfg.Audit.Enabled,
		MetricsEnabled:       cfg.Metrics.Enabled,
		LatencyHistograms:    cfg.Metrics.EnableLatencyHistograms,
	})
}
