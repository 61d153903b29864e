package donorhub

import (
	"errors"
	"time"

	"github.com/MrEthical07/donorhub/jwt"
	"github.com/MrEthical07/donorhub/password"
)

// Config defines a public type used by donorhub APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session           SessionConfig
	Password          PasswordConfig
	Lockout           LockoutConfig
	PasswordReset     PasswordResetConfig
	EmailVerification EmailVerificationConfig
	RateLimit         RateLimitConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

// SessionConfig controls session token issuance.
type SessionConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	// RevokeOnLogout denylists the token id in Redis on logout. It has no
	// effect without a Redis client.
	RevokeOnLogout bool
}

// PasswordConfig controls bcrypt hashing.
type PasswordConfig struct {
	Cost           int
	UpgradeOnLogin bool
}

// LockoutConfig controls the failed-login lockout.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// PasswordResetConfig controls reset token lifetime.
type PasswordResetConfig struct {
	TTL time.Duration
}

// EmailVerificationConfig controls verification token lifetime.
type EmailVerificationConfig struct {
	TTL time.Duration
}

// RateLimitConfig controls the sliding-window limiter. It has no effect
// without a Redis client.
type RateLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
}

// AuditConfig controls the asynchronous audit queue.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// SinkTimeout bounds each sink call. Zero means 5s.
	SinkTimeout time.Duration
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. Session.Secret must still
// be supplied.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:            jwt.DefaultTTL,
			Issuer:         "donorhub",
			RevokeOnLogout: true,
		},
		Password: PasswordConfig{
			Cost:           password.DefaultCost,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			Threshold: 3,
			Duration:  15 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			TTL: 15 * time.Minute,
		},
		EmailVerification: EmailVerificationConfig{
			TTL: time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxAttempts: 5,
			Window:      time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.Secret = cloneBytes(cfg.Session.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
func (c *Config) Validate() error {
	if len(c.Session.Secret) < jwt.MinSecretLength {
		return errors.New("Session Secret must be at least 32 bytes")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}

	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	if c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}
	if c.EmailVerification.TTL <= 0 {
		return errors.New("EmailVerification TTL must be > 0")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxAttempts <= 0 {
			return errors.New("RateLimit MaxAttempts must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
