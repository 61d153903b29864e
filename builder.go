package donorhub

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/donorhub/account"
	"github.com/MrEthical07/donorhub/internal/rate"
	"github.com/MrEthical07/donorhub/internal/revocation"
	"github.com/MrEthical07/donorhub/jwt"
	"github.com/MrEthical07/donorhub/password"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by donorhub APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	accounts account.Store
	mailer   Mailer
	sink     AuditSink
	logger   *slog.Logger
	now      func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAccountStore sets the credential store. It is required.
func (b *Builder) WithAccountStore(store account.Store) *Builder {
	b.accounts = store
	return b
}

// WithRedis enables the login/registration rate limiter and the logout
// denylist. Without it both are disabled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMailer sets the verification and reset mail transport. Without it
// tokens are issued but not delivered.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the logger for fail-open and delivery warnings.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token expiry and lockout arithmetic.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	hasher, err := password.NewBcrypt(password.Config{Cost: cfg.Password.Cost})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret: cfg.Session.Secret,
		TTL:    cfg.Session.TTL,
		Issuer: cfg.Session.Issuer,
		Now:    now,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:    cfg,
		accounts:  b.accounts,
		passwords: hasher,
		tokens:    tokens,
		mailer:    b.mailer,
		logger:    logger,
		now:       now,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditQueue(cfg.Audit, b.sink),
	}

	if b.redis != nil {
		if cfg.RateLimit.Enabled {
			e.limiter = rate.New(b.redis,
				rate.WithClock(now),
				rate.WithErrorHook(func(op, key string, err error) {
					e.metricInc(MetricRateLimitFailOpen)
					e.logger.Warn("donorhub: rate limiter failing open", "op", op, "key", key, "error", err)
				}),
			)
		}
		if cfg.Session.RevokeOnLogout {
			e.revocations = revocation.New(b.redis, now)
		}
	}

	b.built = true
	return e, nil
}
