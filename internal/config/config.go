package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/donorhub/password"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// minSecretLength matches the engine's HMAC key requirement.
const minSecretLength = 32

type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Auth        AuthConfig
	Redis       RedisConfig
	Dynamo      DynamoConfig
	Stripe      StripeConfig
	SMTP        SMTPConfig
	Site        SiteConfig
	EmailEvents EmailEventsConfig
	Metrics     MetricsConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	MaxBodySize     int // in KB
	ShutdownTimeout time.Duration
	// TrustedProxies lists the CIDRs allowed to set X-Forwarded-For. Empty
	// means the client IP is always the TCP peer.
	TrustedProxies []string
}

// TrustedNets parses TrustedProxies.
func (s ServerConfig) TrustedNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: trusted-proxies entry %q is not a CIDR", ErrInvalidConfig, raw)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type AuthConfig struct {
	JWTSecret       string
	TokenTTL        time.Duration
	BcryptCost      int
	RateLimit       bool
	AuditLog        bool
	RevokeOnLogout  bool
	UpgradeOnLogin  bool
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

type RedisConfig struct {
	URL string // empty disables rate limiting and revocation
}

type DynamoConfig struct {
	Region          string
	Endpoint        string // DynamoDB Local or LocalStack
	AccessKeyID     string
	SecretAccessKey string
	UsersTable      string
	DonationsTable  string
	Memory          bool // in-process tables for development
}

type StripeConfig struct {
	SecretKey       string // empty disables the payment routes
	WebhookSecret   string
	SuccessURL      string
	CancelURL       string
	PortalReturnURL string
	Currency        string
	ProductName     string
}

type SMTPConfig struct {
	Host     string // empty logs mail instead of sending it
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type SiteConfig struct {
	URL     string
	OrgName string
}

type EmailEventsConfig struct {
	Secret string
}

type MetricsConfig struct {
	Enabled bool

	// OTel installs an OpenTelemetry SDK MeterProvider that writes the
	// engine counters to stdout as JSON every OTelInterval.
	OTel         bool
	OTelInterval time.Duration
}

// NewFromCLI reads every flag registered by Flags.
func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            cmd.String("host"),
			Port:            int(cmd.Int("port")),
			MaxBodySize:     int(cmd.Int("max-body-size")),
			ShutdownTimeout: cmd.Duration("shutdown-timeout"),
			TrustedProxies:  cmd.StringSlice("trusted-proxies"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(cmd.String("log-level")),
			Format: strings.ToLower(cmd.String("log-format")),
		},
		Auth: AuthConfig{
			JWTSecret:       cmd.String("jwt-secret"),
			TokenTTL:        cmd.Duration("token-ttl"),
			BcryptCost:      int(cmd.Int("bcrypt-cost")),
			RateLimit:       cmd.Bool("rate-limit"),
			AuditLog:        cmd.Bool("audit-log"),
			RevokeOnLogout:  cmd.Bool("revoke-on-logout"),
			UpgradeOnLogin:  cmd.Bool("rehash-on-login"),
			VerificationTTL: cmd.Duration("verification-ttl"),
			ResetTTL:        cmd.Duration("reset-ttl"),
		},
		Redis: RedisConfig{
			URL: cmd.String("redis-url"),
		},
		Dynamo: DynamoConfig{
			Region:          cmd.String("aws-region"),
			Endpoint:        cmd.String("dynamodb-endpoint"),
			AccessKeyID:     cmd.String("aws-access-key-id"),
			SecretAccessKey: cmd.String("aws-secret-access-key"),
			UsersTable:      cmd.String("users-table"),
			DonationsTable:  cmd.String("donations-table"),
			Memory:          cmd.Bool("memory-store"),
		},
		Stripe: StripeConfig{
			SecretKey:       cmd.String("stripe-secret-key"),
			WebhookSecret:   cmd.String("stripe-webhook-secret"),
			SuccessURL:      cmd.String("stripe-success-url"),
			CancelURL:       cmd.String("stripe-cancel-url"),
			PortalReturnURL: cmd.String("stripe-portal-return-url"),
			Currency:        strings.ToLower(cmd.String("stripe-currency")),
			ProductName:     cmd.String("stripe-product-name"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Site: SiteConfig{
			URL:     strings.TrimRight(cmd.String("site-url"), "/"),
			OrgName: cmd.String("org-name"),
		},
		EmailEvents: EmailEventsConfig{
			Secret: cmd.String("email-events-secret"),
		},
		Metrics: MetricsConfig{
			Enabled:      cmd.Bool("metrics"),
			OTel:         cmd.Bool("otel-metrics"),
			OTelInterval: cmd.Duration("otel-interval"),
		},
	}

	applyStripeDefaults(cfg)
	return cfg
}

// applyStripeDefaults points the checkout redirects at the site when unset.
func applyStripeDefaults(cfg *Config) {
	if cfg.Site.URL == "" {
		return
	}
	if cfg.Stripe.SuccessURL == "" {
		cfg.Stripe.SuccessURL = cfg.Site.URL + "/donate/success?session_id={CHECKOUT_SESSION_ID}"
	}
	if cfg.Stripe.CancelURL == "" {
		cfg.Stripe.CancelURL = cfg.Site.URL + "/donate"
	}
	if cfg.Stripe.PortalReturnURL == "" {
		cfg.Stripe.PortalReturnURL = cfg.Site.URL + "/dashboard"
	}
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// PaymentsEnabled reports whether a Stripe key is configured.
func (c *Config) PaymentsEnabled() bool {
	return c.Stripe.SecretKey != ""
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("%w: jwt-secret must be at least %d bytes", ErrInvalidConfig, minSecretLength)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if _, err := c.Server.TrustedNets(); err != nil {
		return err
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log-level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log-format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("%w: token-ttl must be > 0", ErrInvalidConfig)
	}
	if u, err := url.Parse(c.Site.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: site-url must be an absolute URL", ErrInvalidConfig)
	}
	if !c.Dynamo.Memory && (c.Dynamo.UsersTable == "" || c.Dynamo.DonationsTable == "") {
		return fmt.Errorf("%w: users-table and donations-table are required", ErrInvalidConfig)
	}
	if c.PaymentsEnabled() {
		if c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("%w: stripe-webhook-secret is required with stripe-secret-key", ErrInvalidConfig)
		}
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return fmt.Errorf("%w: smtp-from is required with smtp-host", ErrInvalidConfig)
	}
	return nil
}

// sources resolves a flag from the environment, then the TOML file.
func sources(envKey, tomlKey string, tomlSrc altsrc.Sourcer) cli.ValueSourceChain {
	chain := cli.EnvVars(envKey)
	chain.Chain = append(chain.Chain, toml.TOML(tomlKey, tomlSrc))
	return chain
}

// Flags returns the server flags. Each flag reads from the command line,
// then its environment variable, then the TOML file named by --config.
func Flags() []cli.Flag {
	var configFile string
	src := altsrc.NewStringPtrSourcer(&configFile)

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "config.toml",
			Usage:       "Path to configuration file",
			Destination: &configFile,
			Sources:     cli.EnvVars("DONORHUB_CONFIG"),
		},

		// Server
		&cli.StringFlag{
			Name:    "host",
			Value:   "0.0.0.0",
			Usage:   "Host to bind to",
			Sources: sources("HOST", "server.host", src),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: sources("PORT", "server.port", src),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   256,
			Usage:   "Maximum request body size in KB",
			Sources: sources("MAX_BODY_SIZE", "server.max_body_size", src),
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Value:   10 * time.Second,
			Usage:   "Grace period for in-flight requests on shutdown",
			Sources: sources("SHUTDOWN_TIMEOUT", "server.shutdown_timeout", src),
		},
		&cli.StringSliceFlag{
			Name:    "trusted-proxies",
			Usage:   "CIDRs of proxies whose X-Forwarded-For header is trusted",
			Sources: sources("TRUSTED_PROXIES", "server.trusted_proxies", src),
		},

		// Logging
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: sources("LOG_LEVEL", "log.level", src),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: sources("LOG_FORMAT", "log.format", src),
		},

		// Auth
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "HMAC secret for session tokens (32+ bytes)",
			Sources: sources("JWT_SECRET", "auth.jwt_secret", src),
		},
		&cli.DurationFlag{
			Name:    "token-ttl",
			Value:   24 * time.Hour,
			Usage:   "Session token lifetime",
			Sources: sources("TOKEN_TTL", "auth.token_ttl", src),
		},
		&cli.IntFlag{
			Name:    "bcrypt-cost",
			Value:   password.DefaultCost,
			Usage:   "bcrypt cost for new password hashes",
			Sources: sources("BCRYPT_COST", "auth.bcrypt_cost", src),
		},
		&cli.BoolFlag{
			Name:    "rate-limit",
			Value:   true,
			Usage:   "Enable Redis-backed rate limiting",
			Sources: sources("RATE_LIMIT", "auth.rate_limit", src),
		},
		&cli.BoolFlag{
			Name:    "audit-log",
			Value:   true,
			Usage:   "Write security audit events to the log",
			Sources: sources("AUDIT_LOG", "auth.audit_log", src),
		},
		&cli.BoolFlag{
			Name:    "revoke-on-logout",
			Value:   true,
			Usage:   "Deny logged-out tokens until they expire (needs Redis)",
			Sources: sources("REVOKE_ON_LOGOUT", "auth.revoke_on_logout", src),
		},
		&cli.BoolFlag{
			Name:    "rehash-on-login",
			Value:   true,
			Usage:   "Rehash passwords stored with a lower bcrypt cost",
			Sources: sources("REHASH_ON_LOGIN", "auth.rehash_on_login", src),
		},
		&cli.DurationFlag{
			Name:    "verification-ttl",
			Value:   time.Hour,
			Usage:   "Email verification link lifetime",
			Sources: sources("VERIFICATION_TTL", "auth.verification_ttl", src),
		},
		&cli.DurationFlag{
			Name:    "reset-ttl",
			Value:   15 * time.Minute,
			Usage:   "Password reset link lifetime",
			Sources: sources("RESET_TTL", "auth.reset_ttl", src),
		},

		// Redis
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL (redis://host:6379/0); empty disables rate limiting and revocation",
			Sources: sources("REDIS_URL", "redis.url", src),
		},

		// DynamoDB
		&cli.StringFlag{
			Name:    "aws-region",
			Value:   "us-east-1",
			Usage:   "AWS region",
			Sources: sources("AWS_REGION", "dynamodb.region", src),
		},
		&cli.StringFlag{
			Name:    "dynamodb-endpoint",
			Usage:   "DynamoDB endpoint override",
			Sources: sources("DYNAMODB_ENDPOINT", "dynamodb.endpoint", src),
		},
		&cli.StringFlag{
			Name:    "aws-access-key-id",
			Usage:   "Static AWS access key (defaults to the SDK credential chain)",
			Sources: sources("AWS_ACCESS_KEY_ID", "dynamodb.access_key_id", src),
		},
		&cli.StringFlag{
			Name:    "aws-secret-access-key",
			Usage:   "Static AWS secret key",
			Sources: sources("AWS_SECRET_ACCESS_KEY", "dynamodb.secret_access_key", src),
		},
		&cli.StringFlag{
			Name:    "users-table",
			Value:   "donorhub-users",
			Usage:   "DynamoDB table for accounts",
			Sources: sources("USERS_TABLE", "dynamodb.users_table", src),
		},
		&cli.StringFlag{
			Name:    "donations-table",
			Value:   "donorhub-donations",
			Usage:   "DynamoDB table for donations",
			Sources: sources("DONATIONS_TABLE", "dynamodb.donations_table", src),
		},
		&cli.BoolFlag{
			Name:    "memory-store",
			Usage:   "Keep accounts and donations in memory (development only)",
			Sources: sources("MEMORY_STORE", "dynamodb.memory", src),
		},

		// Stripe
		&cli.StringFlag{
			Name:    "stripe-secret-key",
			Usage:   "Stripe secret API key; empty disables payments",
			Sources: sources("STRIPE_SECRET_KEY", "stripe.secret_key", src),
		},
		&cli.StringFlag{
			Name:    "stripe-webhook-secret",
			Usage:   "Stripe webhook signing secret",
			Sources: sources("STRIPE_WEBHOOK_SECRET", "stripe.webhook_secret", src),
		},
		&cli.StringFlag{
			Name:    "stripe-success-url",
			Usage:   "Checkout success redirect (defaults to site-url/donate/success)",
			Sources: sources("STRIPE_SUCCESS_URL", "stripe.success_url", src),
		},
		&cli.StringFlag{
			Name:    "stripe-cancel-url",
			Usage:   "Checkout cancel redirect (defaults to site-url/donate)",
			Sources: sources("STRIPE_CANCEL_URL", "stripe.cancel_url", src),
		},
		&cli.StringFlag{
			Name:    "stripe-portal-return-url",
			Usage:   "Billing portal return URL (defaults to site-url/dashboard)",
			Sources: sources("STRIPE_PORTAL_RETURN_URL", "stripe.portal_return_url", src),
		},
		&cli.StringFlag{
			Name:    "stripe-currency",
			Value:   "usd",
			Usage:   "Checkout currency",
			Sources: sources("STRIPE_CURRENCY", "stripe.currency", src),
		},
		&cli.StringFlag{
			Name:    "stripe-product-name",
			Value:   "Donation",
			Usage:   "Line item name shown on checkout",
			Sources: sources("STRIPE_PRODUCT_NAME", "stripe.product_name", src),
		},

		// SMTP
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP relay host; empty logs mail instead of sending",
			Sources: sources("SMTP_HOST", "smtp.host", src),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP relay port",
			Sources: sources("SMTP_PORT", "smtp.port", src),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: sources("SMTP_USERNAME", "smtp.username", src),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: sources("SMTP_PASSWORD", "smtp.password", src),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: sources("SMTP_FROM", "smtp.from", src),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Sender display name (defaults to org-name)",
			Sources: sources("SMTP_FROM_NAME", "smtp.from_name", src),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS to the relay",
			Sources: sources("SMTP_TLS", "smtp.tls", src),
		},

		// Site
		&cli.StringFlag{
			Name:    "site-url",
			Value:   "http://localhost:3000",
			Usage:   "Public site URL used in mail links and redirects",
			Sources: sources("SITE_URL", "site.url", src),
		},
		&cli.StringFlag{
			Name:    "org-name",
			Value:   "DonorHub",
			Usage:   "Organization name used in mail",
			Sources: sources("ORG_NAME", "site.org_name", src),
		},

		&cli.StringFlag{
			Name:    "email-events-secret",
			Usage:   "Shared secret for the SES bounce/complaint webhook",
			Sources: sources("EMAIL_EVENTS_SECRET", "email_events.secret", src),
		},
		&cli.BoolFlag{
			Name:    "metrics",
			Value:   true,
			Usage:   "Serve Prometheus metrics on /metrics",
			Sources: sources("METRICS", "metrics.enabled", src),
		},
		&cli.BoolFlag{
			Name:    "otel-metrics",
			Usage:   "Export engine counters through the OpenTelemetry SDK to stdout",
			Sources: sources("OTEL_METRICS", "metrics.otel", src),
		},
		&cli.DurationFlag{
			Name:    "otel-interval",
			Value:   time.Minute,
			Usage:   "Export interval for OpenTelemetry metrics",
			Sources: sources("OTEL_METRICS_INTERVAL", "metrics.otel_interval", src),
		},
	}
}
