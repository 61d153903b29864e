package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MrEthical07/donorhub"
	"github.com/MrEthical07/donorhub/account"
	"github.com/MrEthical07/donorhub/donations"
	"github.com/MrEthical07/donorhub/httpapi"
	"github.com/MrEthical07/donorhub/internal/config"
	"github.com/MrEthical07/donorhub/internal/stores"
	"github.com/MrEthical07/donorhub/mailer"
	otelexport "github.com/MrEthical07/donorhub/metrics/export/otel"
	promexport "github.com/MrEthical07/donorhub/metrics/export/prometheus"
	"github.com/MrEthical07/donorhub/payments"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	redisPingTimeout     = 3 * time.Second
	meterShutdownTimeout = 5 * time.Second
	meterName            = "github.com/MrEthical07/donorhub"
)

// App is the fully wired HTTP application. Close flushes OpenTelemetry
// metrics and releases the engine and the Redis client.
type App struct {
	Echo   *echo.Echo
	Engine *donorhub.Engine

	logger *slog.Logger
	redis  *redis.Client
	otel   *otelexport.OTelExporter
	meters *sdkmetric.MeterProvider
}

// NewApp connects the stores, builds the engine and services, and
// registers every route on a new echo instance.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	return newApp(ctx, cfg, logger, os.Stdout)
}

// newApp is NewApp with the OpenTelemetry metrics output made explicit.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, metricsOut io.Writer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{logger: logger}

	accounts, donationStore, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.URL != "" {
		app.redis, err = connectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
	}

	mail, err := newMailService(cfg, accounts, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	builder := donorhub.New().
		WithConfig(engineConfig(cfg)).
		WithAccountStore(accounts).
		WithMailer(mail).
		WithLogger(logger)
	if cfg.Auth.AuditLog {
		builder.WithAuditSink(donorhub.NewSlogSink(logger))
	}
	if app.redis != nil {
		builder.WithRedis(app.redis)
	}
	app.Engine, err = builder.Build()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	deps := httpapi.Deps{
		Engine:            app.Engine,
		Donations:         donations.NewService(donationStore, donations.WithReceipts(mail), donations.WithLogger(logger)),
		Welcome:           mail,
		EmailEventsSecret: cfg.EmailEvents.Secret,
		Logger:            logger,
	}
	if cfg.PaymentsEnabled() {
		stripe, err := payments.NewStripe(payments.StripeConfig{
			SecretKey:       cfg.Stripe.SecretKey,
			WebhookSecret:   cfg.Stripe.WebhookSecret,
			SuccessURL:      cfg.Stripe.SuccessURL,
			CancelURL:       cfg.Stripe.CancelURL,
			Currency:        cfg.Stripe.Currency,
			ProductName:     cfg.Stripe.ProductName,
			PortalReturnURL: cfg.Stripe.PortalReturnURL,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		deps.Payments = stripe
	} else {
		logger.Warn("stripe not configured, payment routes disabled")
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = promexport.NewPrometheusExporter(app.Engine).Handler()
	}
	if cfg.Metrics.OTel {
		app.meters, err = newMeterProvider(metricsOut, cfg.Metrics.OTelInterval)
		if err != nil {
			app.Close()
			return nil, err
		}
		otel.SetMeterProvider(app.meters)
		app.otel, err = otelexport.NewOTelExporter(app.meters.Meter(meterName), app.Engine)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("register otel metrics: %w", err)
		}
	}

	api, err := httpapi.New(deps)
	if err != nil {
		app.Close()
		return nil, err
	}

	trusted, err := cfg.Server.TrustedNets()
	if err != nil {
		app.Close()
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor(trusted)
	setupMiddleware(e, cfg, logger)
	api.Register(e)
	app.Echo = e
	return app, nil
}

// Close stops the engine's audit dispatcher and closes Redis.
func (a *App) Close() {
	if a.meters != nil {
		ctx, cancel := context.WithTimeout(context.Background(), meterShutdownTimeout)
		if err := a.meters.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown otel meter provider", "error", err)
		}
		cancel()
	}
	if a.otel != nil {
		if err := a.otel.Close(); err != nil {
			a.logger.Warn("unregister otel metrics", "error", err)
		}
	}
	if a.Engine != nil {
		a.Engine.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
}

func engineConfig(cfg *config.Config) donorhub.Config {
	out := donorhub.DefaultConfig()
	out.Session.Secret = []byte(cfg.Auth.JWTSecret)
	out.Session.TTL = cfg.Auth.TokenTTL
	out.Session.RevokeOnLogout = cfg.Auth.RevokeOnLogout
	if cfg.Auth.BcryptCost > 0 {
		out.Password.Cost = cfg.Auth.BcryptCost
	}
	out.Password.UpgradeOnLogin = cfg.Auth.UpgradeOnLogin
	if cfg.Auth.ResetTTL > 0 {
		out.PasswordReset.TTL = cfg.Auth.ResetTTL
	}
	if cfg.Auth.VerificationTTL > 0 {
		out.EmailVerification.TTL = cfg.Auth.VerificationTTL
	}
	out.RateLimit.Enabled = cfg.Auth.RateLimit
	out.Audit.Enabled = cfg.Auth.AuditLog
	out.Metrics.Enabled = cfg.Metrics.Enabled
	return out
}

func openStores(ctx context.Context, cfg *config.Config) (account.Store, donations.Store, error) {
	if cfg.Dynamo.Memory {
		return stores.NewMemoryAccounts(), stores.NewMemoryDonations(), nil
	}

	client, err := stores.NewDynamoClient(ctx, stores.DynamoConfig{
		Region:          cfg.Dynamo.Region,
		Endpoint:        cfg.Dynamo.Endpoint,
		AccessKeyID:     cfg.Dynamo.AccessKeyID,
		SecretAccessKey: cfg.Dynamo.SecretAccessKey,
	})
	if err != nil {
		return nil, nil, err
	}
	return stores.NewAccountTable(client, cfg.Dynamo.UsersTable),
		stores.NewDonationTable(client, cfg.Dynamo.DonationsTable),
		nil
}

func connectRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("ping redis: %w", err), client.Close())
	}
	return client, nil
}

func newMailService(cfg *config.Config, accounts account.Store, logger *slog.Logger) (*mailer.Service, error) {
	var sender mailer.Sender
	if cfg.SMTP.Host == "" {
		logger.Warn("smtp not configured, mail will be logged")
		sender = mailer.NewLogSender(logger)
	} else {
		fromName := cfg.SMTP.FromName
		if fromName == "" {
			fromName = cfg.Site.OrgName
		}
		smtp, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: fromName,
			TLS:      cfg.SMTP.TLS,
		})
		if err != nil {
			return nil, err
		}
		sender = smtp
	}

	return mailer.NewService(sender, mailer.Config{
		SiteURL:         cfg.Site.URL,
		OrgName:         cfg.Site.OrgName,
		VerificationTTL: cfg.Auth.VerificationTTL,
		ResetTTL:        cfg.Auth.ResetTTL,
	}, mailer.WithSuppression(accounts), mailer.WithLogger(logger))
}
