package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/donorhub"
	"github.com/MrEthical07/donorhub/donations"
	"github.com/MrEthical07/donorhub/middleware"
	"github.com/MrEthical07/donorhub/payments"
	"github.com/labstack/echo/v4"
)

// WelcomeMailer greets a donor once their address is verified.
type WelcomeMailer interface {
	SendWelcomeEmail(ctx context.Context, email, name string) error
}

// Deps wires the API to its services. Payments, Welcome, and Metrics are optional.
type Deps struct {
	Engine    *donorhub.Engine
	Donations *donations.Service
	Payments  payments.Provider
	Welcome   WelcomeMailer
	// EmailEventsSecret guards /email/events. Empty disables the endpoint.
	EmailEventsSecret string
	Metrics           http.Handler
	Logger            *slog.Logger
}

// API holds the route handlers.
type API struct {
	engine            *donorhub.Engine
	donations         *donations.Service
	payments          payments.Provider
	welcome           WelcomeMailer
	emailEventsSecret string
	metrics           http.Handler
	logger            *slog.Logger
}

// New validates deps and returns an API.
func New(deps Deps) (*API, error) {
	if deps.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	if deps.Donations == nil {
		return nil, errors.New("httpapi: donation service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		engine:            deps.Engine,
		donations:         deps.Donations,
		payments:          deps.Payments,
		welcome:           deps.Welcome,
		emailEventsSecret: deps.EmailEventsSecret,
		metrics:           deps.Metrics,
		logger:            logger,
	}, nil
}

// Register installs the error handler, CORS, and every route on e. An echo
// instance without an IPExtractor gets one that trusts only the TCP peer.
func (a *API) Register(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler(a.logger)
	if e.IPExtractor == nil {
		e.IPExtractor = echo.ExtractIPDirect()
	}
	e.Pre(CORS())
	e.Use(middleware.ClientContext())

	requireAuth := middleware.RequireAuth(a.engine)

	auth := e.Group("/auth")
	auth.POST("/login", a.login)
	auth.POST("/register", a.register)
	auth.POST("/logout", a.logout)
	auth.POST("/change-password", a.changePassword, requireAuth)
	auth.POST("/forgot-password", a.forgotPassword)
	auth.POST("/reset-password", a.resetPassword)
	auth.GET("/verify-email", a.verifyEmail)
	auth.POST("/resend-verification", a.resendVerification)
	auth.GET("/me", a.me, requireAuth)

	e.POST("/donations", a.createDonation)
	e.GET("/donations", a.listDonations, requireAuth)

	stripe := e.Group("/stripe")
	stripe.POST("/create-checkout-session", a.createCheckoutSession)
	stripe.POST("/webhook", a.stripeWebhook)
	stripe.POST("/create-portal-session", a.createPortalSession, requireAuth)
	stripe.GET("/subscriptions", a.listSubscriptions, requireAuth)
	stripe.DELETE("/subscriptions/:id", a.cancelSubscription, requireAuth)

	e.POST("/email/events", a.emailEvents)

	e.GET("/healthz", a.healthz)
	if a.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(a.metrics))
	}
}

// CORS allows any origin and answers preflight requests with an empty 200.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			h.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type, Authorization, Stripe-Signature, X-Webhook-Secret")
			h.Set(echo.HeaderAccessControlAllowMethods, "GET, POST, DELETE, OPTIONS")
			if c.Request().Method == http.MethodOptions {
				h.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}

// envelope is the common response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ok(message string) envelope {
	return envelope{Success: true, Message: message}
}

// bind decodes a JSON body into v. An empty body leaves v zero-valued.
func bind(c echo.Context, v any) error {
	err := c.Echo().JSONSerializer.Deserialize(c, v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
}

func identity(c echo.Context) (*donorhub.Identity, error) {
	id, found := middleware.IdentityFromContext(c.Request().Context())
	if !found || id == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, middleware.MessageNoToken)
	}
	return id, nil
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, message)
}

func (a *API) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope{Success: true})
}
