package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/donorhub"
	"github.com/labstack/echo/v4"
)

const (
	// MessageNoToken is returned when the Authorization header is missing.
	MessageNoToken = "No token provided"
	// MessageInvalidToken is returned for any rejected token.
	MessageInvalidToken = "Invalid or expired token"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by RequireAuth.
func IdentityFromContext(ctx context.Context) (*donorhub.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*donorhub.Identity)
	return id, ok
}

// WithIdentity stores id in ctx. Handlers under test use it to skip the guard.
func WithIdentity(ctx context.Context, id *donorhub.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// RequireAuth rejects requests without a valid bearer token with a 401
// *echo.HTTPError and stores the validated identity in the request context.
func RequireAuth(engine *donorhub.Engine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if engine == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, MessageInvalidToken)
			}

			token, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, MessageNoToken)
			}

			id, err := engine.ValidateToken(c.Request().Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, MessageInvalidToken)
			}

			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// ClientContext copies the caller's IP and User-Agent into the request
// context so the engine can key rate limits and audit events on them.
func ClientContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := donorhub.WithClientIP(c.Request().Context(), c.RealIP())
			ctx = donorhub.WithUserAgent(ctx, c.Request().UserAgent())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
