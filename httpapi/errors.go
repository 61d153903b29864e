package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MrEthical07/donorhub"
	"github.com/MrEthical07/donorhub/donations"
	"github.com/MrEthical07/donorhub/password"
	"github.com/MrEthical07/donorhub/payments"
	"github.com/labstack/echo/v4"
)

const messageInternal = "Internal server error"

// apiError is the resolved client view of an error.
type apiError struct {
	Status     int
	Message    string
	RetryAfter int
}

func fail(status int, message string) apiError {
	return apiError{Status: status, Message: message}
}

// classify maps every error a handler can return to a status and a
// client-safe message. Unknown errors become 500 without detail.
func classify(err error) apiError {
	var (
		httpErr     *echo.HTTPError
		rateErr     *donorhub.RateLimitedError
		lockErr     *donorhub.AccountLockedError
		credErr     *donorhub.InvalidCredentialsError
		donationErr *donations.ValidationError
		checkoutErr *payments.ValidationError
		providerErr *payments.ProviderError
	)

	switch {
	case errors.As(err, &httpErr):
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return apiError{Status: httpErr.Code, Message: msg}

	case errors.As(err, &rateErr):
		minutes := rateErr.RemainingMinutes()
		if minutes < 1 {
			minutes = 1
		}
		return apiError{
			Status:     http.StatusTooManyRequests,
			Message:    fmt.Sprintf("Too many attempts. Please try again in %d minutes.", minutes),
			RetryAfter: max(rateErr.RemainingSeconds(), 1),
		}
	case errors.As(err, &lockErr):
		if lockErr.JustLocked {
			return fail(http.StatusUnauthorized, fmt.Sprintf("Too many failed login attempts. Account locked for %d minutes.", lockErr.RemainingMinutes()))
		}
		return fail(http.StatusUnauthorized, fmt.Sprintf("Account is locked. Please try again in %d minutes.", lockErr.RemainingMinutes()))
	case errors.As(err, &credErr):
		return fail(http.StatusUnauthorized, fmt.Sprintf("Invalid credentials. %d attempts remaining.", credErr.AttemptsRemaining))
	case errors.Is(err, donorhub.ErrInvalidCredentials):
		return fail(http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, donorhub.ErrUnauthorized):
		return fail(http.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, donorhub.ErrCurrentPasswordInvalid):
		return fail(http.StatusUnauthorized, "Current password is incorrect")

	case errors.Is(err, donorhub.ErrInvalidRequest):
		return fail(http.StatusBadRequest, "Invalid request")
	case errors.Is(err, donorhub.ErrPasswordPolicy):
		return fail(http.StatusBadRequest, fmt.Sprintf("Password must be between %d and %d characters long", password.MinLength, password.MaxLength))
	case errors.Is(err, donorhub.ErrPasswordReuse):
		return fail(http.StatusBadRequest, "New password must be different from current password")
	case errors.Is(err, donorhub.ErrResetTokenExpired):
		return fail(http.StatusBadRequest, "Reset token has expired")
	case errors.Is(err, donorhub.ErrResetTokenInvalid):
		return fail(http.StatusBadRequest, "Invalid or expired reset token")
	case errors.Is(err, donorhub.ErrVerificationTokenExpired):
		return fail(http.StatusBadRequest, "Verification token has expired")
	case errors.Is(err, donorhub.ErrVerificationTokenInvalid):
		return fail(http.StatusBadRequest, "Invalid or expired verification token")
	case errors.Is(err, donorhub.ErrEmailAlreadyVerified):
		return fail(http.StatusBadRequest, "Email is already verified")
	case errors.As(err, &donationErr):
		return fail(http.StatusBadRequest, donationErr.Message)
	case errors.As(err, &checkoutErr):
		return fail(http.StatusBadRequest, checkoutErr.Message)
	case errors.Is(err, payments.ErrInvalidSignature):
		return fail(http.StatusBadRequest, "Webhook signature verification failed")

	case errors.Is(err, donorhub.ErrUserNotFound):
		return fail(http.StatusNotFound, "User not found")
	case errors.Is(err, payments.ErrCustomerNotFound):
		return fail(http.StatusNotFound, "No billing account found for this email")
	case errors.Is(err, payments.ErrSubscriptionNotFound):
		return fail(http.StatusNotFound, "Subscription not found")
	case errors.Is(err, donorhub.ErrAccountExists):
		return fail(http.StatusConflict, "User already exists")

	case errors.As(err, &providerErr):
		if providerErr.Message != "" {
			return fail(http.StatusInternalServerError, providerErr.Message)
		}
		return fail(http.StatusInternalServerError, "Payment provider error")
	case errors.Is(err, donorhub.ErrMailDelivery):
		return fail(http.StatusInternalServerError, "Failed to send email")
	default:
		return fail(http.StatusInternalServerError, messageInternal)
	}
}

// ErrorHandler renders every handler and middleware error as the
// {success:false,message} envelope. Server errors are logged with detail.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resolved := classify(err)
		if resolved.Status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", resolved.Status,
				"error", err,
			)
		}
		if resolved.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(resolved.RetryAfter))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(resolved.Status)
		} else {
			writeErr = c.JSON(resolved.Status, envelope{Success: false, Message: resolved.Message})
		}
		if writeErr != nil {
			logger.WarnContext(c.Request().Context(), "write error response", "error", writeErr)
		}
	}
}
