package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/donorhub/donations"
	"github.com/MrEthical07/donorhub/payments"
	"github.com/labstack/echo/v4"
)

// maxWebhookBody caps the signed payload read from the payment provider.
const maxWebhookBody = 64 << 10

type donorInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type checkoutRequest struct {
	Amount       float64   `json:"amount"`
	DonorInfo    donorInfo `json:"donor_info"`
	DonationType string    `json:"donation_type"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

func (a *API) paymentsEnabled() error {
	if a.payments == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Payments are not configured")
	}
	return nil
}

func (a *API) createCheckoutSession(c echo.Context) error {
	if err := a.paymentsEnabled(); err != nil {
		return err
	}
	var req checkoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	session, err := a.payments.CreateCheckoutSession(c.Request().Context(), payments.CheckoutRequest{
		Amount:  req.Amount,
		Cadence: payments.Cadence(strings.TrimSpace(req.DonationType)),
		Email:   req.DonorInfo.Email,
		Name:    req.DonorInfo.Name,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, checkoutResponse{CheckoutURL: session.URL, SessionID: session.ID})
}

// stripeWebhook records completed checkouts. Replays and undecodable events
// are acknowledged without a donation; store failures return 500 so the
// provider retries.
func (a *API) stripeWebhook(c echo.Context) error {
	if err := a.paymentsEnabled(); err != nil {
		return err
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest("Invalid request body")
	}

	ctx := c.Request().Context()
	evt, err := a.payments.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if errors.Is(err, payments.ErrMalformedEvent) {
		a.logger.WarnContext(ctx, "webhook payload not decodable", "error", err)
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}
	if err != nil {
		a.logger.WarnContext(ctx, "webhook rejected", "error", err)
		return err
	}

	if evt.Checkout != nil {
		d, created, err := a.donations.RecordCheckout(ctx, donations.CheckoutRecord{
			SessionID: evt.Checkout.SessionID,
			Amount:    evt.Checkout.Amount,
			Currency:  evt.Checkout.Currency,
			Type:      string(evt.Checkout.Cadence),
			Email:     evt.Checkout.Email,
			Name:      evt.Checkout.Name,
		})
		var verr *donations.ValidationError
		switch {
		case errors.As(err, &verr):
			// Unrecordable sessions are acknowledged so they are not redelivered.
			a.logger.WarnContext(ctx, "checkout not recorded", "event_id", evt.ID, "reason", verr.Message)
		case err != nil:
			return err
		default:
			a.logger.InfoContext(ctx, "checkout recorded",
				"event_id", evt.ID, "donation_id", d.DonationID, "created", created)
		}
	}
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

type portalRequest struct {
	ReturnURL string `json:"return_url"`
}

type portalResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

func (a *API) createPortalSession(c echo.Context) error {
	if err := a.paymentsEnabled(); err != nil {
		return err
	}
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req portalRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	url, err := a.payments.CreatePortalSession(c.Request().Context(), id.Email, strings.TrimSpace(req.ReturnURL))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, portalResponse{Success: true, URL: url})
}

type subscriptionsResponse struct {
	Success       bool                    `json:"success"`
	Subscriptions []payments.Subscription `json:"subscriptions"`
}

func (a *API) listSubscriptions(c echo.Context) error {
	if err := a.paymentsEnabled(); err != nil {
		return err
	}
	id, err := identity(c)
	if err != nil {
		return err
	}
	subs, err := a.payments.ListSubscriptions(c.Request().Context(), id.Email)
	if err != nil {
		return err
	}
	if subs == nil {
		subs = []payments.Subscription{}
	}
	return c.JSON(http.StatusOK, subscriptionsResponse{Success: true, Subscriptions: subs})
}

type subscriptionResponse struct {
	Success      bool                   `json:"success"`
	Message      string                 `json:"message,omitempty"`
	Subscription *payments.Subscription `json:"subscription"`
}

func (a *API) cancelSubscription(c echo.Context) error {
	if err := a.paymentsEnabled(); err != nil {
		return err
	}
	id, err := identity(c)
	if err != nil {
		return err
	}
	sub, err := a.payments.CancelSubscription(c.Request().Context(), id.Email, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, subscriptionResponse{
		Success:      true,
		Message:      "Subscription canceled",
		Subscription: sub,
	})
}
