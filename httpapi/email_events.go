package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	headerWebhookSecret = "X-Webhook-Secret"
	maxEmailEventBody   = 256 << 10

	suppressionBounce    = "bounce"
	suppressionComplaint = "complaint"
)

// snsEnvelope is the SNS wrapper around an SES notification. SES can also
// post the notification directly, in which case Type is empty.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

type sesRecipient struct {
	EmailAddress string `json:"emailAddress"`
}

type sesNotification struct {
	NotificationType string `json:"notificationType"`
	Bounce           struct {
		BounceType        string         `json:"bounceType"`
		BouncedRecipients []sesRecipient `json:"bouncedRecipients"`
	} `json:"bounce"`
	Complaint struct {
		ComplainedRecipients []sesRecipient `json:"complainedRecipients"`
	} `json:"complaint"`
}

type emailEventsResponse struct {
	Success    bool `json:"success"`
	Suppressed int  `json:"suppressed"`
}

// emailEvents suppresses recipients of permanent bounces and complaints.
// Transient bounces, other notification types, and unknown recipients are
// acknowledged without changes.
func (a *API) emailEvents(c echo.Context) error {
	if a.emailEventsSecret == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Email events are not configured")
	}
	given := c.Request().Header.Get(headerWebhookSecret)
	if subtle.ConstantTimeCompare([]byte(given), []byte(a.emailEventsSecret)) != 1 {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid webhook secret")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxEmailEventBody))
	if err != nil {
		return badRequest("Invalid request body")
	}
	n, err := decodeSESNotification(body)
	if err != nil {
		return badRequest("Invalid notification")
	}

	reason, recipients := suppressionTargets(n)
	ctx := c.Request().Context()
	suppressed := 0
	for _, email := range recipients {
		updated, err := a.engine.SuppressEmail(ctx, email, reason)
		if err != nil {
			a.logger.WarnContext(ctx, "suppression failed", "email", email, "reason", reason, "error", err)
			continue
		}
		if updated {
			suppressed++
		}
	}
	return c.JSON(http.StatusOK, emailEventsResponse{Success: true, Suppressed: suppressed})
}

func decodeSESNotification(body []byte) (sesNotification, error) {
	var n sesNotification
	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return n, err
	}
	if env.Type != "" {
		if env.Type != "Notification" || env.Message == "" {
			return n, nil
		}
		body = []byte(env.Message)
	}
	err := json.Unmarshal(body, &n)
	return n, err
}

func suppressionTargets(n sesNotification) (string, []string) {
	var (
		reason string
		from   []sesRecipient
	)
	switch n.NotificationType {
	case "Bounce":
		if n.Bounce.BounceType != "Permanent" {
			return "", nil
		}
		reason, from = suppressionBounce, n.Bounce.BouncedRecipients
	case "Complaint":
		reason, from = suppressionComplaint, n.Complaint.ComplainedRecipients
	default:
		return "", nil
	}

	out := make([]string, 0, len(from))
	for _, r := range from {
		if email := strings.TrimSpace(r.EmailAddress); email != "" {
			out = append(out, email)
		}
	}
	return reason, out
}
