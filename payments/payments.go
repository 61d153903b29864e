package payments

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
)

var (
	// ErrInvalidCheckout is returned for a checkout request with a bad amount,
	// cadence, or donor email.
	ErrInvalidCheckout = errors.New("invalid checkout request")
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent is returned for a verified webhook event whose
	// payload cannot be decoded. Redelivery would fail the same way.
	ErrMalformedEvent = errors.New("malformed webhook event")
	// ErrCustomerNotFound is returned when no provider customer has the donor email.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrSubscriptionNotFound is returned for unknown subscriptions and for
	// subscriptions owned by another customer.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrProvider is matched by every *ProviderError.
	ErrProvider = errors.New("payment provider error")
)

// ValidationError names the rejected checkout field and a client-facing message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// Unwrap lets errors.Is match ErrInvalidCheckout.
func (e *ValidationError) Unwrap() error { return ErrInvalidCheckout }

// ProviderError carries the provider's own message for an upstream failure.
type ProviderError struct {
	Op      string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Op + ": " + e.Message
	}
	return e.Op + ": " + e.Err.Error()
}

// Unwrap lets errors.Is match ErrProvider.
func (e *ProviderError) Unwrap() []error { return []error{ErrProvider, e.Err} }

// Cadence is the donation frequency of a checkout.
type Cadence string

const (
	OneTime Cadence = "one-time"
	Monthly Cadence = "monthly"
)

// MaxAmount caps a single checkout in major currency units.
const MaxAmount = 1_000_000

// CheckoutRequest asks for a hosted checkout page.
type CheckoutRequest struct {
	Amount  float64
	Cadence Cadence
	Email   string
	Name    string
}

// Validate normalizes r in place and reports the first invalid field.
func (r *CheckoutRequest) Validate() error {
	if math.IsNaN(r.Amount) || r.Amount > MaxAmount || Cents(r.Amount) <= 0 {
		return &ValidationError{Field: "amount", Message: "Amount must be greater than 0"}
	}
	if r.Cadence == "" {
		r.Cadence = OneTime
	}
	if r.Cadence != OneTime && r.Cadence != Monthly {
		return &ValidationError{Field: "donation_type", Message: "Donation type must be one-time or monthly"}
	}
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return &ValidationError{Field: "email", Message: "Donor email is required"}
	}
	r.Name = strings.TrimSpace(r.Name)
	return nil
}

// Cents converts a major-unit amount to integer minor units.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CheckoutSession is the hosted page the donor is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// CompletedCheckout is a paid checkout reported through the webhook.
type CompletedCheckout struct {
	SessionID string
	Amount    float64
	Currency  string
	Cadence   Cadence
	Email     string
	Name      string
}

// Event is a verified webhook event. Checkout is set only for
// completed checkout sessions.
type Event struct {
	ID       string
	Type     string
	Checkout *CompletedCheckout
}

// Subscription summarizes a recurring donation.
type Subscription struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	Interval          string    `json:"interval"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
	CurrentPeriodEnd  time.Time `json:"current_period_end"`
	CreatedAt         time.Time `json:"created"`
}

// Provider is the payment processor used by the HTTP layer.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signatureHeader string) (*Event, error)
	CreatePortalSession(ctx context.Context, email, returnURL string) (string, error)
	ListSubscriptions(ctx context.Context, email string) ([]Subscription, error)
	CancelSubscription(ctx context.Context, email, subscriptionID string) (*Subscription, error)
}
