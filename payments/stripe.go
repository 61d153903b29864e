package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	metadataDonorName    = "donor_name"
	metadataDonorEmail   = "donor_email"
	metadataDonationType = "donation_type"

	eventCheckoutCompleted = "checkout.session.completed"
)

// StripeConfig configures the Stripe provider.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// SuccessURL may contain {CHECKOUT_SESSION_ID}.
	SuccessURL  string
	CancelURL   string
	Currency    string
	ProductName string
	// PortalReturnURL is used when the caller does not supply one.
	PortalReturnURL string
}

// stripeAPI is the slice of the Stripe API the provider calls.
type stripeAPI interface {
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	FindCustomer(ctx context.Context, email string) (*stripe.Customer, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

// Stripe is the Provider backed by Stripe Checkout and the billing portal.
type Stripe struct {
	cfg StripeConfig
	api stripeAPI
}

var _ Provider = (*Stripe)(nil)

// NewStripe creates a Stripe provider using the API key in cfg.
func NewStripe(cfg StripeConfig) (*Stripe, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return newStripe(cfg, &stripeClient{api: sc}), nil
}

func newStripe(cfg StripeConfig, api stripeAPI) *Stripe {
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyUSD)
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "Donation"
	}
	return &Stripe{cfg: cfg, api: api}
}

// CreateCheckoutSession opens a hosted checkout. One-time gifts use payment
// mode; monthly gifts use subscription mode with a monthly recurring price.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	session, err := s.api.NewCheckoutSession(s.checkoutParams(ctx, req))
	if err != nil {
		return nil, providerError("create checkout session", err)
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (s *Stripe) checkoutParams(ctx context.Context, req CheckoutRequest) *stripe.CheckoutSessionParams {
	metadata := map[string]string{
		metadataDonorName:    req.Name,
		metadataDonorEmail:   req.Email,
		metadataDonationType: string(req.Cadence),
	}

	productName := s.cfg.ProductName
	if req.Cadence == Monthly {
		productName = "Monthly " + productName
	}
	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(s.cfg.Currency),
		UnitAmount: stripe.Int64(Cents(req.Amount)),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(productName),
		},
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: priceData,
			Quantity:  stripe.Int64(1),
		}},
		CustomerEmail: stripe.String(req.Email),
		SuccessURL:    stripe.String(s.cfg.SuccessURL),
		CancelURL:     stripe.String(s.cfg.CancelURL),
		Metadata:      metadata,
	}
	if req.Cadence == Monthly {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		}
	}
	params.Context = ctx
	return params
}

// ParseWebhook verifies payload against the webhook secret. Completed
// checkout sessions are decoded into Event.Checkout.
func (s *Stripe) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if s.cfg.WebhookSecret == "" || signatureHeader == "" {
		return nil, ErrInvalidSignature
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if string(evt.Type) != eventCheckoutCompleted {
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: decode checkout session: %v", ErrMalformedEvent, err)
	}
	out.Checkout = completedCheckout(&session)
	return out, nil
}

func completedCheckout(session *stripe.CheckoutSession) *CompletedCheckout {
	c := &CompletedCheckout{
		SessionID: session.ID,
		Amount:    float64(session.AmountTotal) / 100,
		Currency:  string(session.Currency),
		Cadence:   Cadence(session.Metadata[metadataDonationType]),
		Email:     session.Metadata[metadataDonorEmail],
		Name:      session.Metadata[metadataDonorName],
	}
	if c.Cadence == "" {
		c.Cadence = OneTime
		if session.Mode == stripe.CheckoutSessionModeSubscription {
			c.Cadence = Monthly
		}
	}
	if c.Email == "" {
		c.Email = session.CustomerEmail
	}
	if session.CustomerDetails != nil {
		if c.Email == "" {
			c.Email = session.CustomerDetails.Email
		}
		if c.Name == "" {
			c.Name = session.CustomerDetails.Name
		}
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c
}

// CreatePortalSession returns a billing portal URL for the donor's customer.
func (s *Stripe) CreatePortalSession(ctx context.Context, email, returnURL string) (string, error) {
	customer, err := s.api.FindCustomer(ctx, email)
	if err != nil {
		return "", err
	}
	if returnURL == "" {
		returnURL = s.cfg.PortalReturnURL
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customer.ID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	session, err := s.api.NewPortalSession(params)
	if err != nil {
		return "", providerError("create portal session", err)
	}
	return session.URL, nil
}

// ListSubscriptions returns the donor's subscriptions. A donor without a
// customer record has none.
func (s *Stripe) ListSubscriptions(ctx context.Context, email string) ([]Subscription, error) {
	customer, err := s.api.FindCustomer(ctx, email)
	if errors.Is(err, ErrCustomerNotFound) {
		return []Subscription{}, nil
	}
	if err != nil {
		return nil, err
	}

	subs, err := s.api.ListSubscriptions(ctx, customer.ID)
	if err != nil {
		return nil, providerError("list subscriptions", err)
	}
	out := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, summarize(sub))
	}
	return out, nil
}

// CancelSubscription cancels id immediately when it belongs to the donor.
func (s *Stripe) CancelSubscription(ctx context.Context, email, subscriptionID string) (*Subscription, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, ErrSubscriptionNotFound
	}
	customer, err := s.api.FindCustomer(ctx, email)
	if errors.Is(err, ErrCustomerNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}

	sub, err := s.api.GetSubscription(ctx, subscriptionID)
	if isMissing(err) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, providerError("get subscription", err)
	}
	if sub.Customer == nil || sub.Customer.ID != customer.ID {
		return nil, ErrSubscriptionNotFound
	}

	canceled, err := s.api.CancelSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, providerError("cancel subscription", err)
	}
	summary := summarize(canceled)
	return &summary, nil
}

func summarize(sub *stripe.Subscription) Subscription {
	out := Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Created > 0 {
		out.CreatedAt = time.Unix(sub.Created, 0).UTC()
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		if price := sub.Items.Data[0].Price; price != nil {
			out.Amount = float64(price.UnitAmount) / 100
			out.Currency = string(price.Currency)
			if price.Recurring != nil {
				out.Interval = string(price.Recurring.Interval)
			}
		}
	}
	return out
}

func providerError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &ProviderError{Op: op, Message: se.Msg, Err: err}
	}
	return &ProviderError{Op: op, Err: err}
}

func isMissing(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing
}

// stripeClient adapts *client.API to stripeAPI.
type stripeClient struct {
	api *client.API
}

func (c *stripeClient) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return c.api.CheckoutSessions.New(params)
}

func (c *stripeClient) NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	return c.api.BillingPortalSessions.New(params)
}

func (c *stripeClient) FindCustomer(ctx context.Context, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	iter := c.api.Customers.List(params)
	if iter.Next() {
		return iter.Customer(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, providerError("find customer", err)
	}
	return nil, ErrCustomerNotFound
}

func (c *stripeClient) ListSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.AddExpand("data.items.data.price")

	var out []*stripe.Subscription
	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		out = append(out, iter.Subscription())
	}
	return out, iter.Err()
}

func (c *stripeClient) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return c.api.Subscriptions.Get(id, params)
}

func (c *stripeClient) CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	return c.api.Subscriptions.Cancel(id, params)
}
