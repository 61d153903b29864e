package donations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/donorhub/account"
	"github.com/google/uuid"
)

// MaxAmount caps a single donation in dollars.
const MaxAmount = 1_000_000

const stripeIDPrefix = "stripe_"

// Receipts sends a confirmation for a recorded donation.
type Receipts interface {
	SendDonationReceipt(ctx context.Context, d Donation) error
}

// Input is a donation recorded directly by the site.
type Input struct {
	Amount        float64
	Type          string
	PaymentMethod string
	Email         string
	Name          string
}

// CheckoutRecord is a completed hosted checkout reported by the payment provider.
type CheckoutRecord struct {
	SessionID string
	Amount    float64
	Currency  string
	Type      string
	Email     string
	Name      string
}

// Service validates and records donations.
type Service struct {
	store    Store
	receipts Receipts
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithReceipts sends a receipt after every newly recorded donation.
func WithReceipts(r Receipts) Option {
	return func(s *Service) { s.receipts = r }
}

// WithLogger sets the logger used for receipt failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a donation Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in and records a completed donation.
func (s *Service) Create(ctx context.Context, in Input) (*Donation, error) {
	amount, err := validAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	typ := Type(strings.TrimSpace(in.Type))
	if typ == "" {
		typ = TypeOneTime
	}
	if !typ.Valid() {
		return nil, &ValidationError{Field: "type", Message: "Donation type must be one-time or monthly"}
	}
	email, err := account.NormalizeEmail(in.Email)
	if err != nil {
		return nil, &ValidationError{Field: "email", Message: "A valid email address is required"}
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = "card"
	}

	now := s.now().UTC()
	d := &Donation{
		DonationID:    s.newID(),
		Amount:        amount,
		Currency:      "usd",
		Type:          typ,
		PaymentMethod: method,
		Email:         email,
		Name:          strings.TrimSpace(in.Name),
		Status:        StatusCompleted,
		CreatedAt:     now,
		ProcessedAt:   now,
	}
	if err := s.store.Put(ctx, d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.sendReceipt(ctx, *d)
	return d, nil
}

// ListByEmail returns the donor's donations, newest first.
func (s *Service) ListByEmail(ctx context.Context, email string) ([]Donation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "A valid email address is required"}
	}
	list, err := s.store.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if list == nil {
		list = []Donation{}
	}
	return list, nil
}

// RecordCheckout records a completed checkout once. Replays of the same
// session return the stored donation with created=false.
func (s *Service) RecordCheckout(ctx context.Context, rec CheckoutRecord) (d *Donation, created bool, err error) {
	if strings.TrimSpace(rec.SessionID) == "" {
		return nil, false, &ValidationError{Field: "sessionId", Message: "Checkout session id is required"}
	}
	amount, err := validAmount(rec.Amount)
	if err != nil {
		return nil, false, err
	}
	typ := Type(rec.Type)
	if !typ.Valid() {
		typ = TypeOneTime
	}
	currency := strings.ToLower(rec.Currency)
	if currency == "" {
		currency = "usd"
	}

	id := stripeIDPrefix + rec.SessionID
	now := s.now().UTC()
	d = &Donation{
		DonationID:      id,
		Amount:          amount,
		Currency:        currency,
		Type:            typ,
		PaymentMethod:   "stripe",
		Email:           strings.ToLower(strings.TrimSpace(rec.Email)),
		Name:            strings.TrimSpace(rec.Name),
		Status:          StatusCompleted,
		CreatedAt:       now,
		ProcessedAt:     now,
		StripeSessionID: rec.SessionID,
	}

	err = s.store.Put(ctx, d)
	switch {
	case err == nil:
		s.sendReceipt(ctx, *d)
		return d, true, nil
	case errors.Is(err, ErrDuplicate):
		existing, getErr := s.store.Get(ctx, id)
		if getErr != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, getErr)
		}
		return existing, false, nil
	default:
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func (s *Service) sendReceipt(ctx context.Context, d Donation) {
	if s.receipts == nil || d.Email == "" {
		return
	}
	if err := s.receipts.SendDonationReceipt(ctx, d); err != nil {
		s.logger.WarnContext(ctx, "donation receipt not sent", "donation_id", d.DonationID, "error", err)
	}
}

func validAmount(amount float64) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, &ValidationError{Field: "amount", Message: "Amount must be greater than 0"}
	}
	if amount > MaxAmount {
		return 0, &ValidationError{Field: "amount", Message: "Amount exceeds the maximum single donation"}
	}
	rounded := math.Round(amount*100) / 100
	if rounded <= 0 {
		return 0, &ValidationError{Field: "amount", Message: "Amount must be at least one cent"}
	}
	return rounded, nil
}
