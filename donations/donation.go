package donations

import (
	"context"
	"errors"
	"time"
)

// Type is the donation cadence.
type Type string

const (
	TypeOneTime Type = "one-time"
	TypeMonthly Type = "monthly"
)

// Valid reports whether t is a known cadence.
func (t Type) Valid() bool {
	return t == TypeOneTime || t == TypeMonthly
}

// Status is the payment state recorded with a donation.
type Status string

// StatusCompleted is the only state a donation is recorded in.
const StatusCompleted Status = "completed"

var (
	// ErrNotFound is returned by a Store for an unknown donation id.
	ErrNotFound = errors.New("donation not found")
	// ErrDuplicate is returned by Store.Put when the donation id already exists.
	ErrDuplicate = errors.New("donation already recorded")
	// ErrInvalidDonation is matched by every *ValidationError.
	ErrInvalidDonation = errors.New("invalid donation")
	// ErrStoreUnavailable wraps donation store failures.
	ErrStoreUnavailable = errors.New("donation store unavailable")
)

// ValidationError names the rejected field and a client-facing message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// Unwrap lets errors.Is match ErrInvalidDonation.
func (e *ValidationError) Unwrap() error { return ErrInvalidDonation }

// Donation is an immutable record of one gift.
type Donation struct {
	DonationID      string    `dynamodbav:"donationId" json:"donationId"`
	Amount          float64   `dynamodbav:"amount" json:"amount"`
	Currency        string    `dynamodbav:"currency,omitempty" json:"currency,omitempty"`
	Type            Type      `dynamodbav:"type" json:"type"`
	PaymentMethod   string    `dynamodbav:"paymentMethod" json:"paymentMethod"`
	Email           string    `dynamodbav:"email" json:"email"`
	Name            string    `dynamodbav:"name" json:"name"`
	Status          Status    `dynamodbav:"status" json:"status"`
	CreatedAt       time.Time `dynamodbav:"createdAt" json:"createdAt"`
	ProcessedAt     time.Time `dynamodbav:"processedAt" json:"processedAt"`
	StripeSessionID string    `dynamodbav:"stripeSessionId,omitempty" json:"stripeSessionId,omitempty"`
}

// Store persists donations keyed by DonationID with an email index.
type Store interface {
	Put(ctx context.Context, d *Donation) error
	Get(ctx context.Context, donationID string) (*Donation, error)
	ListByEmail(ctx context.Context, email string) ([]Donation, error)
}
