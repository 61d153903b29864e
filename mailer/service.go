package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/MrEthical07/donorhub/account"
	"github.com/MrEthical07/donorhub/donations"
)

//go:embed templates/*
var templateFS embed.FS

type kind string

const (
	kindVerification kind = "verification"
	kindReset        kind = "reset"
	kindWelcome      kind = "welcome"
	kindReceipt      kind = "receipt"
)

var allKinds = []kind{kindVerification, kindReset, kindWelcome, kindReceipt}

// Accounts is the account lookup used for the suppression check.
type Accounts interface {
	Get(ctx context.Context, email string) (*account.Account, error)
}

// Config configures the Service.
type Config struct {
	// SiteURL is the public site the links point at.
	SiteURL string
	// OrgName appears in subjects and the mail header.
	OrgName         string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// Service renders donor emails and hands them to a Sender. Addresses marked
// suppressed after a bounce or complaint are skipped silently.
type Service struct {
	sender   Sender
	accounts Accounts
	cfg      Config
	logger   *slog.Logger
	html     map[kind]*htmltemplate.Template
	text     map[kind]*texttemplate.Template
}

// Option customizes a Service.
type Option func(*Service)

// WithSuppression enables the suppression check against accounts.
func WithSuppression(accounts Accounts) Option {
	return func(s *Service) { s.accounts = accounts }
}

// WithLogger sets the logger for skipped deliveries.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService parses the embedded templates and returns a Service.
func NewService(sender Sender, cfg Config, opts ...Option) (*Service, error) {
	if sender == nil {
		return nil, errors.New("mail sender is required")
	}
	if _, err := url.ParseRequestURI(cfg.SiteURL); err != nil {
		return nil, fmt.Errorf("invalid site url %q: %w", cfg.SiteURL, err)
	}
	cfg.SiteURL = strings.TrimSuffix(cfg.SiteURL, "/")
	if cfg.OrgName == "" {
		cfg.OrgName = "DonorHub"
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 15 * time.Minute
	}

	s := &Service{
		sender: sender,
		cfg:    cfg,
		logger: slog.Default(),
		html:   make(map[kind]*htmltemplate.Template, len(allKinds)),
		text:   make(map[kind]*texttemplate.Template, len(allKinds)),
	}
	for _, k := range allKinds {
		h, err := htmltemplate.ParseFS(templateFS, "templates/layout.html", "templates/"+string(k)+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s html template: %w", k, err)
		}
		t, err := texttemplate.ParseFS(templateFS, "templates/"+string(k)+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse %s text template: %w", k, err)
		}
		s.html[k] = h
		s.text[k] = t
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "mailer")
	return s, nil
}

type linkData struct {
	Org     string
	Name    string
	Link    string
	Expires string
}

type receiptData struct {
	Org           string
	Name          string
	Amount        string
	Cadence       string
	DonationID    string
	Date          string
	PaymentMethod string
}

// SendVerificationEmail sends the address confirmation link.
func (s *Service) SendVerificationEmail(ctx context.Context, email, name, token string) error {
	return s.deliver(ctx, email, kindVerification, "Verify your email for "+s.cfg.OrgName, linkData{
		Org:     s.cfg.OrgName,
		Name:    greeting(name),
		Link:    s.link("/verify-email", token),
		Expires: humanDuration(s.cfg.VerificationTTL),
	})
}

// SendPasswordResetEmail sends the password reset link.
func (s *Service) SendPasswordResetEmail(ctx context.Context, email, name, token string) error {
	return s.deliver(ctx, email, kindReset, "Reset your "+s.cfg.OrgName+" password", linkData{
		Org:     s.cfg.OrgName,
		Name:    greeting(name),
		Link:    s.link("/reset-password", token),
		Expires: humanDuration(s.cfg.ResetTTL),
	})
}

// SendWelcomeEmail greets a newly verified donor.
func (s *Service) SendWelcomeEmail(ctx context.Context, email, name string) error {
	return s.deliver(ctx, email, kindWelcome, "Welcome to "+s.cfg.OrgName, linkData{
		Org:  s.cfg.OrgName,
		Name: greeting(name),
		Link: s.cfg.SiteURL + "/dashboard",
	})
}

// SendDonationReceipt confirms a recorded donation.
func (s *Service) SendDonationReceipt(ctx context.Context, d donations.Donation) error {
	cadence := "one-time"
	if d.Type == donations.TypeMonthly {
		cadence = "monthly"
	}
	method := d.PaymentMethod
	if method == "" {
		method = "card"
	}
	return s.deliver(ctx, d.Email, kindReceipt, "Thank you for your donation to "+s.cfg.OrgName, receiptData{
		Org:           s.cfg.OrgName,
		Name:          greeting(d.Name),
		Amount:        formatAmount(d.Amount, d.Currency),
		Cadence:       cadence,
		DonationID:    d.DonationID,
		Date:          d.CreatedAt.UTC().Format("January 2, 2006"),
		PaymentMethod: method,
	})
}

func (s *Service) deliver(ctx context.Context, to string, k kind, subject string, data any) error {
	if s.suppressed(ctx, to) {
		s.logger.InfoContext(ctx, "email suppressed", "kind", string(k), "to", to)
		return nil
	}

	var html, text bytes.Buffer
	if err := s.html[k].ExecuteTemplate(&html, "layout", data); err != nil {
		return fmt.Errorf("render %s html: %w", k, err)
	}
	if err := s.text[k].Execute(&text, data); err != nil {
		return fmt.Errorf("render %s text: %w", k, err)
	}

	return s.sender.Send(ctx, Message{
		To:      to,
		Subject: subject,
		HTML:    html.String(),
		Text:    text.String(),
	})
}

// suppressed reports whether the account for email is suppressed. Lookup
// failures other than not-found are logged and mail goes out.
func (s *Service) suppressed(ctx context.Context, email string) bool {
	if s.accounts == nil {
		return false
	}
	acct, err := s.accounts.Get(ctx, email)
	switch {
	case err == nil:
		return acct.EmailSuppressed
	case errors.Is(err, account.ErrNotFound):
		return false
	default:
		s.logger.WarnContext(ctx, "suppression lookup failed", "to", email, "error", err)
		return false
	}
}

func (s *Service) link(path, token string) string {
	return s.cfg.SiteURL + path + "?token=" + url.QueryEscape(token)
}

func greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "there"
	}
	return name
}

func formatAmount(amount float64, currency string) string {
	switch strings.ToLower(currency) {
	case "", "usd":
		return fmt.Sprintf("$%.2f", amount)
	case "eur":
		return fmt.Sprintf("€%.2f", amount)
	case "gbp":
		return fmt.Sprintf("£%.2f", amount)
	default:
		return fmt.Sprintf("%.2f %s", amount, strings.ToUpper(currency))
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute:
		if d < 2*time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
