package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"
)

// Message is one outgoing email. Text is the plain-text alternative of HTML.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// TLS requires TLS. Port 465 uses implicit TLS, other ports STARTTLS.
	TLS bool
}

// SMTPSender delivers mail through an SMTP relay using go-mail.
type SMTPSender struct {
	cfg    SMTPConfig
	client *mail.Client
}

// NewSMTPSender validates cfg and prepares a client. No connection is made
// until the first Send.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("SMTP from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating mail client: %w", err)
	}
	return &SMTPSender{cfg: cfg, client: client}, nil
}

// Send delivers msg over a fresh SMTP session.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func (s *SMTPSender) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if s.cfg.FromName != "" {
		if err := m.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	m.Subject(msg.Subject)
	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
	}
	return m, nil
}

// LogSender writes messages to a logger instead of delivering them. It is
// used in development when no SMTP relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a LogSender writing to logger, or slog.Default when nil.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger.With("component", "mailer")}
}

// Send logs msg at Info. Links in the text body stay readable in the log.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not sent (log sender)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", strings.TrimSpace(msg.Text),
	)
	return nil
}
