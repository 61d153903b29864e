package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/donorhub"
	"github.com/MrEthical07/donorhub/donations"
	"github.com/MrEthical07/donorhub/internal/stores"
	"github.com/MrEthical07/donorhub/payments"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type sentMail struct {
	kind  string
	email string
	token string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, email, _, token string) error {
	m.record(sentMail{kind: "verify", email: email, token: token})
	return nil
}

func (m *recordingMailer) SendPasswordResetEmail(_ context.Context, email, _, token string) error {
	m.record(sentMail{kind: "reset", email: email, token: token})
	return nil
}

func (m *recordingMailer) SendWelcomeEmail(_ context.Context, email, _ string) error {
	m.record(sentMail{kind: "welcome", email: email})
	return nil
}

func (m *recordingMailer) record(s sentMail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, s)
}

func (m *recordingMailer) last(t *testing.T, kind string) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i]
		}
	}
	t.Fatalf("no %s mail sent", kind)
	return sentMail{}
}

func (m *recordingMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

type fakeProvider struct {
	lastCheckout payments.CheckoutRequest
	checkoutErr  error
	event        *payments.Event
	webhookErr   error
	subs         []payments.Subscription
	cancelErr    error
	canceled     []string
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	f.lastCheckout = req
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return &payments.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.test/cs_test_1"}, nil
}

func (f *fakeProvider) ParseWebhook(_ []byte, signature string) (*payments.Event, error) {
	if signature != "valid" {
		return nil, payments.ErrInvalidSignature
	}
	if f.webhookErr != nil {
		return nil, f.webhookErr
	}
	return f.event, nil
}

func (f *fakeProvider) CreatePortalSession(_ context.Context, email, returnURL string) (string, error) {
	if email != "ann@example.com" {
		return "", payments.ErrCustomerNotFound
	}
	return "https://billing.test/portal?return=" + returnURL, nil
}

func (f *fakeProvider) ListSubscriptions(_ context.Context, _ string) ([]payments.Subscription, error) {
	return f.subs, nil
}

func (f *fakeProvider) CancelSubscription(_ context.Context, _, id string) (*payments.Subscription, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	for _, s := range f.subs {
		if s.ID == id {
			f.canceled = append(f.canceled, id)
			s.Status = "canceled"
			return &s, nil
		}
	}
	return nil, payments.ErrSubscriptionNotFound
}

const webhookSecret = "ses-secret"

type apiHarness struct {
	echo      *echo.Echo
	engine    *donorhub.Engine
	mailer    *recordingMailer
	donations *stores.MemoryDonations
	provider  *fakeProvider
}

type harnessOption func(*donorhub.Builder, *Deps)

func withRedis(client redis.UniversalClient) harnessOption {
	return func(b *donorhub.Builder, _ *Deps) { b.WithRedis(client) }
}

// testClock is a settable engine clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func withClock(c *testClock) harnessOption {
	return func(b *donorhub.Builder, _ *Deps) { b.WithClock(c.Now) }
}

func withoutPayments() harnessOption {
	return func(_ *donorhub.Builder, d *Deps) { d.Payments = nil }
}

func newAPIHarness(t *testing.T, opts ...harnessOption) *apiHarness {
	t.Helper()

	cfg := donorhub.DefaultConfig()
	cfg.Session.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Cost = bcrypt.MinCost
	cfg.Audit.Enabled = false

	h := &apiHarness{
		mailer:    &recordingMailer{},
		donations: stores.NewMemoryDonations(),
		provider:  &fakeProvider{},
	}
	builder := donorhub.New().
		WithConfig(cfg).
		WithAccountStore(stores.NewMemoryAccounts()).
		WithMailer(h.mailer)
	deps := Deps{
		Donations:         donations.NewService(h.donations),
		Payments:          h.provider,
		Welcome:           h.mailer,
		EmailEventsSecret: webhookSecret,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "donorhub_login_success_total 0\n")
		}),
	}
	for _, opt := range opts {
		opt(builder, &deps)
	}

	engine, err := builder.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	deps.Engine = engine

	api, err := New(deps)
	require.NoError(t, err)

	h.echo = echo.New()
	api.Register(h.echo)
	h.engine = engine
	return h
}

type response struct {
	code   int
	header http.Header
	body   map[string]any
	raw    string
}

func (r response) message() string {
	msg, _ := r.body["message"].(string)
	return msg
}

func (h *apiHarness) do(t *testing.T, method, path string, body any, headers ...string) response {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.echo.ServeHTTP(rec, req)

	out := response{code: rec.Code, header: rec.Header(), raw: rec.Body.String()}
	if strings.HasPrefix(strings.TrimSpace(out.raw), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out.body), out.raw)
	}
	return out
}

func bearer(token string) []string {
	return []string{echo.HeaderAuthorization, "Bearer " + token}
}

// registerDonor registers an account through the API and returns its token.
func (h *apiHarness) registerDonor(t *testing.T, email, pass string) string {
	t.Helper()
	res := h.do(t, http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"password": pass,
		"name":     "Ann Donor",
	})
	require.Equal(t, http.StatusCreated, res.code, res.raw)
	token, _ := res.body["token"].(string)
	require.NotEmpty(t, token)
	return token
}
