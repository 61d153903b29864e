package donorhub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/donorhub/account"
	"github.com/MrEthical07/donorhub/internal/stores"
	"github.com/MrEthical07/donorhub/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.Secret = append([]byte(nil), testSecret...)
	cfg.Password.Cost = bcrypt.MinCost
	cfg.Audit.Enabled = false
	return cfg
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingStore wraps the in-memory store and counts calls.
type countingStore struct {
	*stores.MemoryAccounts
	gets    int
	updates int
}

func (s *countingStore) Get(ctx context.Context, email string) (*account.Account, error) {
	s.gets++
	return s.MemoryAccounts.Get(ctx, email)
}

func (s *countingStore) Update(ctx context.Context, email string, u account.Update) error {
	s.updates++
	return s.MemoryAccounts.Update(ctx, email, u)
}

func (s *countingStore) resetCounts() {
	s.gets = 0
	s.updates = 0
}

type sentMail struct {
	kind  string
	email string
	token string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, email, _ string, token string) error {
	return m.record("verify", email, token)
}

func (m *recordingMailer) SendPasswordResetEmail(_ context.Context, email, _ string, token string) error {
	return m.record("reset", email, token)
}

func (m *recordingMailer) record(kind, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{kind: kind, email: email, token: token})
	return nil
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

type engineHarness struct {
	engine *Engine
	store  *countingStore
	mailer *recordingMailer
	clock  *testClock
	redis  *miniredis.Miniredis
}

type harnessOption func(*Builder)

func withSink(sink AuditSink) harnessOption {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

func newEngineHarness(t *testing.T, cfg Config, opts ...harnessOption) *engineHarness {
	t.Helper()

	mr, rdb := newTestRedis(t)
	h := &engineHarness{
		store:  &countingStore{MemoryAccounts: stores.NewMemoryAccounts()},
		mailer: &recordingMailer{},
		clock:  newTestClock(),
		redis:  mr,
	}

	b := New().
		WithConfig(cfg).
		WithAccountStore(h.store).
		WithRedis(rdb).
		WithMailer(h.mailer).
		WithClock(h.clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func (h *engineHarness) seedAccount(t *testing.T, email, name, pass string) {
	t.Helper()

	hasher, err := password.NewBcrypt(password.Config{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewBcrypt failed: %v", err)
	}
	hash, err := hasher.Hash(pass)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	now := h.clock.Now()
	if err := h.store.Create(context.Background(), &account.Account{
		Email:          email,
		Name:           name,
		HashedPassword: hash,
		EmailVerified:  true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		t.Fatalf("seed account failed: %v", err)
	}
}

func (h *engineHarness) account(t *testing.T, email string) *account.Account {
	t.Helper()
	acct, err := h.store.MemoryAccounts.Get(context.Background(), email)
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	return acct
}
