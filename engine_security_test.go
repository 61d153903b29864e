package donorhub

import (
	"testing"
	"time"

	"github.com/MrEthical07/donorhub/internal/stores"
	"golang.org/x/crypto/bcrypt"
)

func TestSecurityReportWithRedis(t *testing.T) {
	h := newEngineHarness(t, testConfig())

	r := h.engine.SecurityReport()
	if r.SigningAlgorithm != "HS256" {
		t.Fatalf("signing alg = %q", r.SigningAlgorithm)
	}
	if !r.LockoutActive || r.LockoutThreshold != 3 {
		t.Fatalf("lockout = %v/%d, want active/3", r.LockoutActive, r.LockoutThreshold)
	}
	if !r.RateLimitingActive || !r.RevocationActive || !r.MailDeliveryActive {
		t.Fatalf("expected limiter, revocation and mail active: %+v", r)
	}
	if r.AuditActive {
		t.Fatal("audit disabled in test config")
	}
}

func TestSecurityReportWithoutRedis(t *testing.T) {
	engine, err := New().
		WithConfig(testConfig()).
		WithAccountStore(stores.NewMemoryAccounts()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	r := engine.SecurityReport()
	if r.RateLimitingActive || r.RevocationActive {
		t.Fatalf("limiter and revocation need redis: %+v", r)
	}
	if r.MailDeliveryActive {
		t.Fatal("no mailer configured")
	}
	if !r.LockoutActive {
		t.Fatal("lockout does not depend on redis")
	}
}

func TestSecurityReportReflectsBuiltCollaborators(t *testing.T) {
	cfg := testConfig()
	cfg.Session.TTL = 2 * time.Hour
	h := newEngineHarness(t, cfg)

	r := h.engine.SecurityReport()
	if r.TokenTTL != 2*time.Hour {
		t.Fatalf("token ttl = %s, want 2h", r.TokenTTL)
	}
	if r.BcryptCost != bcrypt.MinCost {
		t.Fatalf("bcrypt cost = %d, want %d", r.BcryptCost, bcrypt.MinCost)
	}
}
