package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func fastHasher(t *testing.T) *Bcrypt {
	t.Helper()
	h, err := NewBcrypt(Config{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	hasher := fastHasher(t)

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Fatalf("unexpected bcrypt prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher := fastHasher(t)

	hash, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher := fastHasher(t)

	ok, err := hasher.Verify("anything", "not-a-bcrypt-hash")
	if ok {
		t.Fatal("malformed hash must not verify")
	}
	if !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := fastHasher(t)
	hash, err := weak.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger, err := NewBcrypt(Config{Cost: bcrypt.MinCost + 1})
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	needs, err := stronger.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !needs {
		t.Fatal("expected upgrade for lower-cost hash")
	}

	needs, err = weak.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if needs {
		t.Fatal("same-cost hash should not need upgrade")
	}
}

func TestNewBcryptRejectsInvalidCost(t *testing.T) {
	for _, cost := range []int{1, bcrypt.MaxCost + 1, -5} {
		if _, err := NewBcrypt(Config{Cost: cost}); !errors.Is(err, ErrInvalidCost) {
			t.Fatalf("cost %d: expected ErrInvalidCost, got %v", cost, err)
		}
	}
}

func TestHashRejectsOverlongPassword(t *testing.T) {
	hasher := fastHasher(t)
	if _, err := hasher.Hash(strings.Repeat("x", MaxLength+1)); !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy, got %v", err)
	}
}

func TestCheckPolicy(t *testing.T) {
	if err := CheckPolicy("short"); !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy for short password, got %v", err)
	}
	if err := CheckPolicy(strings.Repeat("y", MaxLength+1)); !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy for long password, got %v", err)
	}
	if err := CheckPolicy("long-enough"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
