package internal

import "testing"

func TestNewOpaqueTokenShape(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		tok, err := NewOpaqueToken()
		if err != nil {
			t.Fatalf("NewOpaqueToken: %v", err)
		}
		if !ValidOpaqueToken(tok) {
			t.Fatalf("token %q has unexpected shape", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestHashTokenIsStableAndDistinct(t *testing.T) {
	a := HashToken("abc")
	if a != HashToken("abc") {
		t.Fatal("hash must be deterministic")
	}
	if a == HashToken("abd") {
		t.Fatal("different inputs must hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestValidOpaqueTokenRejects(t *testing.T) {
	for _, tok := range []string{"", "zz", "g" + string(make([]byte, 63))} {
		if ValidOpaqueToken(tok) {
			t.Fatalf("expected %q to be rejected", tok)
		}
	}
}
