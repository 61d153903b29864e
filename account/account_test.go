package account

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{in: "  Donor@Example.ORG ", want: "donor@example.org"},
		{in: "a@b.co", want: "a@b.co"},
		{in: "", err: ErrInvalidEmail},
		{in: "not-an-email", err: ErrInvalidEmail},
		{in: "Jane <jane@example.org>", err: ErrInvalidEmail},
	}

	for _, tc := range cases {
		got, err := NormalizeEmail(tc.in)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("NormalizeEmail(%q): expected %v, got %v", tc.in, tc.err, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizeEmail(%q): unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUpdateApplyConsumesResetToken(t *testing.T) {
	exp := time.Now().Add(time.Minute)
	locked := time.Now().Add(10 * time.Minute)
	acct := &Account{
		Email:          "donor@example.org",
		HashedPassword: "old",
		FailedAttempts: 3,
		LockedUntil:    &locked,
		ResetToken:     "digest",
		ResetExpires:   &exp,
	}

	hash := "new"
	zero := 0
	Update{
		HashedPassword:  &hash,
		FailedAttempts:  &zero,
		ClearLock:       true,
		ClearResetToken: true,
	}.Apply(acct)

	if acct.HashedPassword != "new" {
		t.Fatalf("expected password hash to change")
	}
	if acct.ResetToken != "" || acct.ResetExpires != nil {
		t.Fatalf("expected reset token fields removed")
	}
	if acct.FailedAttempts != 0 || acct.LockedUntil != nil {
		t.Fatalf("expected lockout cleared")
	}
}

func TestUpdateEmpty(t *testing.T) {
	if !(Update{}).Empty() {
		t.Fatalf("zero update should be empty")
	}
	if !(Update{UpdatedAt: time.Now(), ExpectResetToken: "x"}).Empty() {
		t.Fatalf("timestamps and guards alone should not count as changes")
	}
	if (Update{ClearLock: true}).Empty() {
		t.Fatalf("ClearLock should count as a change")
	}
}

func TestDisplayNameFallsBackToFirstLast(t *testing.T) {
	acct := &Account{FirstName: "Ada", LastName: "Lovelace"}
	if got := acct.DisplayName(); got != "Ada Lovelace" {
		t.Fatalf("DisplayName = %q", got)
	}
	acct.Name = "Countess"
	if got := acct.DisplayName(); got != "Countess" {
		t.Fatalf("DisplayName = %q", got)
	}
}

func TestIsLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	if (&Account{}).IsLocked(now) {
		t.Fatalf("account without lock should not be locked")
	}
	if !(&Account{LockedUntil: &future}).IsLocked(now) {
		t.Fatalf("future lock should be active")
	}
	if (&Account{LockedUntil: &past}).IsLocked(now) {
		t.Fatalf("lapsed lock should not be active")
	}
}
