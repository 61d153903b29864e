package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when Config.Cost is zero.
const DefaultCost = 12

var (
	// ErrInvalidCost is returned by NewBcrypt for costs outside bcrypt's range.
	ErrInvalidCost = errors.New("invalid bcrypt cost")
	// ErrMalformedHash is returned when a stored hash is not a bcrypt hash.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Config defines a public type used by donorhub APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Cost int
}

// Bcrypt defines a public type used by donorhub APIs.
//
// Bcrypt instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Bcrypt struct {
	cost      int
	dummyHash []byte
}

// NewBcrypt describes the newbcrypt operation and its observable behavior.
//
// NewBcrypt validates the cost and precomputes a dummy hash at that cost so
// lookups for unknown accounts can spend the same time as real comparisons.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCost, cost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("donorhub-timing-equalizer"), cost)
	if err != nil {
		return nil, err
	}

	return &Bcrypt{cost: cost, dummyHash: dummy}, nil
}

// Cost returns the configured work factor.
func (b *Bcrypt) Cost() int {
	return b.cost
}

// Hash describes the hash operation and its observable behavior.
//
// Hash returns ErrPolicy for passwords longer than bcrypt's 72-byte input limit.
func (b *Bcrypt) Hash(password string) (string, error) {
	if len(password) > MaxLength {
		return "", ErrPolicy
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify describes the verify operation and its observable behavior.
//
// A mismatch returns false with a nil error. A hash that bcrypt cannot parse
// returns ErrMalformedHash.
func (b *Bcrypt) Verify(password string, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// VerifyDummy burns one comparison against the precomputed dummy hash.
func (b *Bcrypt) VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(b.dummyHash, []byte(password))
}

// NeedsUpgrade reports whether encodedHash was produced with a lower cost
// than the one currently configured.
func (b *Bcrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < b.cost, nil
}
