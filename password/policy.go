package password

import (
	"errors"
	"fmt"
)

const (
	// MinLength is the shortest accepted password in bytes.
	MinLength = 8
	// MaxLength is bcrypt's input limit in bytes.
	MaxLength = 72
)

// ErrPolicy is returned for passwords outside the accepted length range.
var ErrPolicy = errors.New("password policy violation")

// CheckPolicy returns ErrPolicy, annotated with the violated bound, when
// password is shorter than MinLength or longer than MaxLength bytes.
func CheckPolicy(password string) error {
	switch {
	case len(password) < MinLength:
		return fmt.Errorf("%w: password must be at least %d characters long", ErrPolicy, MinLength)
	case len(password) > MaxLength:
		return fmt.Errorf("%w: password must be at most %d bytes long", ErrPolicy, MaxLength)
	}
	return nil
}
