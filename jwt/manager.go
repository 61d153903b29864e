package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTTL is the session token lifetime.
	DefaultTTL = 24 * time.Hour
	// MinSecretLength is the shortest accepted HS256 secret in bytes.
	MinSecretLength = 32
)

var (
	// ErrInvalidToken is the single failure for every rejected token:
	// bad signature, unexpected algorithm, expiry, and malformed input alike.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidConfig is returned by NewManager for unusable settings.
	ErrInvalidConfig = errors.New("invalid token configuration")
)

// Config defines a public type used by donorhub APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Secret   []byte
	TTL      time.Duration
	Issuer   string
	Audience string
	Leeway   time.Duration
	// Now overrides the clock for issuance and validation. Nil means time.Now.
	Now func() time.Time
}

// Manager defines a public type used by donorhub APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
}

// Claims carries the donor identity inside a session token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway must be within [0, 2m]", ErrInvalidConfig)
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: hs256 secret must be at least %d bytes", ErrInvalidConfig, MinSecretLength)
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Manager{config: cfg}, nil
}

// TTL returns the configured token lifetime.
func (j *Manager) TTL() time.Duration {
	return j.config.TTL
}

// Issue signs a session token for the given identity. The returned claims
// carry the generated token id and expiry.
func (j *Manager) Issue(email, name string) (string, *Claims, error) {
	now := j.config.Now()
	claims := &Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.TTL)),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.config.Secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies tokenStr and returns its claims. Any failure is reported
// as ErrInvalidToken.
func (j *Manager) Parse(tokenStr string) (*Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrInvalidToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return j.config.Secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
