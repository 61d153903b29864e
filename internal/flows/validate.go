package flows

import (
	"context"
	"time"
)

// ValidatedToken is the identity recovered from an accepted session token.
type ValidatedToken struct {
	Email     string
	Name      string
	TokenID   string
	ExpiresAt time.Time
}

// ValidateDeps captures token validation dependencies.
type ValidateDeps struct {
	Hooks

	ParseToken func(string) (ValidatedToken, error)
	// IsRevoked consults the logout denylist. Nil or erroring lookups allow
	// the token; the signature and expiry checks still apply.
	IsRevoked func(ctx context.Context, jti string) (bool, error)

	MetricTokenRejected int
	Unauthorized        error
	EngineNotReady      error
}

// RunValidate verifies a bearer token and consults the revocation denylist.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) (*ValidatedToken, error) {
	deps.normalize()
	if deps.ParseToken == nil {
		return nil, deps.EngineNotReady
	}
	if token == "" {
		deps.MetricInc(deps.MetricTokenRejected)
		return nil, deps.Unauthorized
	}

	parsed, err := deps.ParseToken(token)
	if err != nil {
		deps.MetricInc(deps.MetricTokenRejected)
		return nil, deps.Unauthorized
	}

	if deps.IsRevoked != nil && parsed.TokenID != "" {
		revoked, err := deps.IsRevoked(ctx, parsed.TokenID)
		switch {
		case err != nil:
			deps.Warn("donorhub: revocation lookup failed", "error", err)
		case revoked:
			deps.MetricInc(deps.MetricTokenRejected)
			return nil, deps.Unauthorized
		}
	}

	return &parsed, nil
}
