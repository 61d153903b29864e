package flows

import (
	"context"
	"time"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Hooks

	// ParseToken returns the token id, owner, and expiry of a session token.
	ParseToken func(string) (jti, email string, expiresAt time.Time, err error)
	// Revoke denylists jti until expiresAt. Nil disables revocation.
	Revoke func(ctx context.Context, jti string, expiresAt time.Time) error

	MetricLogout       int
	MetricTokenRevoked int
	EventLogout        string
}

// RunLogout revokes the presented token when revocation is available. It
// never fails: an unparseable token or a denylist outage still ends the
// session from the client's point of view.
func RunLogout(ctx context.Context, token string, deps LogoutDeps) {
	deps.normalize()
	deps.MetricInc(deps.MetricLogout)
	if token == "" || deps.ParseToken == nil {
		return
	}

	jti, email, expiresAt, err := deps.ParseToken(token)
	if err != nil || jti == "" {
		return
	}

	if deps.Revoke != nil {
		if err := deps.Revoke(ctx, jti, expiresAt); err != nil {
			deps.Warn("donorhub: token revocation failed", "email", email, "error", err)
		} else {
			deps.MetricInc(deps.MetricTokenRevoked)
		}
	}
	deps.EmitAudit(ctx, deps.EventLogout, true, email, nil, nil)
}
