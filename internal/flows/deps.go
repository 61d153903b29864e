package flows

import (
	"context"
	"time"
)

// Hooks carries the cross-cutting dependencies every flow uses. Nil
// fields are replaced with no-ops by normalize.
type Hooks struct {
	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	// CheckRate returns a non-nil error when scope/identity is over its
	// attempt budget. RecordRate counts one attempt. Both are optional.
	CheckRate  func(ctx context.Context, scope, identity string) error
	RecordRate func(ctx context.Context, scope, identity string)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, email string, err error, metadata func() map[string]string)
	Warn      func(msg string, args ...any)
}

func (h *Hooks) normalize() {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.ClientIPFromContext == nil {
		h.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if h.CheckRate == nil {
		h.CheckRate = func(context.Context, string, string) error { return nil }
	}
	if h.RecordRate == nil {
		h.RecordRate = func(context.Context, string, string) {}
	}
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if h.Warn == nil {
		h.Warn = func(string, ...any) {}
	}
}

// Rate-limit scopes.
const (
	ScopeLogin    = "login"
	ScopeRegister = "register"
	ScopeForgot   = "forgot"
	ScopeResend   = "resend"
)

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
