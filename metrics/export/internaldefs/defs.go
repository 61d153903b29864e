package internaldefs

import (
	donorhub "github.com/MrEthical07/donorhub"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   donorhub.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   donorhub.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for audit events dropped by the dispatcher.
const AuditDroppedName = "donorhub_audit_dropped_total"

// AuditDroppedHelp documents AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// CounterDefs lists every exported engine counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: donorhub.MetricLoginSuccess, Name: "donorhub_login_success_total", Help: "Successful login attempts."},
	{ID: donorhub.MetricLoginFailure, Name: "donorhub_login_failure_total", Help: "Failed login attempts."},
	{ID: donorhub.MetricLoginRateLimited, Name: "donorhub_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: donorhub.MetricAccountLocked, Name: "donorhub_account_locked_total", Help: "Logins that locked an account or hit an active lock."},
	{ID: donorhub.MetricLogout, Name: "donorhub_logout_total", Help: "Logout operations."},
	{ID: donorhub.MetricTokenRevoked, Name: "donorhub_token_revoked_total", Help: "Session tokens added to the denylist."},
	{ID: donorhub.MetricTokenRejected, Name: "donorhub_token_rejected_total", Help: "Session tokens rejected during validation."},
	{ID: donorhub.MetricRegisterSuccess, Name: "donorhub_register_success_total", Help: "Created donor accounts."},
	{ID: donorhub.MetricRegisterDuplicate, Name: "donorhub_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: donorhub.MetricRegisterRateLimited, Name: "donorhub_register_rate_limited_total", Help: "Rate-limited registrations."},
	{ID: donorhub.MetricPasswordChangeSuccess, Name: "donorhub_password_change_success_total", Help: "Successful password changes."},
	{ID: donorhub.MetricPasswordChangeInvalidOld, Name: "donorhub_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: donorhub.MetricPasswordResetRequest, Name: "donorhub_password_reset_request_total", Help: "Forgot-password requests."},
	{ID: donorhub.MetricPasswordResetRateLimited, Name: "donorhub_password_reset_rate_limited_total", Help: "Rate-limited forgot-password requests."},
	{ID: donorhub.MetricPasswordResetConfirmSuccess, Name: "donorhub_password_reset_confirm_success_total", Help: "Consumed reset tokens."},
	{ID: donorhub.MetricPasswordResetConfirmFailure, Name: "donorhub_password_reset_confirm_failure_total", Help: "Rejected reset tokens."},
	{ID: donorhub.MetricEmailVerificationRequest, Name: "donorhub_email_verification_request_total", Help: "Issued verification tokens."},
	{ID: donorhub.MetricEmailVerificationRateLimited, Name: "donorhub_email_verification_rate_limited_total", Help: "Rate-limited verification resends."},
	{ID: donorhub.MetricEmailVerificationSuccess, Name: "donorhub_email_verification_success_total", Help: "Verified addresses."},
	{ID: donorhub.MetricEmailVerificationFailure, Name: "donorhub_email_verification_failure_total", Help: "Rejected verification tokens."},
	{ID: donorhub.MetricEmailSuppressed, Name: "donorhub_email_suppressed_total", Help: "Addresses suppressed after a bounce or complaint."},
	{ID: donorhub.MetricRateLimitFailOpen, Name: "donorhub_rate_limit_fail_open_total", Help: "Limiter checks allowed because Redis failed."},
}

// HistogramDefs lists every exported engine histogram.
var HistogramDefs = []HistogramDef{
	{ID: donorhub.MetricValidateLatency, Name: "donorhub_validate_latency_seconds", Help: "Session token validation latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one extra overflow bucket past the last bound.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, overflow included, for exporters
// that publish buckets as separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last
// element is the sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
