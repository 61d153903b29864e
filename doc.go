// Package donorhub provides the donor account engine behind the donation
// site: password login with lockout, registration, session tokens, password
// reset and email verification token lifecycles, and attempt rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// donorhub is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (Profile, LoginResult, MetricsSnapshot, etc.). Flow orchestration, the sliding-window
// limiter, the logout denylist, and the DynamoDB tables live under internal/ and are never
// exported. HTTP lives in httpapi.
//
// # What this package must NOT do
//
//   - Expose Redis clients, DynamoDB clients, or token digests in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Import httpapi, payments, or mailer.
//
// # Performance contract
//
// ValidateToken is the hot path. It never reads the account store and costs at most one
// Redis round-trip for the denylist. Login and account operations perform one store read
// and at most one conditional write.
package donorhub
