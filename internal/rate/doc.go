// Package rate implements the Redis-backed sliding-window attempt limiter
// used to throttle login, registration, and email-sending endpoints.
//
// # Window semantics
//
// Each key is a sorted set of attempts scored by unix milliseconds:
//   - Check prunes scores at or below now-window, then blocks when the
//     remaining count is at least maxAttempts. The wait is
//     oldest+window-now.
//   - Record prunes, adds now, and sets PEXPIRE to the window so idle keys
//     disappear on their own.
//
// Key prefix: rl:<scope>:<identity>.
//
// # Failure policy
//
// Redis errors fail open: Check allows the attempt and Record reports a
// wrapped [ErrRedisUnavailable] that callers log and ignore.
//
// # What this package must NOT do
//
//   - Decide which scopes or limits apply (the engine does).
//   - Be imported outside the donorhub module.
package rate
