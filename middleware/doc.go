// Package middleware exposes echo middleware that binds HTTP requests to the
// donorhub Engine.
//
// # Middleware
//
//   - [RequireAuth]: bearer token check through Engine.ValidateToken.
//   - [ClientContext]: client IP and User-Agent for rate limits and audit.
//
// RequireAuth reads the Authorization header, calls Engine.ValidateToken, and
// injects the validated [donorhub.Identity] into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself; all decisions are delegated to Engine.ValidateToken.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Render response envelopes. Rejections are *echo.HTTPError values for the
//     server's error handler.
package middleware
