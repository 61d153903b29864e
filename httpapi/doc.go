// Package httpapi serves the donor site's JSON API on echo.
//
// Every route answers with the {success, message, ...} envelope. Errors
// are returned from handlers and rendered once by [ErrorHandler], which
// owns the mapping from engine, donation, and payment errors to HTTP
// status codes and client-safe messages.
//
// # Architecture boundaries
//
// Handlers decode and validate input shape, call the engine or a service,
// and encode the result. Lockout, rate limiting, and token handling live in
// the donorhub Engine.
//
// # What this package must NOT do
//
//   - Leak store, mail, or token detail in a response.
//   - Reveal whether an email is registered from forgot-password.
package httpapi
