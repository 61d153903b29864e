// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRegister, RunConfirmPasswordReset, etc.)
// accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. The Engine wires concrete stores, hashers, and
// token codecs into the function fields and stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the account store, the token codec, the
// password hasher, the rate limiter, audit emission, and metrics. They do NOT
// own any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import donorhub (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
