// Package internal contains helper utilities that are private to donorhub,
// chiefly opaque token generation and digesting.
//
// # Sub-packages
//
//   - flows: flow orchestrators for every Engine operation
//   - rate: Redis sliding-window attempt limiter
//   - revocation: Redis denylist for logged-out session tokens
//   - stores: DynamoDB and in-memory account/donation stores
//   - config: CLI and TOML configuration for the binaries
//   - server: wiring of stores, engine, and HTTP transport
//
// # What this package must NOT do
//
//   - Export types that appear in the public donorhub API.
//   - Be imported by any package outside the donorhub module.
package internal
