// Package account defines the donor credential record and the storage
// contract the engine reads and writes through.
//
// # Architecture boundaries
//
// The package is a leaf: it owns the record shape, the Update description
// of a single state transition, and the Store interface. Implementations
// live in internal/stores.
//
// # What this package must NOT do
//
//   - Hash passwords or generate tokens.
//   - Decide lockout or expiry policy (the engine does).
//   - Import any other donorhub package.
package account
