// Package password implements donor password hashing and verification with bcrypt.
//
// # Output format
//
// Hashes are standard bcrypt modular-crypt strings:
//
//	$2a$<cost>$<22-char salt><31-char hash>
//
// The [Bcrypt] hasher supports transparent cost upgrades: if the stored hash
// was produced with a lower cost, [Bcrypt.NeedsUpgrade] returns true so the
// caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and the length policy. Lockout and
// rate limiting are enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other donorhub package.
//   - Log plaintext passwords.
package password
