// Package stores implements the account and donation stores: DynamoDB
// tables for deployment and in-memory maps for local runs and tests.
//
// # Design
//
// Accounts are keyed by normalized email. Reset and verification token
// digests are found through GSIs (resetToken-index,
// verification_token-index) instead of table scans. Every state transition
// is one UpdateItem whose condition expression requires the item to exist
// and, when consuming a token, requires the stored digest to still match.
// Donations are keyed by donationId with an email-index GSI sorted by
// createdAt.
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT generate tokens, hash
// passwords, or decide lockout and expiry; those belong to internal/flows.
//
// # What this package must NOT do
//
//   - Import the donorhub root package.
//   - Log or expose token digests or password hashes.
package stores
