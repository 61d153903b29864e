// Package security builds the engine's protection posture report: which
// of lockout, rate limiting, revocation, mail delivery, and auditing are
// in force once configuration is matched against the wired collaborators.
//
// # What this package must NOT do
//
//   - Read configuration or collaborators itself; callers pass a ReportInput.
package security
