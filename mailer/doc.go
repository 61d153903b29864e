// Package mailer renders and delivers donor emails.
//
// [Service] builds verification, password reset, welcome, and receipt mails
// from embedded templates and implements both donorhub.Mailer and
// donations.Receipts. Delivery goes through a [Sender]: [SMTPSender] for a
// real relay, [LogSender] for development.
//
// # What this package must NOT do
//
//   - Mail an address whose account is marked suppressed.
//   - Generate or store tokens. Callers pass the opaque token in.
package mailer
