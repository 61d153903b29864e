// Package jwt issues and verifies donor session tokens (HS256, 24 hour
// default lifetime) carrying the donor's email and display name.
//
// Every verification failure collapses to [ErrInvalidToken] so callers can
// not tell an expired token from a forged one.
package jwt
