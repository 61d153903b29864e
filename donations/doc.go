// Package donations validates and records donor gifts, either posted
// directly by the site or reported by a completed hosted checkout.
//
// Records are immutable once stored. Checkout-derived donations use the
// checkout session id as their key so webhook redelivery never records a
// gift twice.
package donations
