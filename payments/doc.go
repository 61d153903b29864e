// Package payments wraps the hosted payment processor behind [Provider].
//
// [Stripe] opens Checkout sessions for one-time and monthly gifts, verifies
// webhook signatures, and manages recurring donations through the billing
// portal and the subscriptions API. Amounts cross the boundary in major
// units and are converted to integer cents here.
//
// # Architecture boundaries
//
// The provider knows nothing about stored donations. The HTTP layer turns a
// [CompletedCheckout] into a donation record.
//
// # What this package must NOT do
//
//   - Touch the global stripe.Key. Each Stripe value owns its client.
//   - Cancel a subscription the requesting donor does not own.
package payments
