// Package exchange redeems a validated inbound credential for a
// narrower-scoped downstream credential via the identity provider's
// on-behalf-of grant.
//
// Results are cached per (subject, scope) with a safety margin before
// expiry, and concurrent misses for the same key are coalesced into a
// single provider call. Exchange failures surface to the caller as
// authorization failures; nothing is retried here.
package exchange
