// Package policy decides whether a parsed credential is acceptable.
//
// Two validator variants exist, selected once from configuration:
// a signature-verified variant that checks the credential's signature
// against the issuer's published key set before applying claim checks,
// and a claims-only variant for providers whose tokens embed a
// proof-of-possession marker that defeats third-party signature
// verification. The claims-only variant is an explicit configuration
// choice; it is never used as a fallback when verification fails.
//
// Every indeterminate state resolves to a rejection, never an acceptance.
package policy
