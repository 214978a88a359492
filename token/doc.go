// Package token decodes bearer credentials into structured claim sets.
//
// Parsing is purely structural: it splits the credential into its
// header/payload/signature segments and extracts the claims this engine
// cares about. No trust decision is made here; that belongs to the
// policy package. A credential whose signature cannot be verified
// locally still parses successfully.
package token
