package token

import "time"

// ClaimSet is the structured view of a bearer credential's payload.
// It is produced by Parse and consumed read-only by validation and
// exchange. The raw claim map is retained for observability but must
// never be treated as validated.
type ClaimSet struct {
	// Subject is the opaque subject identifier (sub claim, falling
	// back to oid for providers that key identities on object IDs).
	Subject string

	// Audiences are the aud claim values. A single-string aud is
	// normalized to a one-element slice.
	Audiences []string

	// Issuer is the iss claim.
	Issuer string

	// Scopes are the scp claim entries, split on spaces.
	Scopes []string

	// ExpiresAt is the exp claim.
	ExpiresAt time.Time

	// IssuedAt is the iat claim, zero when absent.
	IssuedAt time.Time

	// AppID is the calling application (appid or azp claim), may be empty.
	AppID string

	// Raw holds all decoded claims.
	Raw map[string]any
}

// HasAudience reports whether aud is one of the claim set's audiences.
func (c *ClaimSet) HasAudience(aud string) bool {
	for _, a := range c.Audiences {
		if a == aud {
			return true
		}
	}
	return false
}

// HasScope reports whether the claim set carries the given scope.
func (c *ClaimSet) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// MissingScopes returns the required scopes the claim set does not carry,
// in the order they were required. Returns nil when none are missing.
func (c *ClaimSet) MissingScopes(required []string) []string {
	var missing []string
	for _, want := range required {
		if !c.HasScope(want) {
			missing = append(missing, want)
		}
	}
	return missing
}
