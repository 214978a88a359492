package exchange

import (
	"sync"
	"time"
)

// credentialCache holds downstream credentials keyed by subject and
// requested scope. Read-heavy with short-held write locks; entries are
// dropped lazily once they fall inside the safety margin. Entries are
// never shared across subjects because the subject is part of the key.
type credentialCache struct {
	mu      sync.RWMutex
	entries map[string]*Credential
}

func newCredentialCache() *credentialCache {
	return &credentialCache{entries: make(map[string]*Credential)}
}

// cacheKey joins subject and scope with a separator that cannot appear
// in either (scopes are space-delimited tokens, subjects are claim values).
func cacheKey(subject, scope string) string {
	return subject + "\x00" + scope
}

// get returns the live credential for key, if any. A credential is live
// while now is before expiry minus the safety margin.
func (c *credentialCache) get(key string, now time.Time, margin time.Duration) (*Credential, bool) {
	c.mu.RLock()
	cred, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if !now.Before(cred.ExpiresAt.Add(-margin)) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == cred {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return cred, true
}

// put stores a credential under key, replacing any prior entry.
func (c *credentialCache) put(key string, cred *Credential) {
	c.mu.Lock()
	c.entries[key] = cred
	c.mu.Unlock()
}
