package policy

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/toolgate/resilience"
)

// JWKSConfig configures the JWKS-backed key source.
type JWKSConfig struct {
	// URL is the issuer's key discovery endpoint.
	URL string

	// RefreshInterval is how long a fetched key set stays fresh.
	// Default: 1 hour.
	RefreshInterval time.Duration

	// FetchTimeout bounds a single fetch. Default: 10 seconds.
	FetchTimeout time.Duration

	// HTTPClient is the client used for fetches. If nil, a default
	// client is used.
	HTTPClient *http.Client
}

// JWKS fetches and caches an issuer's signing keys. The key set is
// read-heavy shared state: lookups take a read lock, refreshes are
// coalesced through singleflight so concurrent cache misses trigger a
// single fetch. The last successfully fetched set is retained so a
// transient fetch failure does not invalidate known keys.
type JWKS struct {
	cfg JWKSConfig

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time

	group singleflight.Group
}

// NewJWKS creates a JWKS key source.
func NewJWKS(cfg JWKSConfig) *JWKS {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return &JWKS{
		cfg:  cfg,
		keys: make(map[string]*rsa.PublicKey),
	}
}

// Key implements KeySource. If keyID is empty and exactly one key is
// cached, that key is returned.
func (j *JWKS) Key(ctx context.Context, keyID string) (any, error) {
	j.mu.RLock()
	fresh := time.Since(j.fetchedAt) < j.cfg.RefreshInterval
	key := j.lookupLocked(keyID)
	j.mu.RUnlock()

	if fresh && key != nil {
		return key, nil
	}

	_, err, _ := j.group.Do("refresh", func() (any, error) {
		return nil, j.refresh(ctx)
	})
	if err != nil {
		// A stale key beats no key: verification against a rotated-out
		// key fails closed at the signature check.
		j.mu.RLock()
		key := j.lookupLocked(keyID)
		j.mu.RUnlock()
		if key != nil {
			return key, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}

	j.mu.RLock()
	key = j.lookupLocked(keyID)
	j.mu.RUnlock()

	if key == nil {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// lookupLocked finds a key by ID. Caller must hold at least the read lock.
func (j *JWKS) lookupLocked(keyID string) *rsa.PublicKey {
	if keyID == "" {
		if len(j.keys) == 1 {
			for _, k := range j.keys {
				return k
			}
		}
		return nil
	}
	return j.keys[keyID]
}

func (j *JWKS) refresh(ctx context.Context) error {
	return resilience.ExecuteWithTimeout(ctx, j.cfg.FetchTimeout, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.cfg.URL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := j.cfg.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch key set: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch key set: unexpected status %d", resp.StatusCode)
		}

		var doc keySetDocument
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return fmt.Errorf("decode key set: %w", err)
		}

		keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
		for _, k := range doc.Keys {
			if k.Kty != "RSA" {
				continue
			}
			pub, err := k.publicKey()
			if err != nil {
				continue
			}
			keys[k.Kid] = pub
		}

		j.mu.Lock()
		j.keys = keys
		j.fetchedAt = time.Now()
		j.mu.Unlock()
		return nil
	})
}

// keySetDocument is the JWKS discovery response.
type keySetDocument struct {
	Keys []keyEntry `json:"keys"`
}

type keyEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// publicKey converts the JWK modulus/exponent pair to an RSA public key.
func (k keyEntry) publicKey() (*rsa.PublicKey, error) {
	if k.N == "" || k.E == "" {
		return nil, fmt.Errorf("incomplete RSA key %q", k.Kid)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

var _ KeySource = (*JWKS)(nil)
