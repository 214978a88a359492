package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/toolgate/token"
)

// Variant names for validator selection.
const (
	VariantSignature  = "signature"
	VariantClaimsOnly = "claims-only"
)

// Sentinel errors for policy construction and evaluation.
var (
	ErrUnknownVariant = errors.New("policy: unknown validation variant")
	ErrKeyNotFound    = errors.New("policy: signing key not found")
	ErrKeyFetch       = errors.New("policy: signing key fetch failed")
)

// Validator evaluates a parsed credential against the deployment's
// acceptance rules.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Evaluate should honor cancellation/deadlines.
// - Errors: failures are reported through the Outcome, never by panic;
//   an indeterminate state yields a rejection.
type Validator interface {
	// Name returns a unique identifier for this validator variant.
	Name() string

	// Evaluate checks the claim set (and, for the signature variant,
	// the raw credential's signature) and returns an outcome.
	Evaluate(ctx context.Context, cs *token.ClaimSet, raw string) Outcome
}

// Config holds the acceptance criteria shared by both validator variants.
type Config struct {
	// Variant selects the validator: VariantSignature or VariantClaimsOnly.
	Variant string

	// Audience is the expected aud claim value.
	Audience string

	// IssuerTemplate is the expected iss claim value, with an optional
	// {tenant} placeholder substituted by TenantID.
	IssuerTemplate string

	// TenantID parameterizes IssuerTemplate.
	TenantID string

	// RequiredScopes must all be present in the credential's scp claim.
	RequiredScopes []string

	// JWKSURL is the issuer's signing-key discovery endpoint.
	// Required for the signature variant, ignored otherwise.
	JWKSURL string

	// KeyRefreshInterval bounds how long fetched signing keys are cached.
	// Default: 1 hour.
	KeyRefreshInterval time.Duration

	// KeyFetchTimeout bounds a single key-set fetch. Default: 10 seconds.
	KeyFetchTimeout time.Duration

	// Now is the clock used for expiry checks. Default: time.Now.
	Now func() time.Time
}

// ExpectedIssuer returns the issuer template with {tenant} substituted.
func (c Config) ExpectedIssuer() string {
	return strings.ReplaceAll(c.IssuerTemplate, "{tenant}", c.TenantID)
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// New builds the validator selected by cfg.Variant. The variant is fixed
// for the life of the deployment; there is no per-request selection and
// no fallback between variants.
func New(cfg Config) (Validator, error) {
	switch cfg.Variant {
	case VariantSignature:
		if cfg.JWKSURL == "" {
			return nil, errors.New("policy: signature variant requires a JWKS URL")
		}
		keys := NewJWKS(JWKSConfig{
			URL:             cfg.JWKSURL,
			RefreshInterval: cfg.KeyRefreshInterval,
			FetchTimeout:    cfg.KeyFetchTimeout,
		})
		return NewSignatureValidator(cfg, keys), nil
	case VariantClaimsOnly:
		return NewClaimsOnlyValidator(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, cfg.Variant)
	}
}

// checkClaims applies the claim checks common to both variants, in fixed
// order, short-circuiting on the first failure: expiry, audience, issuer,
// scope superset.
func checkClaims(cfg Config, cs *token.ClaimSet) Outcome {
	now := cfg.now()
	if !now.Before(cs.ExpiresAt) {
		// Expiry exactly equal to now is already a rejection.
		return Reject(ReasonExpired, fmt.Errorf("policy: credential expired at %s", cs.ExpiresAt.UTC().Format(time.RFC3339)))
	}

	if !cs.HasAudience(cfg.Audience) {
		return Reject(ReasonWrongAudience, fmt.Errorf("policy: audience %v does not match expected", cs.Audiences))
	}

	if expected := cfg.ExpectedIssuer(); cs.Issuer != expected {
		return Reject(ReasonWrongIssuer, fmt.Errorf("policy: issuer %q does not match expected", cs.Issuer))
	}

	if missing := cs.MissingScopes(cfg.RequiredScopes); len(missing) > 0 {
		return Reject(ReasonMissingScope, fmt.Errorf("policy: missing required scopes %v", missing))
	}

	return Accept(cs)
}

// ClaimsOnlyValidator applies claim checks without cryptographic
// verification. It exists for issuers whose tokens carry a
// proof-of-possession nonce in the header, which breaks third-party
// signature verification; such tokens are documented by the provider as
// opaque to everyone but the target API.
type ClaimsOnlyValidator struct {
	cfg Config
}

// NewClaimsOnlyValidator creates the claims-only variant.
func NewClaimsOnlyValidator(cfg Config) *ClaimsOnlyValidator {
	return &ClaimsOnlyValidator{cfg: cfg}
}

// Name returns "claims-only".
func (v *ClaimsOnlyValidator) Name() string { return VariantClaimsOnly }

// Evaluate applies the ordered claim checks.
func (v *ClaimsOnlyValidator) Evaluate(_ context.Context, cs *token.ClaimSet, _ string) Outcome {
	if cs == nil {
		return Reject(ReasonMalformed, errors.New("policy: nil claim set"))
	}
	return checkClaims(v.cfg, cs)
}

var _ Validator = (*ClaimsOnlyValidator)(nil)
