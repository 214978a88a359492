package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/toolgate/token"
)

// KeySource retrieves signing keys for signature verification.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: a fetch failure must be reported as (or wrap) ErrKeyFetch so
//   the validator can distinguish it from an unknown key ID.
type KeySource interface {
	// Key returns the verification key for the given key ID.
	Key(ctx context.Context, keyID string) (any, error)
}

// SignatureValidator verifies the credential's signature against the
// issuer's published key set, then applies the shared claim checks.
// A signature failure is terminal: it never degrades to claims-only
// evaluation.
type SignatureValidator struct {
	cfg    Config
	keys   KeySource
	parser *jwt.Parser
}

// NewSignatureValidator creates the signature-verified variant backed by
// the given key source.
func NewSignatureValidator(cfg Config, keys KeySource) *SignatureValidator {
	return &SignatureValidator{
		cfg:  cfg,
		keys: keys,
		// Claim validation is applied by checkClaims so rejection
		// reasons come out in the documented order.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// Name returns "signature".
func (v *SignatureValidator) Name() string { return VariantSignature }

// Evaluate verifies the signature, then the claims.
func (v *SignatureValidator) Evaluate(ctx context.Context, cs *token.ClaimSet, raw string) Outcome {
	if cs == nil {
		return Reject(ReasonMalformed, errors.New("policy: nil claim set"))
	}

	_, err := v.parser.Parse(raw, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := v.keys.Key(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key, nil
	})
	if err != nil {
		if errors.Is(err, ErrKeyFetch) {
			return Reject(ReasonKeyFetchFailed, fmt.Errorf("policy: %w", err))
		}
		return Reject(ReasonSignatureInvalid, fmt.Errorf("policy: signature verification failed: %w", err))
	}

	return checkClaims(v.cfg, cs)
}

var _ Validator = (*SignatureValidator)(nil)
