package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedCredential indicates the bearer string is not a structurally
// valid credential or lacks a required claim.
var ErrMalformedCredential = errors.New("token: malformed credential")

// Parse decodes a bearer credential into a ClaimSet without verifying its
// signature. The exp, aud, iss, and subject claims are required; their
// absence fails parsing rather than deferring the failure to validation.
//
// Parse is a pure function of its input and performs no I/O.
func Parse(raw string) (*ClaimSet, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrMalformedCredential)
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	cs := &ClaimSet{Raw: claims}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing or invalid exp claim", ErrMalformedCredential)
	}
	cs.ExpiresAt = exp.Time

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		cs.IssuedAt = iat.Time
	}

	cs.Audiences = audiences(claims)
	if len(cs.Audiences) == 0 {
		return nil, fmt.Errorf("%w: missing aud claim", ErrMalformedCredential)
	}

	iss, _ := claims["iss"].(string)
	if iss == "" {
		return nil, fmt.Errorf("%w: missing iss claim", ErrMalformedCredential)
	}
	cs.Issuer = iss

	cs.Subject = subject(claims)
	if cs.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject claim", ErrMalformedCredential)
	}

	cs.Scopes = scopes(claims)
	cs.AppID = appID(claims)

	return cs, nil
}

// audiences normalizes the aud claim, which may be a string or an array.
func audiences(claims jwt.MapClaims) []string {
	switch v := claims["aud"].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, a := range v {
			if s, ok := a.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// subject prefers sub and falls back to oid, which some providers use as
// the stable per-user identifier.
func subject(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if oid, ok := claims["oid"].(string); ok && oid != "" {
		return oid
	}
	return ""
}

// scopes splits the scp claim. Both the space-delimited string form and
// the array form are accepted.
func scopes(claims jwt.MapClaims) []string {
	switch v := claims["scp"].(type) {
	case string:
		return strings.Fields(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func appID(claims jwt.MapClaims) string {
	if v, ok := claims["appid"].(string); ok && v != "" {
		return v
	}
	if v, ok := claims["azp"].(string); ok && v != "" {
		return v
	}
	return ""
}
