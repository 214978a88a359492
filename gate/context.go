package gate

import (
	"context"
	"strings"
)

// Context keys for gate-related values.
type contextKey int

const (
	grantKey contextKey = iota
	headersKey
)

// WithGrant returns a new context carrying the grant.
func WithGrant(ctx context.Context, g *Grant) context.Context {
	return context.WithValue(ctx, grantKey, g)
}

// GrantFromContext retrieves the grant from the context, or nil.
func GrantFromContext(ctx context.Context) *Grant {
	g, _ := ctx.Value(grantKey).(*Grant)
	return g
}

// WithHeaders returns a new context carrying the transport's request
// headers, from which the bearer credential is later extracted.
func WithHeaders(ctx context.Context, headers map[string][]string) context.Context {
	return context.WithValue(ctx, headersKey, headers)
}

// HeadersFromContext retrieves request headers from the context, or nil.
func HeadersFromContext(ctx context.Context) map[string][]string {
	h, _ := ctx.Value(headersKey).(map[string][]string)
	return h
}

// BearerFromContext extracts the bearer credential from the headers in
// the context. Returns ("", false) when absent.
func BearerFromContext(ctx context.Context) (string, bool) {
	headers := HeadersFromContext(ctx)
	if headers == nil {
		return "", false
	}
	values := headers["Authorization"]
	if len(values) == 0 {
		return "", false
	}
	return extractBearer(values[0])
}

// extractBearer pulls the credential from an Authorization header value.
// The "Bearer" scheme is matched case-insensitively.
func extractBearer(header string) (string, bool) {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	cred := strings.TrimSpace(header[7:])
	if cred == "" {
		return "", false
	}
	return cred, true
}
