package gate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// HTTPContextFunc copies the inbound request's headers into the context
// so Require can extract the bearer credential after the transport layer
// has dispatched the call. Pass it to the MCP server via
// server.WithHTTPContextFunc.
func HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	return WithHeaders(ctx, r.Header)
}

// WithAuthHeaders is HTTP middleware that extracts request headers into
// the context, for handlers mounted outside the MCP transport.
func WithAuthHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithHeaders(r.Context(), r.Header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require wraps a tool handler so it only runs behind an authorization
// decision. On denial the handler never executes and the caller receives
// a structured error result carrying the reason code; denial results are
// shaped identically for every reason so callers cannot distinguish
// failure modes beyond the code itself.
func Require(g *Gate, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, ok := BearerFromContext(ctx)
		if !ok {
			raw = ""
		}

		grant, err := g.Authorize(ctx, raw)
		if err != nil {
			reason, _ := DenialReason(err)
			return mcp.NewToolResultError(fmt.Sprintf("authorization denied: %s", reason)), nil
		}

		return next(WithGrant(ctx, grant), req)
	}
}
