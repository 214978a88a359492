package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jonwraymond/toolgate/gate"
	"github.com/jonwraymond/toolgate/graph"
)

// helloHandler greets the caller by the display name on their Graph
// profile, proving the granted credential works end to end.
func helloHandler(gc *graph.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		grant := gate.GrantFromContext(ctx)
		if grant == nil {
			return mcp.NewToolResultError("no grant in context"), nil
		}

		user, err := gc.Me(ctx, grant.Credential)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fetch profile: %v", err)), nil
		}

		name := user.DisplayName
		if name == "" {
			name = user.Mail
		}
		return mcp.NewToolResultText(fmt.Sprintf("Hello, %s!", name)), nil
	}
}

// junkHandler lists the caller's most recent junk emails.
func junkHandler(gc *graph.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		grant := gate.GrantFromContext(ctx)
		if grant == nil {
			return mcp.NewToolResultError("no grant in context"), nil
		}

		top := 5
		if v, ok := req.GetArguments()["top"].(float64); ok && v > 0 {
			top = int(v)
		}

		msgs, err := gc.JunkMessages(ctx, grant.Credential, top)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list junk emails: %v", err)), nil
		}
		if len(msgs) == 0 {
			return mcp.NewToolResultText("No junk emails found."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d junk emails:\n", len(msgs))
		for _, m := range msgs {
			subject := m.Subject
			if subject == "" {
				subject = "(no subject)"
			}
			fmt.Fprintf(&b, "- %s (from: %s, received: %s)\n",
				subject, m.From.EmailAddress.Address, m.ReceivedAt)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}
