package calendar_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/gcalkit/internal/server"
	"github.com/teemow/gcalkit/internal/tools/common"
)

// RegisterAuthTools registers the sign-in state tools. Signing in needs an
// interactive consent flow and is left to the CLI.
func RegisterAuthTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	authStatusTool := mcp.NewTool("calendar_auth_status",
		mcp.WithDescription("Report whether the server is signed in to Google Calendar"),
	)

	s.AddTool(authStatusTool, common.InstrumentedToolHandler("calendar_auth_status", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAuthStatus(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	signOutTool := mcp.NewTool("calendar_sign_out",
		mcp.WithDescription("Sign out of Google Calendar and remove the cached token"),
	)

	s.AddTool(signOutTool, common.InstrumentedToolHandler("calendar_sign_out", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSignOut(ctx, request, sc)
		}))

	return nil
}

func handleAuthStatus(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	signedIn, err := sc.Calendar().IsClientAuthenticated(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check authentication: %v", err)), nil
	}

	if signedIn {
		return mcp.NewToolResultText(fmt.Sprintf("Signed in to Google Calendar (account: %s)", accountName(sc))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`Not signed in to Google Calendar (account: %s).

To authorize access run:

    gcalkit auth login --account %s

Note: You only need to authorize once. The token is refreshed automatically.`, accountName(sc), accountName(sc))), nil
}

func handleSignOut(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	// Checked first to report the signed-out case
	signedIn, err := sc.Calendar().IsClientAuthenticated(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check authentication: %v", err)), nil
	}
	if !signedIn {
		return mcp.NewToolResultText(fmt.Sprintf("Not signed in to Google Calendar (account: %s)", accountName(sc))), nil
	}

	if err := sc.Calendar().SignOut(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to sign out: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Signed out of Google Calendar (account: %s)", accountName(sc))), nil
}

func accountName(sc *server.ServerContext) string {
	if sc.Account() == "" {
		return "default"
	}
	return sc.Account()
}
