package calendar_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/freeslot/internal/credentials"
	"github.com/teemow/freeslot/internal/server"
	"github.com/teemow/freeslot/internal/tools/common"
)

// tokenStatusResult is the JSON body returned by credentials_token_status.
type tokenStatusResult struct {
	UserID string `json:"user_id"`
	Cached bool   `json:"cached"`
	credentials.TokenStatus
}

func registerCredentialTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool(ToolTokenStatus,
		mcp.WithDescription("Show whether a usable Google credential is cached for the user and when it expires. Token values are never returned."),
		userOption(),
		mcp.WithBoolean("refresh",
			mcp.Description("Load and, if expired, refresh the credential before reporting (default: false)"),
		),
	)
	s.AddTool(tool, common.InstrumentedToolHandler(ToolTokenStatus, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleTokenStatus(ctx, request, sc)
	}))
}

func handleTokenStatus(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	userID, _ := credentials.UserFromContext(ctx)
	if userID == "" {
		userID = sc.DefaultUser()
	}

	if common.BoolArg(request.GetArguments(), "refresh") {
		if _, err := sc.Credentials().GetValid(ctx, userID); err != nil {
			return errorResult("load credential", err), nil
		}
	}

	result := tokenStatusResult{UserID: userID}
	result.TokenStatus, result.Cached = sc.Credentials().Status(userID)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode token status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
