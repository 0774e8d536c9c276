package handlers

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/switchboard/internal/call"
	"github.com/btouchard/switchboard/internal/session"
)

// HangupCall returns a handler that disconnects a live call.
func HangupCall(sm *session.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		callID, _ := args["call_id"].(string)
		if callID == "" {
			return mcp.NewToolResultError("call_id is required"), nil
		}

		reason := call.DisconnectLocalLeft
		if r, ok := args["reason"].(string); ok && r != "" {
			reason = call.DisconnectionType(r)
		}

		if err := sm.Hangup(callID, reason); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Hangup failed: %s", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Call %s disconnected (%s).", callID, reason)), nil
	}
}
