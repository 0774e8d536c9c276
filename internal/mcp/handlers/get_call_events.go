package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/switchboard/internal/store"
)

// EventReader reads the persisted audit trail of a call.
type EventReader interface {
	GetEvents(callID string, limit int) ([]store.CallEvent, error)
}

// GetCallEvents returns a handler that lists the recorded events of a call,
// oldest first.
func GetCallEvents(r EventReader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		callID, _ := args["call_id"].(string)
		if callID == "" {
			return mcp.NewToolResultError("call_id is required"), nil
		}

		limit := 50
		if n, ok := args["limit"].(float64); ok && n > 0 {
			limit = int(n)
		}

		events, err := r.GetEvents(callID, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Reading events failed: %s", err)), nil
		}
		if len(events) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No events recorded for %s.", callID)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Events for %s (%d)\n\n", callID, len(events))
		for i := len(events) - 1; i >= 0; i-- {
			e := events[i]
			fmt.Fprintf(&b, "%s  %-28s %s\n", e.CreatedAt.Format("15:04:05.000"), e.EventType, e.Message)
		}

		return mcp.NewToolResultText(b.String()), nil
	}
}
