package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/switchboard/internal/call"
	"github.com/btouchard/switchboard/internal/session"
)

// ListCalls returns a handler that lists calls with optional filters.
func ListCalls(sm *session.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		filter := session.Filter{
			Limit: 20,
		}

		if status, ok := args["status"].(string); ok {
			filter.Status = status
		}
		if remote, ok := args["remote"].(string); ok {
			filter.Remote = remote
		}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			filter.Limit = int(limit)
		}

		calls := sm.List(filter)

		if len(calls) == 0 {
			return mcp.NewToolResultText("No calls found matching the given filters."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📞 Calls (%d found)\n\n", len(calls))

		for _, c := range calls {
			fmt.Fprintf(&sb, "%s **%s** — %s (%s)\n", statusIcon(c.Status), c.ID, c.Status, c.Direction)
			fmt.Fprintf(&sb, "  Remote: %s\n", c.Remote)

			switch c.Status {
			case call.StatusConnected:
				fmt.Fprintf(&sb, "  Duration: %s | %s\n", c.FormatDuration(), mediaLine(c))
			case call.StatusDisconnected:
				fmt.Fprintf(&sb, "  Duration: %s | Reason: %s\n", c.FormatDuration(), c.DisconnectReason)
			}

			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func statusIcon(s call.Status) string {
	switch s {
	case call.StatusInitiated:
		return "⏳"
	case call.StatusRinging:
		return "🔔"
	case call.StatusConnected:
		return "🟢"
	case call.StatusDisconnected:
		return "⚫"
	default:
		return "❓"
	}
}

func mediaLine(c call.Snapshot) string {
	return fmt.Sprintf("Video: %s | Audio: %s | Camera: %s",
		onOff(c.SendingVideo), onOff(c.SendingAudio), c.FacingMode)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
