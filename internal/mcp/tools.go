package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/switchboard/internal/mcp/handlers"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// list_calls: List live and recently ended calls
	s.AddTool(
		mcp.NewTool("list_calls",
			mcp.WithDescription("List calls known to this process, newest first, with optional filters."),
			mcp.WithString("status",
				mcp.Description("Filter by status"),
				mcp.Enum("all", "initiated", "ringing", "connected", "disconnected"),
			),
			mcp.WithString("remote",
				mcp.Description("Filter by remote address"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of calls to return (default: 20)"),
			),
		),
		handlers.ListCalls(deps.Calls),
	)

	// check_call: Check call state
	s.AddTool(
		mcp.NewTool("check_call",
			mcp.WithDescription("Check the current state of a call. Supports long-polling with wait_seconds to wait for the next status change."),
			mcp.WithString("call_id",
				mcp.Required(),
				mcp.Description("The call ID"),
			),
			mcp.WithNumber("wait_seconds",
				mcp.Description("Wait up to N seconds (max 30) for a status change before responding. 0 for immediate response."),
			),
		),
		handlers.CheckCall(deps.Calls),
	)

	// get_call_events: Read the recorded event history of a call
	s.AddTool(
		mcp.NewTool("get_call_events",
			mcp.WithDescription("Get the recorded events of a call (ringing, connect, media changes, disconnect), oldest first."),
			mcp.WithString("call_id",
				mcp.Required(),
				mcp.Description("The call ID"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of most recent events to return (default: 50)"),
			),
		),
		handlers.GetCallEvents(deps.History),
	)

	// call_stats: Active count and historical average duration
	s.AddTool(
		mcp.NewTool("call_stats",
			mcp.WithDescription("Show the number of active calls and the average duration of finished calls."),
			mcp.WithString("remote",
				mcp.Description("Restrict the average to one remote address"),
			),
		),
		handlers.CallStats(deps.Calls, deps.History),
	)

	// hangup_call: Disconnect a live call
	s.AddTool(
		mcp.NewTool("hangup_call",
			mcp.WithDescription("Disconnect a live call."),
			mcp.WithString("call_id",
				mcp.Required(),
				mcp.Description("The call ID to disconnect"),
			),
			mcp.WithString("reason",
				mcp.Description("Disconnection type (default: local_left)"),
				mcp.Enum("local_cancel", "local_decline", "local_left", "other_connected",
					"other_declined", "remote_cancel", "remote_decline", "remote_left", "error"),
			),
		),
		handlers.HangupCall(deps.Calls),
	)
}
