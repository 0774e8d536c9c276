package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/switchboard/internal/session"
)

// DurationEstimator provides historical call duration data.
type DurationEstimator interface {
	GetAverageCallDuration(remote string) (time.Duration, int, error)
}

// CallStats returns a handler that summarises live and historical calls.
func CallStats(sm *session.Manager, est DurationEstimator) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		remote, _ := args["remote"].(string)

		avg, count, err := est.GetAverageCallDuration(remote)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Reading call history failed: %s", err)), nil
		}

		text := fmt.Sprintf("Active calls: %d\n", sm.ActiveCount())
		if count == 0 {
			text += "No finished calls in history yet."
		} else {
			scope := "all remotes"
			if remote != "" {
				scope = remote
			}
			text += fmt.Sprintf("Average duration (%s): %s over %d calls", scope, avg.Round(time.Second), count)
		}

		return mcp.NewToolResultText(text), nil
	}
}
