package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/switchboard/internal/call"
	"github.com/btouchard/switchboard/internal/session"
)

const (
	longPollInterval = 250 * time.Millisecond
	longPollMaxWait  = 30
)

// CheckCall returns a handler that reports a call's current state.
// When wait_seconds > 0 and the call is still live, it long-polls
// until the status changes or the timeout expires.
func CheckCall(sm *session.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		callID, _ := args["call_id"].(string)
		if callID == "" {
			return mcp.NewToolResultError("call_id is required"), nil
		}

		c, err := sm.Get(callID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Call not found: %s", err)), nil
		}

		waitSeconds := 0
		if w, ok := args["wait_seconds"].(float64); ok && w > 0 {
			waitSeconds = min(int(w), longPollMaxWait)
		}

		snap := c.Snapshot()

		if waitSeconds > 0 && snap.Status != call.StatusDisconnected {
			snap = waitForChange(ctx, c, snap, time.Duration(waitSeconds)*time.Second)
		}

		return mcp.NewToolResultText(formatCheckResponse(snap)), nil
	}
}

// waitForChange polls the call until its status changes, the call ends or
// the timeout expires. Media changes alone do not end the wait.
func waitForChange(ctx context.Context, c *call.Call, initial call.Snapshot, timeout time.Duration) call.Snapshot {
	deadline := time.After(timeout)
	ticker := time.NewTicker(longPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.Snapshot()
		case <-c.Done():
			return c.Snapshot()
		case <-deadline:
			return c.Snapshot()
		case <-ticker.C:
			snap := c.Snapshot()
			if snap.Status != initial.Status {
				return snap
			}
		}
	}
}

func formatCheckResponse(snap call.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Call: %s\n", snap.ID)
	fmt.Fprintf(&b, "Remote: %s (%s)\n", snap.Remote, snap.Direction)
	fmt.Fprintf(&b, "Status: %s\n", snap.Status)

	switch snap.Status {
	case call.StatusConnected:
		fmt.Fprintf(&b, "Duration: %s\n", snap.FormatDuration())
		fmt.Fprintf(&b, "Local: video %s, audio %s, camera %s\n",
			onOff(snap.SendingVideo), onOff(snap.SendingAudio), snap.FacingMode)
		fmt.Fprintf(&b, "Remote: video %s, audio %s\n",
			onOff(snap.RemoteSendingVideo), onOff(snap.RemoteSendingAudio))
		fmt.Fprintf(&b, "Loudspeaker: %s | DTMF: %s\n", onOff(snap.LoudSpeaker), onOff(snap.SendingDTMF))
		if snap.RemoteView.Width > 0 {
			fmt.Fprintf(&b, "Remote view: %dx%d\n", snap.RemoteView.Width, snap.RemoteView.Height)
		}

	case call.StatusDisconnected:
		fmt.Fprintf(&b, "Duration: %s\n", snap.FormatDuration())
		fmt.Fprintf(&b, "Reason: %s\n", snap.DisconnectReason)
		b.WriteString("\nUse get_call_events for the full history.")
	}

	return b.String()
}
