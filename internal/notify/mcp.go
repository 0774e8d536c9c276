package notify

import (
	"sync"
	"time"

	"github.com/btouchard/switchboard/internal/call"
)

// MCPSender abstracts the mcp-go server notification method.
// Defined consumer-side per Go convention.
type MCPSender interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// MCPNotifier pushes call events to connected MCP clients.
type MCPNotifier struct {
	sender   MCPSender
	debounce time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time // callID → last view size notification time
}

// NewMCPNotifier creates an MCPNotifier. View size events, which arrive in
// bursts while a window is resized, are debounced per call; everything else
// is sent immediately.
func NewMCPNotifier(sender MCPSender, debounce time.Duration) *MCPNotifier {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &MCPNotifier{
		sender:   sender,
		debounce: debounce,
		lastSent: make(map[string]time.Time),
	}
}

// Notify sends an MCP notification for the given event.
func (n *MCPNotifier) Notify(event Event) {
	switch event.Kind {
	case EventRemoteViewSizeChanged, EventLocalViewSizeChanged:
		if !n.allow(event.Call.ID) {
			return
		}
		n.send(event, "debug")
	case EventCallDisconnected:
		n.clearDebounce(event.Call.ID)
		level := "info"
		if event.Detail == string(call.DisconnectError) {
			level = "error"
		}
		n.send(event, level)
	default:
		n.send(event, "info")
	}
}

// allow reports whether a view size notification for callID is outside the
// debounce window, and records it if so.
func (n *MCPNotifier) allow(callID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	last, ok := n.lastSent[callID]
	if ok && time.Since(last) < n.debounce {
		return false
	}
	n.lastSent[callID] = time.Now()
	return true
}

func (n *MCPNotifier) send(event Event, level string) {
	params := map[string]any{
		"level":  level,
		"logger": "switchboard",
		"data": map[string]any{
			"type":    string(event.Kind),
			"call_id": event.Call.ID,
			"remote":  event.Call.Remote,
			"status":  string(event.Call.Status),
			"message": event.Message(),
		},
	}
	n.sender.SendNotificationToAllClients("notifications/message", params)
}

// clearDebounce removes the debounce entry for a finished call.
func (n *MCPNotifier) clearDebounce(callID string) {
	n.mu.Lock()
	delete(n.lastSent, callID)
	n.mu.Unlock()
}
