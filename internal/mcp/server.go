package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/switchboard/internal/mcp/handlers"
	"github.com/btouchard/switchboard/internal/session"
)

// HistoryStore is the read side of call history used by MCP tools.
type HistoryStore interface {
	handlers.EventReader
	handlers.DurationEstimator
}

// Deps holds shared dependencies injected into MCP handlers.
type Deps struct {
	Calls   *session.Manager
	History HistoryStore
	Version string
}

// NewServer creates and configures the MCP server with all tools registered.
func NewServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"Switchboard",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	registerTools(s, deps)

	return s
}
