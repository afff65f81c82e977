// Package mcp exposes the health record store and the change-log router as
// Model Context Protocol tools over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/ziadkadry99/healthagent/internal/audit"
	"github.com/ziadkadry99/healthagent/internal/changelog"
	"github.com/ziadkadry99/healthagent/internal/health"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes health record tools.
type Server struct {
	store  *health.Store
	router *changelog.Router
	audit  *audit.Store
	logger zerolog.Logger
	mcp    *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies. auditStore
// may be nil.
func NewServer(store *health.Store, router *changelog.Router, auditStore *audit.Store, logger zerolog.Logger) *Server {
	s := &Server{
		store:  store,
		router: router,
		audit:  auditStore,
		logger: logger.With().Str("component", "mcp").Logger(),
	}

	s.mcp = server.NewMCPServer(
		"healthagent",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(getLatestMetricTool, s.handleGetLatestMetric)
	s.mcp.AddTool(listMetricsTool, s.handleListMetrics)
	s.mcp.AddTool(getPreferencesTool, s.handleGetPreferences)
	s.mcp.AddTool(listMessagesTool, s.handleListMessages)
	s.mcp.AddTool(listFieldsTool, s.handleListFields)
	s.mcp.AddTool(applyChangeLogTool, s.handleApplyChangeLog)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
