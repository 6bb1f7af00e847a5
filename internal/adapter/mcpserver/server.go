// Package mcpserver exposes the QTick tool catalog as a Model Context
// Protocol server.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/metrics"
)

// ToolLister enumerates the tools to publish.
type ToolLister interface {
	List() []domain.Tool
}

// Server wraps an MCP server whose tools are the registry's wrappers.
// Calls pass through the same schema validation as the chat path; with no
// caller credentials the backend falls back to its service token.
type Server struct {
	mcp     *server.MCPServer
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New registers every tool from tools on a fresh MCP server.
func New(tools ToolLister, version string, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		mcp:     server.NewMCPServer("QTick Service", version, server.WithToolCapabilities(false)),
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
	for _, t := range tools.List() {
		schema := t.Schema()
		s.mcp.AddTool(mcp.NewToolWithRawSchema(schema.Name, schema.Description, schema.Parameters), s.handler(t))
	}
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves requests on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp server listening on stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) handler(t domain.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		args, err := json.Marshal(req.GetRawArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if string(args) == "null" {
			args = []byte("{}")
		}

		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		env, err := t.Execute(ctx, args)
		if err != nil {
			s.metrics.ObserveTool(t.Name(), metrics.OutcomeError, time.Since(start))
			s.logger.Warn("mcp tool failed", "tool", t.Name(), "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("Error executing tool %s: %v", t.Name(), err)), nil
		}
		s.metrics.ObserveTool(t.Name(), metrics.OutcomeOK, time.Since(start))
		env.Finalize()
		return mcp.NewToolResultText(env.Text), nil
	}
}
