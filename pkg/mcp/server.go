// Package mcp exposes swarm domain tools over the Model Context Protocol and
// adapts tools served by other MCP servers back into domain tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/swarm/pkg/core"
)

// Server serves a set of domain tools over MCP.
type Server struct {
	mcpServer *server.MCPServer
	logger    *slog.Logger
	tools     []string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger used for tool calls.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates an MCP server advertising name and version.
func NewServer(name, version string, opts ...ServerOption) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTools registers tools. Names must be unique across calls.
func (s *Server) AddTools(tools ...*core.DomainTool) error {
	for _, tool := range tools {
		if err := s.addTool(tool); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) addTool(tool *core.DomainTool) error {
	if tool == nil {
		return fmt.Errorf("mcp: nil tool")
	}
	for _, name := range s.tools {
		if name == tool.Name() {
			return fmt.Errorf("mcp: tool %q already registered", name)
		}
	}
	schema, err := json.Marshal(tool.Schema())
	if err != nil {
		return fmt.Errorf("mcp: tool %q schema: %w", tool.Name(), err)
	}

	def := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(def, s.handler(tool))
	s.tools = append(s.tools, tool.Name())
	return nil
}

func (s *Server) handler(tool *core.DomainTool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		out, err := tool.Call(ctx, req.GetArguments())
		log := s.logger.With(
			slog.String("tool", tool.Name()),
			slog.Float64("duration_ms", time.Since(start).Seconds()*1000),
		)
		if err != nil {
			log.WarnContext(ctx, "mcp.tool.error", slog.String("error", err.Error()))
			// Tool failures are reported in-band so the caller sees them as results.
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := encodeOutput(out)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		log.InfoContext(ctx, "mcp.tool.call")
		return mcp.NewToolResultText(text), nil
	}
}

// Tools returns the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func encodeOutput(out any) (string, error) {
	switch v := out.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("mcp: encode tool output: %w", err)
	}
	return string(data), nil
}
