// Package mcpserver exposes the tool handlers over the Model Context
// Protocol on stdio. Every call routes through the same Handlers.Execute
// path the agent runtime uses, so caching, profile switching, and
// telemetry behave identically regardless of who is asking.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bctelemetry/bctb/internal/telemetry"
	"github.com/bctelemetry/bctb/internal/tools"
)

const serverName = "bctb"

// Server fronts a Handlers set with an MCP stdio transport.
type Server struct {
	version  string
	handlers *tools.Handlers
	sink     *telemetry.Sink
	mcp      *server.MCPServer
}

// New builds the server and registers every tool definition with its JSON
// schema and behavior hints.
func New(version string, handlers *tools.Handlers, sink *telemetry.Sink) (*Server, error) {
	s := &Server{
		version:  version,
		handlers: handlers,
		sink:     sink,
		mcp: server.NewMCPServer(serverName, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	for _, def := range handlers.Definitions() {
		tool, err := buildTool(def)
		if err != nil {
			return nil, err
		}
		s.mcp.AddTool(tool, s.toolHandler(def.Name))
	}
	return s, nil
}

// buildTool converts one definition into an MCP tool declaration. The
// schema maps are static, so a marshal failure means the definition
// itself is broken.
func buildTool(def tools.Definition) (mcp.Tool, error) {
	schema, err := json.Marshal(def.InputSchema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("tool %s: marshal input schema: %w", def.Name, err)
	}
	tool := mcp.NewToolWithRawSchema(def.Name, def.Description, schema)
	tool.Annotations = mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(def.Annotations.ReadOnly),
		DestructiveHint: mcp.ToBoolPtr(def.Annotations.Destructive),
		IdempotentHint:  mcp.ToBoolPtr(def.Annotations.Idempotent),
		OpenWorldHint:   mcp.ToBoolPtr(def.Annotations.OpenWorld),
	}
	return tool, nil
}

// toolHandler adapts one tool to the MCP call shape. Tool failures become
// protocol-level error results, not transport errors, so the client sees
// the handler's message verbatim.
func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}
		result, err := s.handlers.Execute(ctx, name, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("marshal %s result: %v", name, err)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// Serve announces startup and blocks on the stdio transport until the
// client disconnects or the process is interrupted. Logs go to stderr;
// stdout carries only protocol frames.
func (s *Server) Serve(ctx context.Context) error {
	s.sink.Emit(ctx, telemetry.Event{
		Name:        telemetry.EventServerStarted,
		ProfileHash: telemetry.ProfileHash(s.handlers.ActiveProfile()),
	})
	slog.Info("MCP server listening on stdio",
		"server", serverName,
		"version", s.version,
		"profile", s.handlers.ActiveProfile(),
		"tools", len(s.handlers.Definitions()))
	return server.ServeStdio(s.mcp)
}
