package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bctelemetry/bctb/internal/mcpserver"
	"github.com/bctelemetry/bctb/internal/queries"
	"github.com/bctelemetry/bctb/internal/telemetry"
	"github.com/bctelemetry/bctb/internal/tools"
)

func mcpCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the telemetry tools over MCP stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the full
tool set to MCP clients (Claude Desktop, VS Code, ...). Logs go to stderr;
stdout carries only protocol frames.

Example client registration:
  { "command": "bctb", "args": ["mcp", "-p", "production"] }`,
		Run: func(cmd *cobra.Command, args []string) {
			runMCP(profile)
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "connection profile (default: BCTB_PROFILE or the config default)")

	return cmd
}

func runMCP(profile string) {
	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}
	sink := telemetry.NewSink(cfg.Telemetry)
	defer sink.Close(context.Background())

	handlers, err := tools.NewHandlers(cfg, profile, sink)
	if err != nil {
		fail(err)
	}

	// Keep saved-query listings fresh while external editors touch the
	// folder. Optional: a nil watcher just means lazy rescans.
	watcher := queries.Watch(handlers.QueryStore())
	defer watcher.Close()

	srv, err := mcpserver.New(Version, handlers, sink)
	if err != nil {
		fail(err)
	}
	if err := srv.Serve(context.Background()); err != nil {
		fail(err)
	}
}
