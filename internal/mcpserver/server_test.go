package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bctelemetry/bctb/internal/config"
	"github.com/bctelemetry/bctb/internal/tools"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BCTB_WORKSPACE_PATH", dir)

	cfg := config.Default()
	cfg.Path = filepath.Join(dir, config.ConfigFileName)

	handlers, err := tools.NewHandlers(cfg, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New("test", handlers, nil)
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := srv.toolHandler(name)(context.Background(), req)
	if err != nil {
		t.Fatalf("%s: transport error: %v", name, err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %+v", res.Content)
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestBuildTool_SchemasAndAnnotations(t *testing.T) {
	defs := tools.Definitions()
	if len(defs) != 17 {
		t.Fatalf("definitions = %d, want 17", len(defs))
	}

	byName := map[string]mcp.Tool{}
	for _, def := range defs {
		tool, err := buildTool(def)
		if err != nil {
			t.Fatalf("%s: %v", def.Name, err)
		}
		var schema map[string]interface{}
		if err := json.Unmarshal(tool.RawInputSchema, &schema); err != nil {
			t.Fatalf("%s: raw schema: %v", def.Name, err)
		}
		if schema["type"] != "object" {
			t.Errorf("%s: schema type = %v", def.Name, schema["type"])
		}
		byName[def.Name] = tool
	}

	query := byName["query_telemetry"].Annotations
	if !*query.ReadOnlyHint || !*query.OpenWorldHint || *query.DestructiveHint {
		t.Errorf("query_telemetry annotations = %+v", query)
	}
	save := byName["save_query"].Annotations
	if *save.ReadOnlyHint || !*save.IdempotentHint {
		t.Errorf("save_query annotations = %+v", save)
	}
}

// The MCP surface is unfiltered: the mutating tools stay registered even
// though agent runs default to the read-only scope.
func TestServer_ExposesMutatingTools(t *testing.T) {
	srv := newTestServer(t)

	res := callTool(t, srv, "save_query", map[string]interface{}{
		"name":     "slow-reports",
		"query":    "traces | where timestamp > ago(1d)",
		"category": "perf",
	})
	if res.IsError {
		t.Fatalf("save_query failed: %s", resultText(t, res))
	}

	res = callTool(t, srv, "get_saved_queries", map[string]interface{}{"category": "perf"})
	var listing struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &listing); err != nil {
		t.Fatal(err)
	}
	if listing.Total != 1 {
		t.Errorf("total = %d, want 1", listing.Total)
	}
}

func TestToolHandler_MarshalsResults(t *testing.T) {
	srv := newTestServer(t)

	res := callTool(t, srv, "get_cache_stats", nil)
	if res.IsError {
		t.Fatalf("get_cache_stats failed: %s", resultText(t, res))
	}
	var stats struct {
		Enabled    bool `json:"enabled"`
		TTLSeconds int  `json:"ttlSeconds"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &stats); err != nil {
		t.Fatal(err)
	}
	if !stats.Enabled || stats.TTLSeconds == 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestToolHandler_ErrorsBecomeToolResults(t *testing.T) {
	srv := newTestServer(t)

	res := callTool(t, srv, "get_recommendations", map[string]interface{}{})
	if !res.IsError {
		t.Fatal("expected error result")
	}
	if text := resultText(t, res); !strings.Contains(text, "query is required") {
		t.Errorf("error text = %q", text)
	}
}
