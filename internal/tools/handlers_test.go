package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bctelemetry/bctb/internal/config"
)

// fakeCluster serves the Application Insights query API shape. Responses
// are selected by substring match over the submitted KQL.
type fakeCluster struct {
	responses map[string]clusterTable // KQL substring -> table
	calls     int
}

type clusterTable struct {
	columns []string
	rows    [][]interface{}
}

func (f *fakeCluster) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		var body struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for marker, table := range f.responses {
			if strings.Contains(body.Query, marker) {
				writeTable(w, table)
				return
			}
		}
		writeTable(w, clusterTable{columns: []string{"print_0"}, rows: [][]interface{}{}})
	}
}

func writeTable(w http.ResponseWriter, t clusterTable) {
	cols := make([]map[string]string, len(t.columns))
	for i, name := range t.columns {
		cols[i] = map[string]string{"name": name, "type": "string"}
	}
	rows := t.rows
	if rows == nil {
		rows = [][]interface{}{}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tables": []map[string]interface{}{
			{"name": "PrimaryResult", "columns": cols, "rows": rows},
		},
	})
}

// newTestHandlers wires Handlers at a fake cluster with a static token.
func newTestHandlers(t *testing.T, cluster *fakeCluster) *Handlers {
	t.Helper()
	t.Setenv("BCTB_ACCESS_TOKEN", "test-token")

	srv := httptest.NewServer(cluster.handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.AppID = "test-app"
	cfg.APIEndpoint = srv.URL
	cfg.QueriesFolder = t.TempDir()

	h, err := NewHandlers(cfg, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func asMap(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	m, ok := v.(map[string]interface{})
	if !ok {
		t.Fatalf("result type = %T, want map", v)
	}
	return m
}

func TestExecute_UnknownTool(t *testing.T) {
	h := newTestHandlers(t, &fakeCluster{})
	_, err := h.Execute(context.Background(), "launch_missiles", nil)
	if err == nil || !strings.Contains(err.Error(), `unknown tool "launch_missiles"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestExecute_NilArgs(t *testing.T) {
	h := newTestHandlers(t, &fakeCluster{})
	out, err := h.Execute(context.Background(), "get_cache_stats", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out == nil {
		t.Fatal("nil result")
	}
}

func TestExecute_AuthStatusNeverFails(t *testing.T) {
	h := newTestHandlers(t, &fakeCluster{})
	out, err := h.Execute(context.Background(), "get_auth_status", map[string]interface{}{})
	if err != nil {
		t.Fatalf("get_auth_status must not fail: %v", err)
	}
	data, _ := json.Marshal(out)
	if !strings.Contains(string(data), `"authenticated":true`) {
		t.Errorf("status = %s", data)
	}
}

func TestDefinitions_CountAndNames(t *testing.T) {
	defs := Definitions()
	if len(defs) != 17 {
		t.Fatalf("definitions = %d, want 17", len(defs))
	}
	seen := map[string]bool{}
	for _, d := range defs {
		if d.Name == "" || d.Description == "" {
			t.Errorf("definition %+v missing name or description", d)
		}
		if seen[d.Name] {
			t.Errorf("duplicate tool %q", d.Name)
		}
		seen[d.Name] = true
		if d.InputSchema["type"] != "object" {
			t.Errorf("%s: schema type = %v", d.Name, d.InputSchema["type"])
		}
	}
	for _, name := range []string{"get_event_catalog", "query_telemetry", "switch_profile", "get_auth_status"} {
		if !seen[name] {
			t.Errorf("missing tool %q", name)
		}
	}
}

func TestFilterByScope(t *testing.T) {
	defs := Definitions()

	ro := FilterByScope(defs, "read-only")
	if len(ro) != len(defs)-2 {
		t.Fatalf("read-only size = %d, want %d", len(ro), len(defs)-2)
	}
	for _, d := range ro {
		if d.Name == "save_query" || d.Name == "switch_profile" {
			t.Errorf("%s leaked into read-only scope", d.Name)
		}
	}

	full := FilterByScope(defs, "full")
	if len(full) != len(defs) {
		t.Errorf("full scope size = %d, want %d", len(full), len(defs))
	}
}

func TestProviderTools(t *testing.T) {
	pt := ProviderTools(Definitions())
	if len(pt) != 17 {
		t.Fatalf("provider tools = %d", len(pt))
	}
	if pt[0].Name != "get_event_catalog" || pt[0].InputSchema == nil {
		t.Errorf("first tool = %+v", pt[0])
	}
}

func TestSavedQueryTools_RoundTrip(t *testing.T) {
	h := newTestHandlers(t, &fakeCluster{})
	ctx := context.Background()

	_, err := h.Execute(ctx, "save_query", map[string]interface{}{
		"name":        "slow sql",
		"query":       "traces | where customDimensions.eventId == 'RT0005'",
		"category":    "performance",
		"description": "Long running SQL statements",
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := h.Execute(ctx, "get_saved_queries", map[string]interface{}{"category": "performance"})
	if err != nil {
		t.Fatal(err)
	}
	if got := asMap(t, out)["total"]; got != 1 {
		t.Errorf("total = %v, want 1", got)
	}

	out, err = h.Execute(ctx, "search_queries", map[string]interface{}{"term": "rt0005"})
	if err != nil {
		t.Fatal(err)
	}
	if got := asMap(t, out)["total"]; got != 1 {
		t.Errorf("search total = %v, want 1", got)
	}

	out, err = h.Execute(ctx, "get_categories", nil)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(out)
	if !strings.Contains(string(data), "performance") {
		t.Errorf("categories = %s", data)
	}
}

func TestSearchQueries_RequiresTerm(t *testing.T) {
	h := newTestHandlers(t, &fakeCluster{})
	if _, err := h.Execute(context.Background(), "search_queries", map[string]interface{}{}); err == nil {
		t.Fatal("expected error for missing term")
	}
}

func TestExternalQueries_NoReferences(t *testing.T) {
	h := newTestHandlers(t, &fakeCluster{})
	out, err := h.Execute(context.Background(), "get_external_queries", nil)
	if err != nil {
		t.Fatal(err)
	}
	m := asMap(t, out)
	if m["message"] == nil {
		t.Error("expected a no-references message")
	}
}
