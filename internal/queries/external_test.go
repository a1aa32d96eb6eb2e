package queries

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bctelemetry/bctb/internal/config"
)

const refMarkdown = "# BC Telemetry Samples\n" +
	"\n" +
	"## Long running queries\n" +
	"\n" +
	"```kql\n" +
	"traces | where customDimensions.eventId == 'RT0005'\n" +
	"```\n" +
	"\n" +
	"## Report rendering\n" +
	"\n" +
	"Some prose in between.\n" +
	"\n" +
	"```kusto\n" +
	"traces | where customDimensions.eventId == 'RT0006'\n" +
	"```\n" +
	"\n" +
	"```python\n" +
	"print('not kql')\n" +
	"```\n"

func TestExtractKQLBlocks(t *testing.T) {
	got := ExtractKQLBlocks(refMarkdown)
	if len(got) != 2 {
		t.Fatalf("blocks = %d, want 2", len(got))
	}
	if got[0].Title != "Long running queries" {
		t.Errorf("title[0] = %q", got[0].Title)
	}
	if !strings.Contains(got[0].KQL, "RT0005") {
		t.Errorf("kql[0] = %q", got[0].KQL)
	}
	if got[1].Title != "Report rendering" {
		t.Errorf("title[1] = %q", got[1].Title)
	}
}

func TestFetcher_FetchAll(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(refMarkdown))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer bad.Close()

	f := NewFetcher([]config.ReferenceConfig{
		{Name: "samples", URL: good.URL},
		{Name: "broken", URL: bad.URL},
	})
	if !f.HasReferences() {
		t.Fatal("HasReferences() = false")
	}

	results := f.FetchAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	// Results keep config order regardless of fetch completion order.
	if results[0].Name != "samples" || results[1].Name != "broken" {
		t.Fatalf("order = %q, %q", results[0].Name, results[1].Name)
	}
	if results[0].Error != "" {
		t.Errorf("samples error = %q", results[0].Error)
	}
	if len(results[0].Queries) != 2 {
		t.Errorf("samples queries = %d, want 2", len(results[0].Queries))
	}
	if results[1].Error == "" || !strings.Contains(results[1].Error, "404") {
		t.Errorf("broken error = %q", results[1].Error)
	}
	if len(results[1].Queries) != 0 {
		t.Errorf("broken queries = %d, want 0", len(results[1].Queries))
	}
}

func TestFetcher_NoReferences(t *testing.T) {
	f := NewFetcher(nil)
	if f.HasReferences() {
		t.Error("HasReferences() = true for empty config")
	}
	if got := f.FetchAll(context.Background()); len(got) != 0 {
		t.Errorf("FetchAll() = %d results, want 0", len(got))
	}
}
