package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bctelemetry/bctb/internal/queries"
)

func TestEnsureStarterQueries_SeedsOnce(t *testing.T) {
	dir := t.TempDir()

	created, err := EnsureStarterQueries(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) == 0 {
		t.Fatal("nothing seeded")
	}

	// Second run must be a no-op.
	again, err := EnsureStarterQueries(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("reseeded %v", again)
	}
}

func TestEnsureStarterQueries_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "performance", "long-running-sql.kql")
	if err := os.MkdirAll(filepath.Dir(custom), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(custom, []byte("traces | take 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := EnsureStarterQueries(dir); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(custom)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "traces | take 1\n" {
		t.Errorf("user file overwritten: %q", data)
	}
}

func TestStarterQueries_LoadableByStore(t *testing.T) {
	dir := t.TempDir()
	if _, err := EnsureStarterQueries(dir); err != nil {
		t.Fatal(err)
	}

	store := queries.NewStore(dir)
	all, err := store.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) < 4 {
		t.Fatalf("listed %d queries", len(all))
	}
	for _, q := range all {
		if q.Description == "" {
			t.Errorf("%s/%s: no description parsed", q.Category, q.Name)
		}
		if q.KQL == "" || q.Category == "general" {
			t.Errorf("%s/%s: category=%q kql=%q", q.Category, q.Name, q.Category, q.KQL)
		}
	}

	cats, err := store.Categories()
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 4 {
		t.Errorf("categories = %+v", cats)
	}
}
