package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir())
}

func TestValidateName(t *testing.T) {
	valid := []string{"perf", "a", "perf-watch-2", "0x"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}
	invalid := []string{"", "Perf", "-perf", "perf-", "perf watch", "perf_watch"}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
		}
	}
}

func TestCreateAgent_InitialLayout(t *testing.T) {
	m := newTestManager(t)
	if err := m.CreateAgent("perf", "Watch performance events."); err != nil {
		t.Fatal(err)
	}

	inst, err := m.LoadInstruction("perf")
	if err != nil {
		t.Fatal(err)
	}
	if inst != "Watch performance events." {
		t.Errorf("instruction = %q", inst)
	}

	state, err := m.LoadState("perf")
	if err != nil {
		t.Fatal(err)
	}
	if state.RunCount != 0 || state.Status != StatusActive || state.Summary != "" || state.LastRun != "" {
		t.Errorf("initial state = %+v", state)
	}
	if state.ActiveIssues == nil || state.RecentRuns == nil {
		t.Error("slices must be initialized, not null, so state.json stays well-formed")
	}

	// Second create must refuse.
	if err := m.CreateAgent("perf", "other"); err == nil {
		t.Error("expected already-exists error")
	}
}

func TestLoadState_MissingFileGivesFreshState(t *testing.T) {
	m := newTestManager(t)
	// Directory created outside the core: instruction only.
	dir := filepath.Join(m.AgentsDir(), "manual")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "instruction.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	state, err := m.LoadState("manual")
	if err != nil {
		t.Fatal(err)
	}
	if state.AgentName != "manual" || state.RunCount != 0 || state.Status != StatusActive {
		t.Errorf("fresh state = %+v", state)
	}
}

func TestSaveState_AtomicReplaceLeavesNoTempFiles(t *testing.T) {
	m := newTestManager(t)
	if err := m.CreateAgent("perf", "x"); err != nil {
		t.Fatal(err)
	}

	state, _ := m.LoadState("perf")
	state.Summary = "updated"
	if err := m.SaveState("perf", state); err != nil {
		t.Fatal(err)
	}

	reread, _ := m.LoadState("perf")
	if reread.Summary != "updated" {
		t.Errorf("Summary = %q", reread.Summary)
	}

	entries, _ := os.ReadDir(filepath.Join(m.AgentsDir(), "perf"))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSetAgentStatus_PreservesOtherFields(t *testing.T) {
	m := newTestManager(t)
	if err := m.CreateAgent("perf", "x"); err != nil {
		t.Fatal(err)
	}
	state, _ := m.LoadState("perf")
	state.Summary = "keep me"
	state.RunCount = 4
	if err := m.SaveState("perf", state); err != nil {
		t.Fatal(err)
	}

	if err := m.SetAgentStatus("perf", StatusPaused); err != nil {
		t.Fatal(err)
	}
	got, _ := m.LoadState("perf")
	if got.Status != StatusPaused {
		t.Errorf("Status = %q", got.Status)
	}
	if got.Summary != "keep me" || got.RunCount != 4 {
		t.Errorf("other fields mutated: %+v", got)
	}

	if err := m.SetAgentStatus("perf", "sleeping"); err == nil {
		t.Error("invalid status must be rejected")
	}
	if err := m.SetAgentStatus("ghost", StatusPaused); err == nil {
		t.Error("missing agent must be rejected")
	}
}

func TestListAgents(t *testing.T) {
	m := newTestManager(t)
	for _, name := range []string{"alpha", "beta"} {
		if err := m.CreateAgent(name, "x"); err != nil {
			t.Fatal(err)
		}
	}
	// A bare directory without instruction.md is not an agent.
	if err := os.MkdirAll(filepath.Join(m.AgentsDir(), "junk"), 0o755); err != nil {
		t.Fatal(err)
	}

	list, err := m.ListAgents()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("agents = %d, want 2", len(list))
	}
	if list[0].Name != "alpha" || list[1].Name != "beta" {
		t.Errorf("order = %s, %s", list[0].Name, list[1].Name)
	}
}

func TestRunLogFilename(t *testing.T) {
	ts := time.Date(2026, 8, 25, 14, 3, 2, 123000000, time.UTC)
	got := RunLogFilename(ts, 7)
	want := "2026-08-25T14-03-02Z-run0007"
	if got != want {
		t.Errorf("RunLogFilename = %q, want %q", got, want)
	}
}

func TestRunLogFilenames_SortInRunOrder(t *testing.T) {
	base := time.Date(2026, 8, 25, 23, 59, 59, 0, time.UTC)
	a := RunLogFilename(base, 9)
	b := RunLogFilename(base.Add(time.Second), 10)
	c := RunLogFilename(base.Add(2*time.Second), 11)
	if !(a < b && b < c) {
		t.Errorf("filenames not in run order: %q %q %q", a, b, c)
	}
}

func TestSaveRunLogAndHistory(t *testing.T) {
	m := newTestManager(t)
	if err := m.CreateAgent("perf", "x"); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		log := AgentRunLog{
			RunID:     i,
			AgentName: "perf",
			Timestamp: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			Findings:  "f",
		}
		if err := m.SaveRunLog("perf", log); err != nil {
			t.Fatal(err)
		}
	}

	// Each run writes a .json and a .md.
	entries, _ := os.ReadDir(filepath.Join(m.AgentsDir(), "perf", "runs"))
	jsonCount, mdCount := 0, 0
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".json":
			jsonCount++
		case ".md":
			mdCount++
		}
	}
	if jsonCount != 3 || mdCount != 3 {
		t.Errorf("runs/ has %d json + %d md, want 3 + 3", jsonCount, mdCount)
	}

	history, err := m.RunHistory("perf", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries", len(history))
	}
	if history[0].RunID != 3 || history[1].RunID != 2 {
		t.Errorf("history order = %d, %d (want newest first)", history[0].RunID, history[1].RunID)
	}

	all, _ := m.RunHistory("perf", 0)
	if len(all) != 3 {
		t.Errorf("unlimited history = %d", len(all))
	}
}

func TestPruneRuns(t *testing.T) {
	m := newTestManager(t)
	if err := m.CreateAgent("perf", "x"); err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		log := AgentRunLog{RunID: i, AgentName: "perf",
			Timestamp: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339)}
		if err := m.SaveRunLog("perf", log); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := m.PruneRuns("perf", 2)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	history, _ := m.RunHistory("perf", 0)
	if len(history) != 2 || history[0].RunID != 5 || history[1].RunID != 4 {
		t.Errorf("remaining history = %+v", history)
	}

	// state.json untouched.
	if _, err := m.LoadState("perf"); err != nil {
		t.Errorf("state unreadable after prune: %v", err)
	}
}
