package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RunLogFilename builds the stem shared by the .json and .md pair:
// the UTC second-precision timestamp with ':' replaced by '-', then
// "-run" and the zero-padded run id. Lexicographic order of these names
// is run order; readers rely on it instead of file metadata.
func RunLogFilename(ts time.Time, runID int) string {
	stamp := strings.ReplaceAll(ts.UTC().Format("2006-01-02T15:04:05Z"), ":", "-")
	return fmt.Sprintf("%s-run%04d", stamp, runID)
}

// SaveRunLog writes the audit .json and the human-readable .md report.
func (m *Manager) SaveRunLog(name string, log AgentRunLog) error {
	dir := filepath.Join(m.agentDir(name), runsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create runs directory: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, log.Timestamp)
	if err != nil {
		ts = m.now()
	}
	stem := RunLogFilename(ts, log.RunID)

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run log: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stem+".json"), data, 0o644); err != nil {
		return fmt.Errorf("write run log: %w", err)
	}

	report := RenderRunReport(log)
	if err := os.WriteFile(filepath.Join(dir, stem+".md"), []byte(report), 0o644); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	return nil
}

// RunHistory returns saved run logs newest-first: .json filenames sorted
// lexicographically, reversed, limited, then parsed. limit<=0 means all.
func (m *Manager) RunHistory(name string, limit int) ([]AgentRunLog, error) {
	dir := filepath.Join(m.agentDir(name), runsDir)
	files, err := runLogFiles(dir)
	if err != nil {
		return nil, err
	}

	// Reverse: filenames sort in run order, so walk from the end.
	var out []AgentRunLog
	for i := len(files) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		data, err := os.ReadFile(filepath.Join(dir, files[i]))
		if err != nil {
			return nil, fmt.Errorf("read run log: %w", err)
		}
		var log AgentRunLog
		if err := json.Unmarshal(data, &log); err != nil {
			slog.Warn("skipping unparseable run log", "agent", name, "file", files[i], "error", err)
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

// PruneRuns deletes the oldest run-log pairs beyond keep, never touching
// state.json. Returns how many pairs were removed.
func (m *Manager) PruneRuns(name string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	dir := filepath.Join(m.agentDir(name), runsDir)
	files, err := runLogFiles(dir)
	if err != nil {
		return 0, err
	}
	if len(files) <= keep {
		return 0, nil
	}

	removed := 0
	for _, f := range files[:len(files)-keep] {
		stem := strings.TrimSuffix(f, ".json")
		if err := os.Remove(filepath.Join(dir, f)); err != nil {
			return removed, fmt.Errorf("prune run log: %w", err)
		}
		// The .md twin may be absent; that is not an error.
		_ = os.Remove(filepath.Join(dir, stem+".md"))
		removed++
	}
	slog.Info("pruned run logs", "agent", name, "removed", removed, "kept", keep)
	return removed, nil
}

func runLogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}
