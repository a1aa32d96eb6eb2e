package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const (
	instructionFile = "instruction.md"
	stateFile       = "state.json"
	runsDir         = "runs"
)

var agentNameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidateName checks an agent name: lowercase alphanumerics and hyphens,
// no leading or trailing hyphen.
func ValidateName(name string) error {
	if !agentNameRe.MatchString(name) {
		return fmt.Errorf("invalid agent name %q: must match [a-z0-9][a-z0-9-]*[a-z0-9]", name)
	}
	return nil
}

// Manager owns the agents directory under one workspace. Methods that read
// never mutate; state.json is rewritten only via SaveState's atomic path.
type Manager struct {
	workspace string

	now func() time.Time // test hook
}

func NewManager(workspace string) *Manager {
	return &Manager{workspace: workspace, now: time.Now}
}

// AgentsDir is <workspace>/agents.
func (m *Manager) AgentsDir() string {
	return filepath.Join(m.workspace, "agents")
}

func (m *Manager) agentDir(name string) string {
	return filepath.Join(m.AgentsDir(), name)
}

// InitialState is the state a just-created agent starts from.
func InitialState(name string, now time.Time) AgentState {
	return AgentState{
		AgentName:      name,
		Created:        now.UTC().Format(time.RFC3339),
		LastRun:        "",
		RunCount:       0,
		Status:         StatusActive,
		Summary:        "",
		ActiveIssues:   []AgentIssue{},
		ResolvedIssues: []AgentIssue{},
		RecentRuns:     []AgentRunSummary{},
	}
}

// CreateAgent writes the directory tree, instruction, and initial state.
// Fails when the agent already has an instruction file.
func (m *Manager) CreateAgent(name, instruction string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	dir := m.agentDir(name)
	instPath := filepath.Join(dir, instructionFile)
	if _, err := os.Stat(instPath); err == nil {
		return fmt.Errorf("agent %q already exists at %s", name, dir)
	}

	if err := os.MkdirAll(filepath.Join(dir, runsDir), 0o755); err != nil {
		return fmt.Errorf("create agent directory: %w", err)
	}
	if err := os.WriteFile(instPath, []byte(instruction), 0o644); err != nil {
		return fmt.Errorf("write instruction: %w", err)
	}

	state := InitialState(name, m.now())
	if err := m.SaveState(name, state); err != nil {
		return err
	}
	slog.Info("agent created", "agent", name, "dir", dir)
	return nil
}

// LoadInstruction reads the agent's instruction verbatim.
func (m *Manager) LoadInstruction(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(m.agentDir(name), instructionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("agent %q not found (no %s)", name, instructionFile)
		}
		return "", fmt.Errorf("read instruction: %w", err)
	}
	return string(data), nil
}

// LoadState returns the agent's persisted state. A missing state.json yields
// a fresh initial state so directories created by hand still run.
func (m *Manager) LoadState(name string) (AgentState, error) {
	data, err := os.ReadFile(filepath.Join(m.agentDir(name), stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return InitialState(name, m.now()), nil
		}
		return AgentState{}, fmt.Errorf("read state: %w", err)
	}

	var state AgentState
	if err := json.Unmarshal(data, &state); err != nil {
		return AgentState{}, fmt.Errorf("parse state for agent %q: %w", name, err)
	}
	return state, nil
}

// SaveState rewrites state.json atomically: temp file in the same directory,
// sync, close, rename. A crash mid-write leaves the previous state intact.
func (m *Manager) SaveState(name string, state AgentState) error {
	dir := m.agentDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create agent directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "state-*.tmp")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, stateFile)); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	cleanup = false
	return nil
}

// SetAgentStatus flips status and preserves every other field verbatim.
func (m *Manager) SetAgentStatus(name, status string) error {
	if status != StatusActive && status != StatusPaused {
		return fmt.Errorf("invalid status %q (want %s or %s)", status, StatusActive, StatusPaused)
	}
	if _, err := m.LoadInstruction(name); err != nil {
		return err
	}
	state, err := m.LoadState(name)
	if err != nil {
		return err
	}
	state.Status = status
	return m.SaveState(name, state)
}

// ListAgents enumerates immediate subdirectories of agents/ that contain an
// instruction file. os.ReadDir sorts by name, so the listing (and run-all,
// which iterates it) is lexicographic.
func (m *Manager) ListAgents() ([]AgentListEntry, error) {
	entries, err := os.ReadDir(m.AgentsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list agents: %w", err)
	}

	var out []AgentListEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if _, err := os.Stat(filepath.Join(m.agentDir(name), instructionFile)); err != nil {
			continue
		}
		state, err := m.LoadState(name)
		if err != nil {
			slog.Warn("skipping agent with unreadable state", "agent", name, "error", err)
			continue
		}
		out = append(out, AgentListEntry{
			Name:             name,
			Status:           state.Status,
			RunCount:         state.RunCount,
			LastRun:          state.LastRun,
			ActiveIssueCount: len(state.ActiveIssues),
		})
	}
	return out, nil
}
