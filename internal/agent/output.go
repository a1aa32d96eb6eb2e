package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bctelemetry/bctb/internal/store"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	bareJSONRe   = regexp.MustCompile(`(?s)\{.*\}`)
)

// rawOutput mirrors store.AgentOutput with a pointer for stateChanges so an
// absent block is distinguishable from an explicit zero one.
type rawOutput struct {
	Summary        string                  `json:"summary"`
	Findings       string                  `json:"findings"`
	Assessment     string                  `json:"assessment"`
	ActiveIssues   []store.AgentIssue      `json:"activeIssues"`
	ResolvedIssues []string                `json:"resolvedIssues"`
	Actions        []store.RequestedAction `json:"actions"`
	StateChanges   *store.StateChanges     `json:"stateChanges"`
}

// ParseAgentOutput turns the model's final message into a structured
// AgentOutput. The JSON may arrive inside a code fence or with prose around
// it; the first fenced block wins, else the outermost brace span. summary,
// findings, and assessment are mandatory; the optional collections default
// to empty, and a missing stateChanges defaults to summaryUpdated=true
// (the model overwrote summary by contract, even though it said nothing).
func ParseAgentOutput(content string) (store.AgentOutput, error) {
	if strings.TrimSpace(content) == "" {
		return store.AgentOutput{}, fmt.Errorf("agent returned empty output")
	}

	jsonText := extractJSON(content)
	if jsonText == "" {
		return store.AgentOutput{}, fmt.Errorf("no JSON object found in agent output")
	}

	var raw rawOutput
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return store.AgentOutput{}, fmt.Errorf("Failed to parse agent JSON output: %w", err)
	}

	for _, f := range []struct{ name, value string }{
		{"summary", raw.Summary},
		{"findings", raw.Findings},
		{"assessment", raw.Assessment},
	} {
		if f.value == "" {
			return store.AgentOutput{}, fmt.Errorf("Missing required field: %s", f.name)
		}
	}

	out := store.AgentOutput{
		Summary:        raw.Summary,
		Findings:       raw.Findings,
		Assessment:     raw.Assessment,
		ActiveIssues:   raw.ActiveIssues,
		ResolvedIssues: raw.ResolvedIssues,
		Actions:        raw.Actions,
	}
	if out.ActiveIssues == nil {
		out.ActiveIssues = []store.AgentIssue{}
	}
	if out.ResolvedIssues == nil {
		out.ResolvedIssues = []string{}
	}
	if out.Actions == nil {
		out.Actions = []store.RequestedAction{}
	}
	if raw.StateChanges != nil {
		out.StateChanges = *raw.StateChanges
	} else {
		out.StateChanges = store.StateChanges{SummaryUpdated: true}
	}
	return out, nil
}

// extractJSON pulls the JSON payload out of the surrounding message text.
func extractJSON(content string) string {
	if m := fencedJSONRe.FindStringSubmatch(content); m != nil {
		if candidate := strings.TrimSpace(m[1]); candidate != "" {
			return candidate
		}
	}
	return bareJSONRe.FindString(content)
}
