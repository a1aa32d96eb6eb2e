// Package store is the context manager: per-agent state files, append-only
// run logs, and the pure state-update step between runs. Layout on disk:
//
//	<workspace>/agents/<name>/instruction.md
//	<workspace>/agents/<name>/state.json
//	<workspace>/agents/<name>/runs/<timestamp>-run<0000>.{json,md}
package store

// Agent status values.
const (
	StatusActive = "active"
	StatusPaused = "paused"
)

// Action types the dispatcher knows how to execute.
const (
	ActionTeamsWebhook    = "teams-webhook"
	ActionEmailSMTP       = "email-smtp"
	ActionEmailGraph      = "email-graph"
	ActionGenericWebhook  = "generic-webhook"
	ActionPipelineTrigger = "pipeline-trigger"
)

// AgentState is the persistent memory of one agent, rewritten atomically
// after every successful run. All timestamps are RFC3339 UTC strings;
// lastRun is empty until the first run completes.
type AgentState struct {
	AgentName      string            `json:"agentName"`
	Created        string            `json:"created"`
	LastRun        string            `json:"lastRun"`
	RunCount       int               `json:"runCount"`
	Status         string            `json:"status"`
	Summary        string            `json:"summary"`
	ActiveIssues   []AgentIssue      `json:"activeIssues"`
	ResolvedIssues []AgentIssue      `json:"resolvedIssues"`
	RecentRuns     []AgentRunSummary `json:"recentRuns"`
}

// AgentIssue is one tracked anomaly. The LLM owns the descriptive fields;
// the context manager owns firstSeen and actionsTaken. Identity is id OR
// fingerprint: the fingerprint is deterministic (event + attribute values),
// the id is whatever the LLM minted, and a match on either links an output
// issue to its prior incarnation.
type AgentIssue struct {
	ID                    string        `json:"id"`
	Fingerprint           string        `json:"fingerprint,omitempty"`
	Title                 string        `json:"title,omitempty"`
	Description           string        `json:"description,omitempty"`
	Severity              string        `json:"severity,omitempty"`
	EventID               string        `json:"eventId,omitempty"`
	TenantID              string        `json:"tenantId,omitempty"`
	FirstSeen             string        `json:"firstSeen"`
	LastSeen              string        `json:"lastSeen"`
	ConsecutiveDetections int           `json:"consecutiveDetections,omitempty"`
	Trend                 string        `json:"trend,omitempty"` // increasing | stable | decreasing
	Counts                []float64     `json:"counts,omitempty"`
	ActionsTaken          []AgentAction `json:"actionsTaken,omitempty"`
}

// Matches reports whether other refers to the same anomaly, by id or by
// fingerprint.
func (i AgentIssue) Matches(other AgentIssue) bool {
	if i.ID != "" && i.ID == other.ID {
		return true
	}
	if i.Fingerprint != "" && i.Fingerprint == other.Fingerprint {
		return true
	}
	return false
}

// MatchesKey reports whether key names this issue by id or fingerprint.
func (i AgentIssue) MatchesKey(key string) bool {
	return key != "" && (key == i.ID || key == i.Fingerprint)
}

// AgentAction records one dispatch attempt. Run is stamped by UpdateState
// (the dispatcher leaves it 0); consumers must read the post-update state,
// not the dispatcher's return value.
type AgentAction struct {
	Run       int            `json:"run"`
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Status    string         `json:"status"` // sent | failed
	Details   *ActionDetails `json:"details,omitempty"`
}

// ActionDetails carries the human-facing minimum of a dispatch.
type ActionDetails struct {
	Title    string `json:"title,omitempty"`
	Severity string `json:"severity,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AgentRunSummary is one element of the sliding context window.
type AgentRunSummary struct {
	RunID      int      `json:"runId"`
	Timestamp  string   `json:"timestamp"`
	DurationMs int64    `json:"durationMs"`
	ToolCalls  int      `json:"toolCalls"`
	Findings   string   `json:"findings"`
	Actions    []string `json:"actions"` // action types, dispatch order
}

// RequestedAction is what the LLM asks the dispatcher to do. Type selects
// the effector; the rest parameterizes it.
type RequestedAction struct {
	Type            string                 `json:"type"`
	Title           string                 `json:"title,omitempty"`
	Message         string                 `json:"message,omitempty"`
	Severity        string                 `json:"severity,omitempty"` // high | medium | low
	Recipients      []string               `json:"recipients,omitempty"`
	WebhookPayload  map[string]interface{} `json:"webhookPayload,omitempty"`
	InvestigationID string                 `json:"investigationId,omitempty"`
}

// StateChanges is the LLM's own account of what it altered.
type StateChanges struct {
	SummaryUpdated bool     `json:"summaryUpdated"`
	NewIssues      []string `json:"newIssues,omitempty"`
	ResolvedIssues []string `json:"resolvedIssues,omitempty"`
	UpdatedIssues  []string `json:"updatedIssues,omitempty"`
}

// AgentOutput is the parsed final message of a run: the structured JSON the
// system prompt demands. Summary, findings, and assessment are mandatory;
// the parser defaults everything else.
type AgentOutput struct {
	Summary        string            `json:"summary"`
	Findings       string            `json:"findings"`
	Assessment     string            `json:"assessment"`
	ActiveIssues   []AgentIssue      `json:"activeIssues"`
	ResolvedIssues []string          `json:"resolvedIssues"`
	Actions        []RequestedAction `json:"actions"`
	StateChanges   StateChanges      `json:"stateChanges"`
}

// AgentRunLog is the audit-trail record of one run, written to
// runs/<ts>-run<0000>.json alongside a Markdown report.
type AgentRunLog struct {
	RunID        int             `json:"runId"`
	AgentName    string          `json:"agentName"`
	Timestamp    string          `json:"timestamp"`
	DurationMs   int64           `json:"durationMs"`
	Instruction  string          `json:"instruction"`
	StateAtStart RunStateAtStart `json:"stateAtStart"`
	LLM          RunLLMStats     `json:"llm"`
	ToolCalls    []RunToolCall   `json:"toolCalls"`
	Assessment   string          `json:"assessment"`
	Findings     string          `json:"findings"`
	Actions      []AgentAction   `json:"actions"`
	StateChanges StateChanges    `json:"stateChanges"`
}

// RunStateAtStart snapshots the state the run began from.
type RunStateAtStart struct {
	Summary          string `json:"summary"`
	ActiveIssueCount int    `json:"activeIssueCount"`
	RunCount         int    `json:"runCount"`
}

// RunLLMStats aggregates provider usage over the run.
type RunLLMStats struct {
	Model            string `json:"model"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
	TotalTokens      int    `json:"totalTokens"`
	ToolCallCount    int    `json:"toolCallCount"`
}

// RunToolCall is one tool invocation in dispatch order; Sequence is 1-based.
type RunToolCall struct {
	Sequence      int    `json:"sequence"`
	Tool          string `json:"tool"`
	Args          string `json:"args"`
	ResultSummary string `json:"resultSummary"`
	DurationMs    int64  `json:"durationMs"`
}

// AgentListEntry is one row of ListAgents.
type AgentListEntry struct {
	Name             string `json:"name"`
	Status           string `json:"status"`
	RunCount         int    `json:"runCount"`
	LastRun          string `json:"lastRun"`
	ActiveIssueCount int    `json:"activeIssueCount"`
}
