package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bctelemetry/bctb/internal/actions"
	"github.com/bctelemetry/bctb/internal/config"
	"github.com/bctelemetry/bctb/internal/providers"
	"github.com/bctelemetry/bctb/internal/store"
	"github.com/bctelemetry/bctb/internal/tools"
)

const (
	defaultMaxToolCalls = 20
	defaultMaxTokens    = 4096
	defaultToolScope    = "read-only"

	resultSummaryChars = 500
)

// Runner executes scheduled agent invocations. One Run is one full cycle:
// load instruction and state, ReAct loop, parse output, dispatch actions,
// persist state and log. Per-agent execution is sequential; the caller
// (CLI run / run-all) never runs the same name concurrently.
type Runner struct {
	manager    *store.Manager
	provider   providers.Provider
	handlers   *tools.Handlers
	dispatcher *actions.Dispatcher
	defaults   config.AgentDefaults

	now func() time.Time
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Manager    *store.Manager
	Provider   providers.Provider
	Handlers   *tools.Handlers
	Dispatcher *actions.Dispatcher
	Defaults   config.AgentDefaults
	Clock      func() time.Time // nil means time.Now
}

func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		manager:    cfg.Manager,
		provider:   cfg.Provider,
		handlers:   cfg.Handlers,
		dispatcher: cfg.Dispatcher,
		defaults:   cfg.Defaults,
		now:        cfg.Clock,
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

func (r *Runner) maxToolCalls() int {
	if r.defaults.MaxToolCalls > 0 {
		return r.defaults.MaxToolCalls
	}
	return defaultMaxToolCalls
}

func (r *Runner) maxTokens() int {
	if r.defaults.MaxTokens > 0 {
		return r.defaults.MaxTokens
	}
	return defaultMaxTokens
}

func (r *Runner) toolScope() string {
	if r.defaults.ToolScope != "" {
		return r.defaults.ToolScope
	}
	return defaultToolScope
}

// Run executes one invocation of the named agent and returns its audit log.
// Nothing is persisted unless the run reaches a parseable final output: a
// paused agent, a provider error, unparseable output, and an exhausted tool
// budget all leave state.json and runs/ untouched.
func (r *Runner) Run(ctx context.Context, name string) (*store.AgentRunLog, error) {
	started := r.now()

	instruction, err := r.manager.LoadInstruction(name)
	if err != nil {
		return nil, err
	}
	state, err := r.manager.LoadState(name)
	if err != nil {
		return nil, err
	}
	if state.Status == store.StatusPaused {
		return nil, fmt.Errorf("Agent '%s' is paused", name)
	}

	defs := tools.FilterByScope(tools.Definitions(), r.toolScope())
	provTools := tools.ProviderTools(defs)

	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildAgentPrompt(instruction, state, started)},
	}

	slog.Info("agent run started",
		"agent", name, "run", state.RunCount+1,
		"model", r.provider.ModelName(), "tools", len(provTools), "scope", r.toolScope())

	llm := store.RunLLMStats{Model: r.provider.ModelName()}
	var (
		toolLog   []store.RunToolCall
		toolNames []string
	)

	for len(toolNames) < r.maxToolCalls() {
		resp, err := r.provider.Chat(ctx, providers.ChatRequest{
			Messages:  messages,
			Tools:     provTools,
			MaxTokens: r.maxTokens(),
		})
		if err != nil {
			return nil, fmt.Errorf("LLM call failed: %w", err)
		}
		llm.PromptTokens += resp.Usage.PromptTokens
		llm.CompletionTokens += resp.Usage.CompletionTokens

		if len(resp.ToolCalls) == 0 {
			return r.finish(ctx, name, instruction, state, resp.Content, started, llm, toolLog, toolNames)
		}

		// Every tool call of this assistant turn is answered before the
		// next turn, even when that overshoots the budget; the budget is
		// checked per turn, not per call.
		messages = append(messages, resp.AssistantMessage)
		for _, tc := range resp.ToolCalls {
			content := r.executeToolCall(ctx, tc, &toolLog)
			messages = append(messages, providers.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: tc.ID,
			})
			toolNames = append(toolNames, tc.Name)
		}
	}

	return nil, fmt.Errorf("Agent '%s' exceeded max tool calls (%d)", name, r.maxToolCalls())
}

// executeToolCall runs one call and returns the tool-role message content.
// Tool failures are an answer to the model, not an error of the run.
func (r *Runner) executeToolCall(ctx context.Context, tc providers.ToolCall, log *[]store.RunToolCall) string {
	args := map[string]interface{}{}
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			// Substitute {} and let the handler's required-field check
			// produce the message the model sees.
			slog.Debug("tool args undecodable, passing empty object", "tool", tc.Name, "error", err)
			args = map[string]interface{}{}
		}
	}

	start := time.Now()
	result, err := r.handlers.Execute(ctx, tc.Name, args)
	elapsed := time.Since(start).Milliseconds()

	var content string
	if err != nil {
		content = errorEnvelope(err)
		slog.Warn("tool call failed", "tool", tc.Name, "duration_ms", elapsed, "error", err)
	} else if data, merr := json.Marshal(result); merr != nil {
		content = errorEnvelope(merr)
		slog.Warn("tool result unserializable", "tool", tc.Name, "error", merr)
	} else {
		content = string(data)
		slog.Debug("tool call completed", "tool", tc.Name, "duration_ms", elapsed, "result_len", len(content))
	}

	*log = append(*log, store.RunToolCall{
		Sequence:      len(*log) + 1,
		Tool:          tc.Name,
		Args:          tc.Arguments,
		ResultSummary: truncate(content, resultSummaryChars),
		DurationMs:    elapsed,
	})
	return content
}

func (r *Runner) finish(ctx context.Context, name, instruction string, prev store.AgentState, content string, started time.Time, llm store.RunLLMStats, toolLog []store.RunToolCall, toolNames []string) (*store.AgentRunLog, error) {
	output, err := ParseAgentOutput(content)
	if err != nil {
		return nil, err
	}

	executed := r.dispatcher.Dispatch(ctx, output.Actions, name)

	finished := r.now()
	durationMs := finished.Sub(started).Milliseconds()

	newState := store.UpdateState(prev, output, executed, durationMs, toolNames, finished, store.StateOptions{
		ContextWindowRuns:    r.defaults.ContextWindowRuns,
		ResolvedIssueTTLDays: r.defaults.ResolvedIssueTTLDays,
	})

	// The log carries the same run stamp UpdateState put on the state's
	// copies of these actions.
	logActions := make([]store.AgentAction, len(executed))
	for i, a := range executed {
		a.Run = newState.RunCount
		logActions[i] = a
	}

	llm.TotalTokens = llm.PromptTokens + llm.CompletionTokens
	llm.ToolCallCount = len(toolNames)

	if toolLog == nil {
		toolLog = []store.RunToolCall{}
	}
	runLog := store.AgentRunLog{
		RunID:       newState.RunCount,
		AgentName:   name,
		Timestamp:   finished.UTC().Format(time.RFC3339),
		DurationMs:  durationMs,
		Instruction: instruction,
		StateAtStart: store.RunStateAtStart{
			Summary:          prev.Summary,
			ActiveIssueCount: len(prev.ActiveIssues),
			RunCount:         prev.RunCount,
		},
		LLM:          llm,
		ToolCalls:    toolLog,
		Assessment:   output.Assessment,
		Findings:     output.Findings,
		Actions:      logActions,
		StateChanges: output.StateChanges,
	}

	if err := r.manager.SaveState(name, newState); err != nil {
		return nil, err
	}
	if err := r.manager.SaveRunLog(name, runLog); err != nil {
		return nil, err
	}

	slog.Info("agent run completed",
		"agent", name, "run", runLog.RunID,
		"duration_ms", durationMs, "tool_calls", len(toolNames),
		"actions", len(logActions), "active_issues", len(newState.ActiveIssues))
	return &runLog, nil
}

func errorEnvelope(err error) string {
	data, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return `{"error":"tool failed"}`
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
