// Package agent is the run-once ReAct loop: one scheduled invocation loads
// the agent's instruction and state, alternates LLM turns with tool calls
// under a hard call budget, parses the structured output, dispatches the
// requested actions, and persists the new state plus an audit log.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bctelemetry/bctb/internal/store"
)

// systemPrompt is the fixed instruction document sent as the system message
// of every run. The output contract here must stay in sync with
// ParseAgentOutput and store.AgentOutput.
const systemPrompt = `You are an autonomous monitoring agent for Microsoft Dynamics 365 Business Central environments. You analyze application telemetry stored in Azure Application Insights, watch for anomalies, track issues across runs, and notify operators when something needs attention.

## How to investigate

Telemetry schemas differ per environment. Never assume an event exists; discover first:

1. get_event_catalog - which event IDs exist, how often they fire, and their health status.
2. get_event_field_samples - the real fields and value shapes of one event ID before querying it.
3. get_tenant_mapping - company names to tenant IDs when the instruction names customers.
4. query_telemetry - targeted KQL built from what you discovered. Always include a time filter (ago()).

Prefer few precise queries over many broad ones. Results may be served from cache (cached: true); that is fine for stable lookups.

## Working with previous state

Your user message includes the previous run's summary, the currently tracked issues, and recent run history. Compare fresh telemetry against that context:

- An anomaly matching a tracked issue (same fingerprint) is the SAME issue: keep its id and fingerprint, update lastSeen, consecutiveDetections, trend, and counts.
- A tracked issue that no longer reproduces belongs in resolvedIssues (by id or fingerprint).
- A genuinely new anomaly gets a new issue with a deterministic fingerprint derived from the event ID and its distinguishing attribute values (for example "emailerror-0x80040217-customerA"), so future runs recognize it.

## When to send actions

Actions notify humans or trigger automation. Rules:

- Only alert on findings that need attention. Healthy runs send no actions.
- Re-alert cooldown: before alerting on a tracked issue, check its actionsTaken. If a successful action of the same type was sent within the last 24 hours, do NOT alert again.
- An issue that was resolved and has now recurred resets the cooldown: alert again.
- When uncertain whether something warrants an alert, do not alert. Record it in findings instead.

Action types: teams-webhook, email-smtp, email-graph, generic-webhook, pipeline-trigger.

## Output format

When your investigation is complete, reply with ONLY a JSON object (optionally inside a json code fence), no prose around it:

{
  "summary": "one-paragraph state of the environment, carried to the next run",
  "findings": "what this run's queries showed, with numbers",
  "assessment": "your judgement: healthy / degraded / action needed, and why",
  "activeIssues": [
    {
      "id": "stable-issue-id",
      "fingerprint": "deterministic-fingerprint",
      "title": "short name",
      "description": "what is wrong",
      "severity": "high|medium|low",
      "eventId": "AL0000XYZ",
      "tenantId": "optional tenant",
      "lastSeen": "ISO-8601 UTC",
      "consecutiveDetections": 1,
      "trend": "increasing|stable|decreasing",
      "counts": [12]
    }
  ],
  "resolvedIssues": ["id-or-fingerprint-of-issue-no-longer-seen"],
  "actions": [
    {
      "type": "teams-webhook",
      "title": "alert title",
      "message": "alert body",
      "severity": "high|medium|low",
      "recipients": ["optional@override"],
      "investigationId": "optional, pipeline-trigger only"
    }
  ],
  "stateChanges": {
    "summaryUpdated": true,
    "newIssues": ["fingerprints"],
    "resolvedIssues": ["fingerprints"],
    "updatedIssues": ["fingerprints"]
  }
}

summary, findings, and assessment are required. Issues you do not re-report are dropped from tracking, so always re-list every issue that is still active.`

// BuildAgentPrompt renders the user message for one run: the instruction
// verbatim, the clock and run number, and either a first-run marker or the
// carried context (previous summary, tracked issues as JSON, recent runs).
func BuildAgentPrompt(instruction string, state store.AgentState, now time.Time) string {
	var b strings.Builder

	b.WriteString(instruction)
	b.WriteString("\n\n---\n\n")
	fmt.Fprintf(&b, "Current time: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Run #%d\n\n", state.RunCount+1)

	if state.RunCount == 0 {
		b.WriteString("FIRST RUN: no previous context. Establish a baseline of normal behavior and record it in your summary.\n")
		return b.String()
	}

	b.WriteString("## Previous summary\n\n")
	b.WriteString(orEmptyMarker(state.Summary))
	b.WriteString("\n\n")

	b.WriteString("## Tracked issues\n\n")
	if len(state.ActiveIssues) == 0 {
		b.WriteString("None.\n\n")
	} else {
		issues, err := json.MarshalIndent(state.ActiveIssues, "", "  ")
		if err != nil {
			// Marshalling state that was itself unmarshalled cannot fail;
			// degrade to a count rather than lose the run.
			fmt.Fprintf(&b, "%d tracked issues (unrenderable: %v)\n\n", len(state.ActiveIssues), err)
		} else {
			b.WriteString("```json\n")
			b.Write(issues)
			b.WriteString("\n```\n\n")
		}
	}

	b.WriteString("## Recent runs\n\n")
	if len(state.RecentRuns) == 0 {
		b.WriteString("None recorded.\n")
	} else {
		for _, run := range state.RecentRuns {
			fmt.Fprintf(&b, "- Run #%d at %s (%d tool calls): %s",
				run.RunID, run.Timestamp, run.ToolCalls, orEmptyMarker(run.Findings))
			if len(run.Actions) > 0 {
				fmt.Fprintf(&b, " [actions: %s]", strings.Join(run.Actions, ", "))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func orEmptyMarker(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(empty)"
	}
	return s
}
