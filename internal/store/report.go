package store

import (
	"fmt"
	"strings"
)

const reportResultLimit = 120

// RenderRunReport formats the Markdown twin of a run log. The section
// order and headings are a stable contract for downstream tooling:
// Agent Run Report, Summary, Instruction, State at Start, Tool Calls,
// Findings, Assessment, Actions Taken, State Changes.
func RenderRunReport(log AgentRunLog) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Agent Run Report\n\n")

	b.WriteString("# Summary\n\n")
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Agent | %s |\n", escapeCell(log.AgentName))
	fmt.Fprintf(&b, "| Run | %d |\n", log.RunID)
	fmt.Fprintf(&b, "| Timestamp | %s |\n", escapeCell(log.Timestamp))
	fmt.Fprintf(&b, "| Duration | %d ms |\n", log.DurationMs)
	fmt.Fprintf(&b, "| Model | %s |\n", escapeCell(log.LLM.Model))
	fmt.Fprintf(&b, "| Tokens | %d prompt + %d completion = %d |\n",
		log.LLM.PromptTokens, log.LLM.CompletionTokens, log.LLM.TotalTokens)
	fmt.Fprintf(&b, "| Tool calls | %d |\n\n", log.LLM.ToolCallCount)

	b.WriteString("# Instruction\n\n")
	b.WriteString("```\n")
	b.WriteString(strings.TrimRight(log.Instruction, "\n"))
	b.WriteString("\n```\n\n")

	b.WriteString("# State at Start\n\n")
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Run count | %d |\n", log.StateAtStart.RunCount)
	fmt.Fprintf(&b, "| Active issues | %d |\n", log.StateAtStart.ActiveIssueCount)
	fmt.Fprintf(&b, "| Summary | %s |\n\n", escapeCell(log.StateAtStart.Summary))

	b.WriteString("# Tool Calls\n\n")
	if len(log.ToolCalls) == 0 {
		b.WriteString("None.\n\n")
	} else {
		b.WriteString("| # | Tool | Duration | Result |\n|---|---|---|---|\n")
		for _, tc := range log.ToolCalls {
			fmt.Fprintf(&b, "| %d | %s | %d ms | %s |\n",
				tc.Sequence, escapeCell(tc.Tool), tc.DurationMs,
				escapeCell(truncate(tc.ResultSummary, reportResultLimit)))
		}
		b.WriteString("\n")
	}

	b.WriteString("# Findings\n\n")
	b.WriteString(orNone(log.Findings))
	b.WriteString("\n\n")

	b.WriteString("# Assessment\n\n")
	b.WriteString(orNone(log.Assessment))
	b.WriteString("\n\n")

	b.WriteString("# Actions Taken\n\n")
	if len(log.Actions) == 0 {
		b.WriteString("None.\n")
	} else {
		for _, a := range log.Actions {
			line := fmt.Sprintf("- %s: %s", a.Type, a.Status)
			if a.Details != nil {
				if a.Details.Title != "" {
					line += " — " + a.Details.Title
				}
				if a.Details.Error != "" {
					line += " (" + a.Details.Error + ")"
				}
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("# State Changes\n\n")
	changes := stateChangeLines(log.StateChanges)
	if len(changes) == 0 {
		b.WriteString("None.\n")
	} else {
		for _, line := range changes {
			b.WriteString("- " + line + "\n")
		}
	}

	return b.String()
}

func stateChangeLines(sc StateChanges) []string {
	var out []string
	if sc.SummaryUpdated {
		out = append(out, "summary updated")
	}
	for _, id := range sc.NewIssues {
		out = append(out, "new issue: "+id)
	}
	for _, id := range sc.UpdatedIssues {
		out = append(out, "updated issue: "+id)
	}
	for _, id := range sc.ResolvedIssues {
		out = append(out, "resolved issue: "+id)
	}
	return out
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None."
	}
	return s
}
