package store

import "time"

// StateOptions parameterize the update step.
type StateOptions struct {
	ContextWindowRuns    int // sliding-window length; <=0 means 5
	ResolvedIssueTTLDays int // resolved retention; <=0 means 30
}

func (o StateOptions) window() int {
	if o.ContextWindowRuns <= 0 {
		return 5
	}
	return o.ContextWindowRuns
}

func (o StateOptions) ttl() time.Duration {
	days := o.ResolvedIssueTTLDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// UpdateState computes the post-run state. Pure: no I/O, no clock reads
// beyond the supplied now. The caller persists the result with SaveState.
//
// The LLM is authoritative for which issues are active: prior active issues
// it neither re-reports nor resolves simply drop out. The context manager
// is authoritative for firstSeen (carried from the matching prior issue),
// for actionsTaken (this run's executed actions appended to each reported
// issue), and for the run stamp on every executed action.
func UpdateState(prev AgentState, output AgentOutput, executed []AgentAction, durationMs int64, toolCallNames []string, now time.Time, opts StateOptions) AgentState {
	nowStr := now.UTC().Format(time.RFC3339)
	newRunID := prev.RunCount + 1

	stamped := make([]AgentAction, len(executed))
	for i, a := range executed {
		a.Run = newRunID
		stamped[i] = a
	}

	newActive := buildActiveIssues(prev.ActiveIssues, output.ActiveIssues, stamped, nowStr)
	newResolved := buildResolvedIssues(prev, output, newActive, now, opts)

	actionTypes := make([]string, len(stamped))
	for i, a := range stamped {
		actionTypes[i] = a.Type
	}

	runSummary := AgentRunSummary{
		RunID:      newRunID,
		Timestamp:  nowStr,
		DurationMs: durationMs,
		ToolCalls:  len(toolCallNames),
		Findings:   output.Findings,
		Actions:    actionTypes,
	}

	recent := append(append([]AgentRunSummary{}, prev.RecentRuns...), runSummary)
	if w := opts.window(); len(recent) > w {
		recent = recent[len(recent)-w:]
	}

	return AgentState{
		AgentName:      prev.AgentName,
		Created:        prev.Created,
		LastRun:        nowStr,
		RunCount:       newRunID,
		Status:         prev.Status,
		Summary:        output.Summary,
		ActiveIssues:   newActive,
		ResolvedIssues: newResolved,
		RecentRuns:     recent,
	}
}

func buildActiveIssues(prevActive, reported []AgentIssue, executed []AgentAction, nowStr string) []AgentIssue {
	out := make([]AgentIssue, 0, len(reported))
	for _, issue := range reported {
		prior, found := findIssue(prevActive, issue)

		if found {
			issue.FirstSeen = prior.FirstSeen
			issue.ActionsTaken = append(append([]AgentAction{}, prior.ActionsTaken...), executed...)
		} else {
			if issue.FirstSeen == "" {
				issue.FirstSeen = nowStr
			}
			issue.ActionsTaken = append([]AgentAction{}, executed...)
		}
		if issue.LastSeen == "" {
			issue.LastSeen = nowStr
		}
		out = append(out, issue)
	}
	return out
}

func buildResolvedIssues(prev AgentState, output AgentOutput, newActive []AgentIssue, now time.Time, opts StateOptions) []AgentIssue {
	resolved := append([]AgentIssue{}, prev.ResolvedIssues...)

	for _, prior := range prev.ActiveIssues {
		if !resolvedKeyListed(prior, output.ResolvedIssues) {
			continue
		}
		// An issue the LLM both re-reports and resolves stays active;
		// one entry across active and resolved.
		if _, stillActive := findIssue(newActive, prior); stillActive {
			continue
		}
		resolved = append(resolved, prior)
	}

	cutoff := now.Add(-opts.ttl())
	kept := resolved[:0]
	for _, issue := range resolved {
		seen, err := time.Parse(time.RFC3339, issue.LastSeen)
		if err == nil && seen.Before(cutoff) {
			continue
		}
		kept = append(kept, issue)
	}
	return kept
}

func findIssue(issues []AgentIssue, target AgentIssue) (AgentIssue, bool) {
	for _, i := range issues {
		if i.Matches(target) {
			return i, true
		}
	}
	return AgentIssue{}, false
}

func resolvedKeyListed(issue AgentIssue, resolvedKeys []string) bool {
	for _, key := range resolvedKeys {
		if issue.MatchesKey(key) {
			return true
		}
	}
	return false
}
