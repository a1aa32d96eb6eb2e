package tools

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bctelemetry/bctb/internal/kusto"
)

const largeResultThreshold = 10000

var (
	whereRe       = regexp.MustCompile(`(?i)\bwhere\b`)
	projectStarRe = regexp.MustCompile(`(?i)\bproject\s+\*`)
)

// recommendations reviews KQL text with static heuristics. Purely local:
// no cluster round-trip.
func (h *Handlers) recommendations(args map[string]interface{}) (interface{}, error) {
	kql := argString(args, "query")
	if strings.TrimSpace(kql) == "" {
		return nil, fmt.Errorf("query is required")
	}
	resultRows := argInt(args, "resultRows", 0)

	var recs []string
	if hasUnpipedWhere(kql) {
		recs = append(recs, "A 'where' clause is not piped from the previous stage. KQL operators chain with '|': use '... | where <condition>'.")
	}
	if projectStarRe.MatchString(kql) {
		recs = append(recs, "The query projects '*'. Select only the columns you need to reduce payload size and speed up the query.")
	}
	if !kusto.HasTimeFilter(kql) {
		recs = append(recs, "No ago() time filter found. Unbounded queries scan the full retention window; add 'where timestamp > ago(1d)' or similar.")
	}
	if resultRows > largeResultThreshold {
		recs = append(recs, fmt.Sprintf("The last execution returned %d rows. Aggregate with 'summarize' or narrow the filters; large result sets are slow to transfer and hard to reason about.", resultRows))
	}
	if recs == nil {
		recs = []string{}
	}

	return map[string]interface{}{
		"query":           kusto.Normalize(kql),
		"recommendations": recs,
	}, nil
}

// hasUnpipedWhere reports a 'where' whose nearest preceding non-whitespace
// character is not a pipe. The first table reference legitimately precedes
// the first pipe, so a leading bare 'where' is the only zero-offset case.
func hasUnpipedWhere(kql string) bool {
	for _, loc := range whereRe.FindAllStringIndex(kql, -1) {
		i := loc[0] - 1
		for i >= 0 && (kql[i] == ' ' || kql[i] == '\t' || kql[i] == '\n' || kql[i] == '\r') {
			i--
		}
		if i < 0 || kql[i] != '|' {
			return true
		}
	}
	return false
}
