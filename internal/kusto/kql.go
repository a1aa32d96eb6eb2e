package kusto

import (
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses whitespace so logically identical queries share one
// cache fingerprint.
func Normalize(kql string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(kql, " "))
}

// ErrEmptyQuery is the fixed user-facing message for a blank query.
const ErrEmptyQuery = "Query cannot be empty. Provide a KQL query string, e.g. traces | where timestamp > ago(1d) | take 10."

// Validate rejects queries the cluster would reject anyway, with a clearer
// message. Validation failures are recoverable: tools hand them to the LLM
// as error results.
func Validate(kql string) error {
	if strings.TrimSpace(kql) == "" {
		return &QueryError{Message: ErrEmptyQuery}
	}
	return nil
}

// HasTimeFilter reports whether the query bounds its time range with ago().
func HasTimeFilter(kql string) bool {
	return strings.Contains(kql, "ago(")
}
