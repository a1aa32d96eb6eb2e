package kusto

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.]+\b`)
	ipv4Re  = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	guidRe  = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	userCol = regexp.MustCompile(`(?i)user`)
)

// RemovePII masks emails and IPv4 addresses in every string cell, and
// GUID-shaped values in user-identifying columns. Mutates the result in
// place; call before caching so the scrubbed form is what gets stored.
func RemovePII(r *QueryResult) {
	maskGUID := make([]bool, len(r.Columns))
	for i, c := range r.Columns {
		maskGUID[i] = userCol.MatchString(c.Name)
	}

	for _, row := range r.Rows {
		for i, cell := range row {
			s, ok := cell.(string)
			if !ok {
				continue
			}
			s = emailRe.ReplaceAllString(s, "***@***")
			s = ipv4Re.ReplaceAllString(s, "*.*.*.*")
			if i < len(maskGUID) && maskGUID[i] {
				s = guidRe.ReplaceAllString(s, strings.Repeat("*", 8))
			}
			row[i] = s
		}
	}
}
