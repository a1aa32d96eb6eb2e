package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bctelemetry/bctb/internal/kusto"
)

const (
	defaultCatalogDays = 10
	maxCatalogRows     = 200
	maxFieldScanEvents = 50
)

var catalogStatuses = map[string]bool{
	"all": true, "success": true, "error": true, "too slow": true, "unknown": true,
}

type catalogEntry struct {
	EventID       string `json:"eventId"`
	Count         int64  `json:"count"`
	Status        string `json:"status"`
	SampleMessage string `json:"sampleMessage,omitempty"`
}

type commonField struct {
	Field      string `json:"field"`
	Coverage   int    `json:"coveragePercent"`
	Prevalence string `json:"prevalence"`
}

// eventCatalog discovers which event IDs the environment emits. One
// summarize query, capped at 200 distinct events, categorized by the
// built-in status table plus the message heuristic.
func (h *Handlers) eventCatalog(ctx context.Context, svc *services, args map[string]interface{}) (interface{}, error) {
	days := argInt(args, "days", defaultCatalogDays)
	statusFilter := strings.ToLower(strings.TrimSpace(argString(args, "status")))
	if statusFilter == "" {
		statusFilter = "all"
	}
	if !catalogStatuses[statusFilter] {
		return nil, fmt.Errorf("invalid status %q (valid: all, success, error, too slow, unknown)", statusFilter)
	}

	kql := fmt.Sprintf(`traces
| where timestamp > ago(%dd)
| extend eventId = tostring(customDimensions.eventId)
| where isnotempty(eventId)
| summarize eventCount = count(), sampleMessage = any(message) by eventId
| order by eventCount desc
| take %d`, days, maxCatalogRows)

	result, err := svc.kusto.Query(ctx, kql)
	if err != nil {
		return nil, err
	}

	idIdx := result.ColumnIndex("eventId")
	countIdx := result.ColumnIndex("eventCount")
	msgIdx := result.ColumnIndex("sampleMessage")
	if idIdx < 0 || countIdx < 0 {
		return nil, fmt.Errorf("unexpected catalog result shape: columns %v", result.Columns)
	}

	var entries []catalogEntry
	for _, row := range result.Rows {
		e := catalogEntry{
			EventID: cellString(row, idIdx),
			Count:   cellInt64(row, countIdx),
		}
		if msgIdx >= 0 {
			e.SampleMessage = truncate(cellString(row, msgIdx), 200)
		}
		e.Status = kusto.EventStatus(e.EventID, e.SampleMessage)
		if statusFilter != "all" && e.Status != statusFilter {
			continue
		}
		entries = append(entries, e)
	}
	if entries == nil {
		entries = []catalogEntry{}
	}

	out := map[string]interface{}{
		"days":        days,
		"status":      statusFilter,
		"totalEvents": len(entries),
		"events":      entries,
	}

	if argBool(args, "includeCommonFields") && len(entries) > 0 {
		fields, err := h.commonFields(ctx, svc, days, entries)
		if err != nil {
			// Field analysis is best-effort on top of a good catalog.
			out["commonFieldsError"] = err.Error()
		} else {
			out["commonFields"] = fields
		}
	}
	return out, nil
}

// commonFields runs the second pass: one sampled customDimensions payload
// per top event, then field prevalence across those events.
func (h *Handlers) commonFields(ctx context.Context, svc *services, days int, entries []catalogEntry) ([]commonField, error) {
	top := entries
	if len(top) > maxFieldScanEvents {
		top = top[:maxFieldScanEvents]
	}
	ids := make([]string, len(top))
	for i, e := range top {
		ids[i] = `"` + strings.ReplaceAll(e.EventID, `"`, ``) + `"`
	}

	kql := fmt.Sprintf(`traces
| where timestamp > ago(%dd)
| extend eventId = tostring(customDimensions.eventId)
| where eventId in (%s)
| summarize sample = any(customDimensions) by eventId`, days, strings.Join(ids, ", "))

	result, err := svc.kusto.Query(ctx, kql)
	if err != nil {
		return nil, err
	}
	sampleIdx := result.ColumnIndex("sample")
	if sampleIdx < 0 {
		return nil, fmt.Errorf("unexpected field-scan result shape: columns %v", result.Columns)
	}

	analyzed := 0
	fieldEvents := map[string]int{}
	for _, row := range result.Rows {
		dims := parseDimensions(row[sampleIdx])
		if len(dims) == 0 {
			continue
		}
		analyzed++
		for field := range dims {
			fieldEvents[field]++
		}
	}
	if analyzed == 0 {
		return []commonField{}, nil
	}

	out := make([]commonField, 0, len(fieldEvents))
	for field, n := range fieldEvents {
		pct := n * 100 / analyzed
		out = append(out, commonField{
			Field:      field,
			Coverage:   pct,
			Prevalence: prevalenceBucket(pct),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Coverage != out[j].Coverage {
			return out[i].Coverage > out[j].Coverage
		}
		return out[i].Field < out[j].Field
	})
	return out, nil
}

func prevalenceBucket(pct int) string {
	switch {
	case pct >= 80:
		return "universal"
	case pct >= 50:
		return "common"
	case pct >= 20:
		return "occasional"
	default:
		return "rare"
	}
}

// parseDimensions decodes a customDimensions cell. The query API renders
// dynamic columns as JSON strings; some responses carry a decoded map.
func parseDimensions(cell interface{}) map[string]interface{} {
	switch v := cell.(type) {
	case string:
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil
		}
		return m
	case map[string]interface{}:
		return v
	default:
		return nil
	}
}

func cellString(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	switch v := row[idx].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func cellInt64(row []interface{}, idx int) int64 {
	if idx < 0 || idx >= len(row) {
		return 0
	}
	switch v := row[idx].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
