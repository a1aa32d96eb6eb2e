package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bctelemetry/bctb/internal/kusto"
)

const (
	defaultSampleSize = 25
	maxSampleSize     = 100
	maxExampleValues  = 5
)

type fieldSample struct {
	Field   string   `json:"field"`
	Type    string   `json:"type"`
	Samples []string `json:"samples"`
	Hint    string   `json:"hint,omitempty"`
}

// eventFieldSamples inspects one event's customDimensions: field list,
// detected types with timespan recognition, real sample values, and an
// example query the LLM can adapt.
func (h *Handlers) eventFieldSamples(ctx context.Context, svc *services, args map[string]interface{}) (interface{}, error) {
	eventID := strings.TrimSpace(argString(args, "eventId"))
	if eventID == "" {
		return nil, fmt.Errorf("eventId is required")
	}
	days := argInt(args, "days", defaultCatalogDays)
	sampleSize := argInt(args, "sampleSize", defaultSampleSize)
	if sampleSize > maxSampleSize {
		sampleSize = maxSampleSize
	}

	rows, err := h.sampleEvent(ctx, svc, eventID, days, sampleSize)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no occurrences of event %q found in the last %d days", eventID, days)
	}

	valuesByField := collectFieldValues(rows)
	fields := make([]fieldSample, 0, len(valuesByField))
	timespanField := ""
	for field, values := range valuesByField {
		fs := fieldSample{
			Field:   field,
			Type:    kusto.DetectFieldType(field, values),
			Samples: capValues(values, maxExampleValues),
		}
		if fs.Type == "timespan" {
			fs.Hint = kusto.TimespanHint(field)
			if timespanField == "" {
				timespanField = field
			}
		}
		fields = append(fields, fs)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })

	return map[string]interface{}{
		"eventId":     eventID,
		"days":        days,
		"sampleCount": len(rows),
		"fields":      fields,
		"exampleKQL":  exampleKQL(eventID, timespanField),
	}, nil
}

// eventSchema is the compact variant: field names with up to 5 distinct
// example values, no type detection.
func (h *Handlers) eventSchema(ctx context.Context, svc *services, args map[string]interface{}) (interface{}, error) {
	eventID := strings.TrimSpace(argString(args, "eventId"))
	if eventID == "" {
		return nil, fmt.Errorf("eventId is required")
	}
	days := argInt(args, "days", defaultCatalogDays)

	rows, err := h.sampleEvent(ctx, svc, eventID, days, defaultSampleSize)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no occurrences of event %q found in the last %d days", eventID, days)
	}

	valuesByField := collectFieldValues(rows)
	type schemaField struct {
		Field    string   `json:"field"`
		Examples []string `json:"examples"`
	}
	fields := make([]schemaField, 0, len(valuesByField))
	for field, values := range valuesByField {
		fields = append(fields, schemaField{Field: field, Examples: capValues(values, maxExampleValues)})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })

	return map[string]interface{}{
		"eventId":     eventID,
		"days":        days,
		"sampleCount": len(rows),
		"fields":      fields,
	}, nil
}

// sampleEvent pulls recent customDimensions payloads for one event ID.
func (h *Handlers) sampleEvent(ctx context.Context, svc *services, eventID string, days, sampleSize int) ([]map[string]interface{}, error) {
	kql := fmt.Sprintf(`traces
| where timestamp > ago(%dd)
| where tostring(customDimensions.eventId) == "%s"
| project customDimensions
| take %d`, days, strings.ReplaceAll(eventID, `"`, ``), sampleSize)

	result, err := svc.kusto.Query(ctx, kql)
	if err != nil {
		return nil, err
	}
	idx := result.ColumnIndex("customDimensions")
	if idx < 0 {
		return nil, fmt.Errorf("unexpected sample result shape: columns %v", result.Columns)
	}

	var out []map[string]interface{}
	for _, row := range result.Rows {
		if dims := parseDimensions(row[idx]); len(dims) > 0 {
			out = append(out, dims)
		}
	}
	return out, nil
}

// collectFieldValues flattens sampled payloads into distinct string values
// per field, preserving first-seen order.
func collectFieldValues(rows []map[string]interface{}) map[string][]string {
	out := map[string][]string{}
	seen := map[string]map[string]bool{}
	for _, dims := range rows {
		for field, raw := range dims {
			value := dimString(raw)
			if value == "" {
				continue
			}
			if seen[field] == nil {
				seen[field] = map[string]bool{}
			}
			if seen[field][value] {
				continue
			}
			seen[field][value] = true
			out[field] = append(out[field], value)
		}
	}
	return out
}

func dimString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func capValues(values []string, max int) []string {
	if len(values) <= max {
		return values
	}
	return values[:max]
}

func exampleKQL(eventID, timespanField string) string {
	var b strings.Builder
	b.WriteString("traces\n")
	b.WriteString("| where timestamp > ago(1d)\n")
	fmt.Fprintf(&b, "| where customDimensions.eventId == %q\n", eventID)
	if timespanField != "" {
		fmt.Fprintf(&b, "| extend durationMs = toreal(totimespan(customDimensions.%s)) / 10000\n", timespanField)
	}
	b.WriteString("| project timestamp, message, customDimensions\n")
	b.WriteString("| take 100")
	return b.String()
}
