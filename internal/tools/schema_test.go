package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func sampleCluster() *fakeCluster {
	return &fakeCluster{responses: map[string]clusterTable{
		`== "RT0005"`: {
			columns: []string{"customDimensions"},
			rows: [][]interface{}{
				{`{"eventId":"RT0005","executionTime":"00:00:12.5000000","sqlStatement":"SELECT * FROM T1","aadTenantId":"t-1"}`},
				{`{"eventId":"RT0005","executionTime":"00:01:02","sqlStatement":"DELETE FROM T2","aadTenantId":"t-2"}`},
			},
		},
		`== "RT9999"`: {
			columns: []string{"customDimensions"},
			rows:    [][]interface{}{},
		},
	}}
}

func TestEventFieldSamples(t *testing.T) {
	h := newTestHandlers(t, sampleCluster())

	out, err := h.Execute(context.Background(), "get_event_field_samples", map[string]interface{}{
		"eventId": "RT0005",
	})
	if err != nil {
		t.Fatal(err)
	}
	m := asMap(t, out)
	if m["sampleCount"] != 2 {
		t.Errorf("sampleCount = %v", m["sampleCount"])
	}

	fields := m["fields"].([]fieldSample)
	byName := map[string]fieldSample{}
	for _, f := range fields {
		byName[f.Field] = f
	}

	et, ok := byName["executionTime"]
	if !ok {
		t.Fatalf("executionTime missing: %v", fields)
	}
	if et.Type != "timespan" {
		t.Errorf("executionTime type = %q", et.Type)
	}
	if !strings.Contains(et.Hint, "/ 10000") || !strings.Contains(et.Hint, "totimespan") {
		t.Errorf("timespan hint = %q", et.Hint)
	}
	if byName["sqlStatement"].Type != "string" {
		t.Errorf("sqlStatement type = %q", byName["sqlStatement"].Type)
	}

	example := m["exampleKQL"].(string)
	if !strings.Contains(example, `customDimensions.eventId == "RT0005"`) {
		t.Errorf("example KQL = %q", example)
	}
	if !strings.Contains(example, "toreal(totimespan(customDimensions.executionTime)) / 10000") {
		t.Errorf("example KQL lacks timespan conversion: %q", example)
	}
}

func TestEventFieldSamples_ZeroSamples(t *testing.T) {
	h := newTestHandlers(t, sampleCluster())
	_, err := h.Execute(context.Background(), "get_event_field_samples", map[string]interface{}{
		"eventId": "RT9999",
	})
	if err == nil || !strings.Contains(err.Error(), `no occurrences of event "RT9999"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestEventFieldSamples_RequiresEventID(t *testing.T) {
	h := newTestHandlers(t, sampleCluster())
	_, err := h.Execute(context.Background(), "get_event_field_samples", map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error for missing eventId")
	}
}

func TestEventSchema(t *testing.T) {
	h := newTestHandlers(t, sampleCluster())

	out, err := h.Execute(context.Background(), "get_event_schema", map[string]interface{}{
		"eventId": "RT0005",
	})
	if err != nil {
		t.Fatal(err)
	}
	m := asMap(t, out)
	if m["sampleCount"] != 2 {
		t.Errorf("sampleCount = %v", m["sampleCount"])
	}

	// The field slice uses a handler-local type; inspect it as JSON.
	data, err := json.Marshal(m["fields"])
	if err != nil {
		t.Fatal(err)
	}
	var fields []struct {
		Field    string   `json:"field"`
		Examples []string `json:"examples"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	if len(fields) != 4 {
		t.Fatalf("fields = %d, want 4", len(fields))
	}
	for _, f := range fields {
		if len(f.Examples) == 0 || len(f.Examples) > 5 {
			t.Errorf("%s examples = %d", f.Field, len(f.Examples))
		}
	}
}

func TestCollectFieldValues_Dedup(t *testing.T) {
	rows := []map[string]interface{}{
		{"a": "1", "b": "x"},
		{"a": "1", "b": "y"},
		{"a": "2"},
	}
	got := collectFieldValues(rows)
	if len(got["a"]) != 2 {
		t.Errorf("a values = %v", got["a"])
	}
	if len(got["b"]) != 2 {
		t.Errorf("b values = %v", got["b"])
	}
}
