package tools

import (
	"context"
	"strings"
	"testing"
)

func recommendationsFor(t *testing.T, args map[string]interface{}) []string {
	t.Helper()
	h := newTestHandlers(t, &fakeCluster{})
	out, err := h.Execute(context.Background(), "get_recommendations", args)
	if err != nil {
		t.Fatal(err)
	}
	return asMap(t, out)["recommendations"].([]string)
}

func TestRecommendations_UnpipedWhere(t *testing.T) {
	recs := recommendationsFor(t, map[string]interface{}{
		"query": "where timestamp > ago(1d)",
	})
	if !anyContains(recs, "piped") {
		t.Errorf("missing unpiped-where recommendation: %v", recs)
	}
}

func TestRecommendations_ProjectStar(t *testing.T) {
	recs := recommendationsFor(t, map[string]interface{}{
		"query": "traces | where timestamp > ago(1d) | project *",
	})
	if !anyContains(recs, "project") {
		t.Errorf("missing project-* recommendation: %v", recs)
	}
}

func TestRecommendations_MissingTimeFilter(t *testing.T) {
	recs := recommendationsFor(t, map[string]interface{}{
		"query": "traces | take 10",
	})
	if !anyContains(recs, "ago()") {
		t.Errorf("missing time-filter recommendation: %v", recs)
	}
}

func TestRecommendations_LargeResult(t *testing.T) {
	recs := recommendationsFor(t, map[string]interface{}{
		"query":      "traces | where timestamp > ago(1d)",
		"resultRows": float64(50000),
	})
	if !anyContains(recs, "50000 rows") {
		t.Errorf("missing large-result recommendation: %v", recs)
	}
}

func TestRecommendations_CleanQuery(t *testing.T) {
	recs := recommendationsFor(t, map[string]interface{}{
		"query":      "traces | where timestamp > ago(1d) | project timestamp, message | take 100",
		"resultRows": float64(100),
	})
	if len(recs) != 0 {
		t.Errorf("clean query produced recommendations: %v", recs)
	}
}

func TestHasUnpipedWhere(t *testing.T) {
	cases := []struct {
		kql  string
		want bool
	}{
		{"traces | where timestamp > ago(1d)", false},
		{"traces\n| where a == 1\n| where b == 2", false},
		{"where a == 1", true},
		{"traces | take 10\nwhere a == 1", true},
		{"traces | summarize c = count() by bin(timestamp, 1h)", false},
	}
	for _, tc := range cases {
		if got := hasUnpipedWhere(tc.kql); got != tc.want {
			t.Errorf("hasUnpipedWhere(%q) = %v, want %v", tc.kql, got, tc.want)
		}
	}
}

func anyContains(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
