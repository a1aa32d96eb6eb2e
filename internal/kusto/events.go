package kusto

import "strings"

// Business Central signal event IDs with a known health category. The
// catalog tool consults this table first and falls back to the message
// heuristic for everything else.
var eventStatusByID = map[string]string{
	"RT0001": "success",  // authorization succeeded (open company)
	"RT0002": "error",    // authorization failed
	"RT0003": "success",  // web service request served
	"RT0004": "success",  // company lifecycle operation
	"RT0005": "too slow", // long running SQL query
	"RT0006": "success",  // report rendered
	"RT0008": "success",  // web service key based access
	"RT0010": "error",    // report generation cancelled or failed
	"RT0012": "success",  // outgoing web service request
	"RT0013": "error",    // outgoing web service request failed
	"RT0018": "too slow", // long running AL execution
	"RT0019": "error",    // report rendering failed
	"RT0028": "error",    // database lock timeout
	"RT0030": "error",    // web service returned error status
	"LC0010": "success",  // environment lifecycle
	"AL0000": "unknown",  // publisher-defined application event
}

// EventStatus categorizes a telemetry event. Lookup first, then keyword
// heuristics over the sampled message, else unknown.
func EventStatus(eventID, sampleMessage string) string {
	if st, ok := eventStatusByID[strings.ToUpper(strings.TrimSpace(eventID))]; ok {
		return st
	}

	msg := strings.ToLower(sampleMessage)
	switch {
	case containsAny(msg, "long running", "exceeded", "timeout", "too slow", "slow"):
		return "too slow"
	case containsAny(msg, "fail", "error", "exception", "denied", "cancelled", "canceled", "deadlock"):
		return "error"
	case containsAny(msg, "succeeded", "success", "completed", "opened", "started", "finished"):
		return "success"
	default:
		return "unknown"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
