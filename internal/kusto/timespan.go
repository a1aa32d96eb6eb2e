package kusto

import (
	"fmt"
	"regexp"
)

// timespanValueRe matches the cluster's timespan literal rendering:
// [d.]hh:mm:ss[.fffffff].
var timespanValueRe = regexp.MustCompile(`^(\d+\.)?\d{1,2}:\d{2}:\d{2}(\.\d+)?$`)

// Field names that carry durations even when the sampled values happen to
// look numeric.
var timespanNameRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)time$`),
	regexp.MustCompile(`(?i)duration`),
	regexp.MustCompile(`(?i)elapsed`),
	regexp.MustCompile(`(?i)latency`),
	regexp.MustCompile(`(?i)delay`),
	regexp.MustCompile(`(?i)wait`),
	regexp.MustCompile(`(?i)runtime`),
}

// IsTimespanValue reports whether a sampled string renders as a timespan.
func IsTimespanValue(v string) bool {
	return timespanValueRe.MatchString(v)
}

// IsTimespanField reports whether the field name alone marks a duration.
func IsTimespanField(name string) bool {
	for _, re := range timespanNameRes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// TimespanHint is the conversion advice attached to detected timespan
// fields: totimespan ticks divide by 10,000 to give milliseconds.
func TimespanHint(field string) string {
	return fmt.Sprintf(
		"Field %q is a timespan. To compute with it in milliseconds use: toreal(totimespan(customDimensions.%s)) / 10000",
		field, field)
}

// DetectFieldType classifies sampled values for the schema tools.
func DetectFieldType(name string, samples []string) string {
	if len(samples) == 0 {
		return "unknown"
	}
	timespanVotes := 0
	numeric := 0
	for _, s := range samples {
		if IsTimespanValue(s) {
			timespanVotes++
		}
		if numberRe.MatchString(s) {
			numeric++
		}
	}
	switch {
	case timespanVotes == len(samples):
		return "timespan"
	case IsTimespanField(name) && timespanVotes > 0:
		return "timespan"
	case numeric == len(samples):
		return "numeric"
	case IsTimespanField(name):
		return "timespan"
	default:
		return "string"
	}
}

var numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
