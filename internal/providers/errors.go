package providers

import (
	"fmt"
	"strconv"
	"strings"
)

const maxErrorBody = 500

// HTTPError is a non-2xx vendor response. Body is truncated so run logs
// and wrapped errors stay bounded.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter int // seconds; 0 when the vendor sent no hint
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("provider HTTP %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// ParseRetryAfter reads a Retry-After header value in seconds form.
// HTTP-date form is ignored; vendors here send seconds.
func ParseRetryAfter(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
