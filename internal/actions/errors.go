package actions

import (
	"fmt"
	"io"
	"net/http"
)

// Error is one failed dispatch attempt. It never aborts a run; Dispatch
// folds it into the AgentAction record as details.error.
type Error struct {
	Type    string
	Message string
	Status  int // HTTP status when the effector got that far
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// checkResponse converts any non-2xx answer into an *Error carrying the
// status and a truncated body excerpt.
func checkResponse(actionType string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := string(body)
	if msg == "" {
		msg = resp.Status
	}
	return &Error{Type: actionType, Message: msg, Status: resp.StatusCode}
}
