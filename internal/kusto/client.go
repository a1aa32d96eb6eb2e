// Package kusto talks to the Application Insights query API and carries the
// KQL-side domain helpers: query normalization, timespan detection, event
// categorization, and PII scrubbing.
package kusto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bctelemetry/bctb/internal/auth"
)

// QueryError is a cluster-side failure: validation, HTTP transport, or a
// non-2xx API answer.
type QueryError struct {
	Status  int
	Message string
}

func (e *QueryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("telemetry query failed (HTTP %d): %s", e.Status, e.Message)
	}
	return "telemetry query failed: " + e.Message
}

// Column is one result column with its cluster-reported type.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryResult is the parsed answer of one KQL execution.
type QueryResult struct {
	Columns []Column        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	Summary string          `json:"summary"`
	Cached  bool            `json:"cached,omitempty"`
}

// Clone deep-copies the result so cache consumers cannot mutate the stored
// copy.
func (r *QueryResult) Clone() *QueryResult {
	out := &QueryResult{
		Columns: append([]Column(nil), r.Columns...),
		Summary: r.Summary,
		Cached:  r.Cached,
	}
	out.Rows = make([][]interface{}, len(r.Rows))
	for i, row := range r.Rows {
		out.Rows[i] = append([]interface{}(nil), row...)
	}
	return out
}

// ColumnIndex returns the position of the named column, or -1.
func (r *QueryResult) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Client executes KQL against one Application Insights app.
type Client struct {
	appID    string
	endpoint string
	tokens   auth.TokenProvider
	client   *http.Client
}

// NewClient builds a client for the profile's app. endpoint defaults to the
// public cloud API host.
func NewClient(appID, endpoint string, tokens auth.TokenProvider) *Client {
	if endpoint == "" {
		endpoint = "https://api.applicationinsights.io"
	}
	return &Client{
		appID:    appID,
		endpoint: strings.TrimRight(endpoint, "/"),
		tokens:   tokens,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Query validates, authenticates, executes, and parses one KQL query.
func (c *Client) Query(ctx context.Context, kql string) (*QueryResult, error) {
	if err := Validate(kql); err != nil {
		return nil, err
	}
	if c.appID == "" {
		return nil, &QueryError{Message: "no Application Insights appId configured for the active profile"}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"query": kql})
	if err != nil {
		return nil, &QueryError{Message: fmt.Sprintf("encode query: %v", err)}
	}

	url := fmt.Sprintf("%s/v1/apps/%s/query", c.endpoint, c.appID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, &QueryError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-ms-client-request-id", uuid.NewString())

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &QueryError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &QueryError{Status: resp.StatusCode, Message: apiErrorMessage(data)}
	}

	var wire apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &QueryError{Message: fmt.Sprintf("decode response: %v", err)}
	}

	result := parseTables(&wire)
	slog.Debug("telemetry query executed",
		"rows", len(result.Rows),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func parseTables(wire *apiResponse) *QueryResult {
	result := &QueryResult{}
	if len(wire.Tables) == 0 {
		result.Summary = "0 rows returned"
		return result
	}

	// The primary result is always the first table.
	t := wire.Tables[0]
	result.Columns = make([]Column, len(t.Columns))
	for i, c := range t.Columns {
		result.Columns[i] = Column{Name: c.Name, Type: c.Type}
	}
	result.Rows = t.Rows
	if result.Rows == nil {
		result.Rows = [][]interface{}{}
	}
	result.Summary = fmt.Sprintf("%d rows returned", len(result.Rows))
	return result
}

func apiErrorMessage(data []byte) string {
	var wire struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &wire); err == nil && wire.Error.Message != "" {
		if wire.Error.Code != "" {
			return wire.Error.Code + ": " + wire.Error.Message
		}
		return wire.Error.Message
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	return s
}

// --- API wire types ---

type apiResponse struct {
	Tables []struct {
		Name    string `json:"name"`
		Columns []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"columns"`
		Rows [][]interface{} `json:"rows"`
	} `json:"tables"`
}
