// Package actions executes the external side effects an agent run requests:
// Teams webhook cards, SMTP and Graph email, generic webhooks, and Azure
// DevOps pipeline triggers. Every requested action is attempted
// independently and accounted for; a failed dispatch is a recorded outcome,
// never a run failure.
package actions

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bctelemetry/bctb/internal/config"
	"github.com/bctelemetry/bctb/internal/store"
)

const dispatchTimeout = 30 * time.Second

// Dispatcher owns the per-action-type configuration from agents.actions.
type Dispatcher struct {
	configs map[string]config.ActionConfig
	client  *http.Client
	smtp    SMTPSender

	// Test overrides; empty means the real endpoints.
	graphTokenURL string
	graphBaseURL  string

	now func() time.Time
}

// Option configures a Dispatcher at construction.
type Option func(*Dispatcher)

// WithHTTPClient replaces the HTTP client used by every effector.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

// WithSMTPSender replaces the SMTP wire implementation. Intended for tests.
func WithSMTPSender(s SMTPSender) Option {
	return func(d *Dispatcher) { d.smtp = s }
}

// WithGraphEndpoints overrides the AAD token and Graph API base URLs.
// Intended for tests.
func WithGraphEndpoints(tokenURL, baseURL string) Option {
	return func(d *Dispatcher) {
		d.graphTokenURL = tokenURL
		d.graphBaseURL = baseURL
	}
}

func withClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New builds a dispatcher over the agents.actions config map (keyed by
// action type). A nil map is valid: every dispatch then fails with a
// not-configured error, which is still a recorded outcome.
func New(configs map[string]config.ActionConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		configs: configs,
		client:  &http.Client{Timeout: dispatchTimeout},
		smtp:    netSMTPSender{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch attempts every requested action in order and returns one
// AgentAction per request. One failure never short-circuits the rest.
// The Run field is left 0; the context manager stamps it after the fact,
// so callers must read the post-update state rather than this slice.
func (d *Dispatcher) Dispatch(ctx context.Context, requested []store.RequestedAction, agentName string) []store.AgentAction {
	out := make([]store.AgentAction, 0, len(requested))
	for _, req := range requested {
		out = append(out, d.dispatchOne(ctx, req, agentName))
	}
	return out
}

func (d *Dispatcher) dispatchOne(ctx context.Context, req store.RequestedAction, agentName string) store.AgentAction {
	var err error
	switch req.Type {
	case store.ActionTeamsWebhook:
		err = d.sendTeamsWebhook(ctx, req, agentName)
	case store.ActionEmailSMTP:
		err = d.sendSMTPEmail(ctx, req, agentName)
	case store.ActionEmailGraph:
		err = d.sendGraphEmail(ctx, req, agentName)
	case store.ActionGenericWebhook:
		err = d.sendGenericWebhook(ctx, req, agentName)
	case store.ActionPipelineTrigger:
		err = d.triggerPipeline(ctx, req, agentName)
	default:
		err = &Error{Type: req.Type, Message: "unknown action type"}
	}

	action := store.AgentAction{
		Type:      req.Type,
		Timestamp: d.now().UTC().Format(time.RFC3339),
		Status:    "sent",
		Details: &store.ActionDetails{
			Title:    req.Title,
			Severity: req.Severity,
		},
	}
	if err != nil {
		action.Status = "failed"
		action.Details.Error = err.Error()
		slog.Warn("action dispatch failed", "agent", agentName, "type", req.Type, "error", err)
	} else {
		slog.Info("action dispatched", "agent", agentName, "type", req.Type, "severity", req.Severity)
	}
	return action
}

// actionConfig looks up the config block for one action type.
func (d *Dispatcher) actionConfig(actionType string) (config.ActionConfig, bool) {
	cfg, ok := d.configs[actionType]
	return cfg, ok
}

// severityEmoji prefixes email subjects: high is red, medium yellow,
// everything else green.
func severityEmoji(severity string) string {
	switch severity {
	case "high":
		return "🔴"
	case "medium":
		return "🟡"
	default:
		return "🟢"
	}
}

// severityColor maps severity onto Adaptive Card colors.
func severityColor(severity string) string {
	switch severity {
	case "high":
		return "attention"
	case "medium":
		return "warning"
	default:
		return "good"
	}
}
