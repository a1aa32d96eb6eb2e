package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bctelemetry/bctb/internal/store"
)

// sendGenericWebhook posts the action to an arbitrary HTTP endpoint. The
// agent may supply the whole payload; otherwise a standard envelope with
// title, message, severity, agent and timestamp goes out.
func (d *Dispatcher) sendGenericWebhook(ctx context.Context, req store.RequestedAction, agentName string) error {
	cfg, ok := d.actionConfig(store.ActionGenericWebhook)
	if !ok || cfg.URL == "" {
		return &Error{Type: store.ActionGenericWebhook, Message: "no webhook URL configured (agents.actions.generic-webhook.url)"}
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}

	var payload interface{}
	if len(req.WebhookPayload) > 0 {
		payload = req.WebhookPayload
	} else {
		payload = map[string]interface{}{
			"title":     req.Title,
			"message":   req.Message,
			"severity":  req.Severity,
			"agent":     agentName,
			"timestamp": d.now().UTC().Format(time.RFC3339),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Type: store.ActionGenericWebhook, Message: "encode payload", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return &Error{Type: store.ActionGenericWebhook, Message: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return &Error{Type: store.ActionGenericWebhook, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()
	return checkResponse(store.ActionGenericWebhook, resp)
}
