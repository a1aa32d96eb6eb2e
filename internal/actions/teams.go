package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/bctelemetry/bctb/internal/store"
)

// sendTeamsWebhook posts an Adaptive Card to the configured Teams incoming
// webhook. The card carries the title block (colored by severity), the
// message, and a two-row fact set naming severity and agent.
func (d *Dispatcher) sendTeamsWebhook(ctx context.Context, req store.RequestedAction, agentName string) error {
	cfg, ok := d.actionConfig(store.ActionTeamsWebhook)
	if !ok || cfg.URL == "" {
		return &Error{Type: store.ActionTeamsWebhook, Message: "no webhook URL configured (agents.actions.teams-webhook.url)"}
	}

	card := map[string]interface{}{
		"type": "message",
		"attachments": []map[string]interface{}{
			{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content": map[string]interface{}{
					"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
					"type":    "AdaptiveCard",
					"version": "1.4",
					"body": []map[string]interface{}{
						{
							"type":   "TextBlock",
							"size":   "Large",
							"weight": "Bolder",
							"color":  severityColor(req.Severity),
							"text":   req.Title,
							"wrap":   true,
						},
						{
							"type": "TextBlock",
							"text": req.Message,
							"wrap": true,
						},
						{
							"type": "FactSet",
							"facts": []map[string]string{
								{"title": "Severity", "value": req.Severity},
								{"title": "Agent", "value": agentName},
							},
						},
					},
				},
			},
		},
	}

	body, err := json.Marshal(card)
	if err != nil {
		return &Error{Type: store.ActionTeamsWebhook, Message: "encode card", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return &Error{Type: store.ActionTeamsWebhook, Message: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return &Error{Type: store.ActionTeamsWebhook, Message: "post card", Err: err}
	}
	defer resp.Body.Close()
	return checkResponse(store.ActionTeamsWebhook, resp)
}
