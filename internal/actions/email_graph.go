package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/bctelemetry/bctb/internal/store"
)

const graphScope = "https://graph.microsoft.com/.default"

// sendGraphEmail delivers mail through Microsoft Graph in two steps: a
// client-credentials token against the tenant's AAD endpoint, then a
// sendMail call as the configured from-user. The client secret comes from
// GRAPH_CLIENT_SECRET only; a missing variable, a failed token request,
// and a failed send each produce a distinct error message.
func (d *Dispatcher) sendGraphEmail(ctx context.Context, req store.RequestedAction, agentName string) error {
	cfg, ok := d.actionConfig(store.ActionEmailGraph)
	if !ok || cfg.TenantID == "" || cfg.ClientID == "" || cfg.From == "" {
		return &Error{Type: store.ActionEmailGraph, Message: "tenantId, clientId and from must be configured (agents.actions.email-graph)"}
	}

	recipients := req.Recipients
	if len(recipients) == 0 {
		recipients = cfg.Recipients
	}
	if len(recipients) == 0 {
		return &Error{Type: store.ActionEmailGraph, Message: "no recipients: neither the action nor the config names any"}
	}

	secret := os.Getenv("GRAPH_CLIENT_SECRET")
	if secret == "" {
		return &Error{Type: store.ActionEmailGraph, Message: "GRAPH_CLIENT_SECRET environment variable is not set"}
	}

	token, err := d.graphToken(ctx, cfg.TenantID, cfg.ClientID, secret)
	if err != nil {
		return &Error{Type: store.ActionEmailGraph, Message: "token request failed", Err: err}
	}

	toRecipients := make([]map[string]interface{}, len(recipients))
	for i, addr := range recipients {
		toRecipients[i] = map[string]interface{}{
			"emailAddress": map[string]interface{}{"address": addr},
		}
	}

	mail := map[string]interface{}{
		"message": map[string]interface{}{
			"subject": fmt.Sprintf("%s %s", severityEmoji(req.Severity), req.Title),
			"body": map[string]interface{}{
				"contentType": "Text",
				"content":     fmt.Sprintf("%s\n\nSeverity: %s\nAgent: %s", req.Message, req.Severity, agentName),
			},
			"toRecipients": toRecipients,
		},
		"saveToSentItems": true,
	}

	body, err := json.Marshal(mail)
	if err != nil {
		return &Error{Type: store.ActionEmailGraph, Message: "encode message", Err: err}
	}

	endpoint := fmt.Sprintf("%s/v1.0/users/%s/sendMail", d.graphBase(), cfg.From)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{Type: store.ActionEmailGraph, Message: "create request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return &Error{Type: store.ActionEmailGraph, Message: "send failed", Err: err}
	}
	defer resp.Body.Close()
	return checkResponse(store.ActionEmailGraph, resp)
}

func (d *Dispatcher) graphToken(ctx context.Context, tenantID, clientID, secret string) (string, error) {
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		TokenURL:     d.graphTokenEndpoint(tenantID),
		Scopes:       []string{graphScope},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.client)
	tok, err := cc.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (d *Dispatcher) graphTokenEndpoint(tenantID string) string {
	if d.graphTokenURL != "" {
		return d.graphTokenURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
}

func (d *Dispatcher) graphBase() string {
	if d.graphBaseURL != "" {
		return d.graphBaseURL
	}
	return "https://graph.microsoft.com"
}
