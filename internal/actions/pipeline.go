package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/bctelemetry/bctb/internal/store"
)

// triggerPipeline queues an Azure DevOps pipeline run, passing the agent
// name (and the investigation id when the agent supplied one) as template
// parameters. Auth is a PAT via HTTP basic, read from DEVOPS_PAT first so
// the config file never has to hold the token.
func (d *Dispatcher) triggerPipeline(ctx context.Context, req store.RequestedAction, agentName string) error {
	cfg, ok := d.actionConfig(store.ActionPipelineTrigger)
	if !ok || cfg.OrganizationURL == "" || cfg.Project == "" || cfg.PipelineID == 0 {
		return &Error{Type: store.ActionPipelineTrigger, Message: "organizationUrl, project and pipelineId must be configured (agents.actions.pipeline-trigger)"}
	}

	pat := os.Getenv("DEVOPS_PAT")
	if pat == "" {
		pat = cfg.PAT
	}
	if pat == "" {
		return &Error{Type: store.ActionPipelineTrigger, Message: "no PAT available: set DEVOPS_PAT or agents.actions.pipeline-trigger.pat"}
	}

	params := map[string]interface{}{"agentName": agentName}
	if req.InvestigationID != "" {
		params["investigationId"] = req.InvestigationID
	}
	run := map[string]interface{}{
		"resources": map[string]interface{}{
			"repositories": map[string]interface{}{
				"self": map[string]interface{}{"refName": "refs/heads/main"},
			},
		},
		"templateParameters": params,
	}

	body, err := json.Marshal(run)
	if err != nil {
		return &Error{Type: store.ActionPipelineTrigger, Message: "encode run request", Err: err}
	}

	endpoint := fmt.Sprintf("%s/%s/_apis/pipelines/%d/runs?api-version=7.0",
		strings.TrimRight(cfg.OrganizationURL, "/"), cfg.Project, cfg.PipelineID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{Type: store.ActionPipelineTrigger, Message: "create request", Err: err}
	}
	httpReq.SetBasicAuth("", pat)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return &Error{Type: store.ActionPipelineTrigger, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()
	return checkResponse(store.ActionPipelineTrigger, resp)
}
