package tools

import "context"

// externalQueries fetches all configured remote KQL references. Per-source
// failures come back inline in the result so one dead source never hides
// the others.
func (h *Handlers) externalQueries(ctx context.Context, svc *services) (interface{}, error) {
	if !svc.external.HasReferences() {
		return map[string]interface{}{
			"references": []interface{}{},
			"message":    "No external query references configured. Add a 'references' list to the active profile.",
		}, nil
	}
	return map[string]interface{}{
		"references": svc.external.FetchAll(ctx),
	}, nil
}
