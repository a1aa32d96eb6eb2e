package tools

import (
	"context"

	"github.com/bctelemetry/bctb/internal/kusto"
)

// queryTelemetry executes arbitrary KQL: cache check, validation, token
// acquisition, execution, parse, optional PII scrub, cache store. A cache
// hit skips validation (only validated queries are ever stored); the scrub
// runs before caching so the stored copy is already clean.
func (h *Handlers) queryTelemetry(ctx context.Context, svc *services, args map[string]interface{}) (interface{}, error) {
	kql := argString(args, "query")
	if hit := svc.cache.Get(kql); hit != nil {
		return hit, nil
	}
	if err := kusto.Validate(kql); err != nil {
		return nil, err
	}

	result, err := svc.kusto.Query(ctx, kql)
	if err != nil {
		return nil, err
	}
	if svc.profile.Sanitize.RemovePII {
		kusto.RemovePII(result)
	}
	svc.cache.Set(kql, result)
	return result, nil
}
