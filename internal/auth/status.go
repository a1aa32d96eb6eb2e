package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Status is the get_auth_status answer. Incomplete configuration is a
// value, not an error: the LLM reads ConfigurationIssues and moves on.
type Status struct {
	Authenticated       bool     `json:"authenticated"`
	Method              string   `json:"method,omitempty"`
	Profile             string   `json:"profile,omitempty"`
	ExpiresOn           string   `json:"expiresOn,omitempty"`
	TenantID            string   `json:"tenantId,omitempty"`
	ConfigurationIssues []string `json:"configurationIssues,omitempty"`
}

// Status inspects the provider without throwing. When a token can be
// acquired it is parsed unverified to surface expiry and tenant claims;
// claim parse failures degrade to a bare authenticated answer.
func (p *Provider) Status(ctx context.Context) Status {
	if issues := p.ConfigIssues(); len(issues) > 0 {
		return Status{
			Authenticated:       false,
			Profile:             p.profileName,
			ConfigurationIssues: issues,
		}
	}

	token, err := p.Token(ctx)
	if err != nil {
		return Status{
			Authenticated:       false,
			Profile:             p.profileName,
			Method:              p.Method(),
			ConfigurationIssues: []string{err.Error()},
		}
	}

	st := Status{
		Authenticated: true,
		Profile:       p.profileName,
		Method:        p.Method(),
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			st.ExpiresOn = exp.UTC().Format(time.RFC3339)
		}
		if tid, ok := claims["tid"].(string); ok {
			st.TenantID = tid
		}
	}
	return st
}
