// Package auth acquires access tokens for the telemetry cluster. Two paths:
// a static token injected via BCTB_ACCESS_TOKEN (read per call, never
// cached), or an AAD client-credentials grant derived from the active
// profile. Concurrent refreshes collapse through singleflight so parallel
// agents sharing a profile hit the token endpoint once.
package auth

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/bctelemetry/bctb/internal/config"
)

const defaultScope = "https://api.applicationinsights.io/.default"

// TokenProvider yields a bearer token for cluster requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Error is an authentication failure (token acquisition or incomplete
// credentials).
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Message, e.Err)
	}
	return "auth: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Provider implements TokenProvider for one resolved profile.
type Provider struct {
	profileName string
	tenantID    string
	clientID    string
	secret      string
	scope       string
	tokenURL    string // test override

	group  singleflight.Group
	mu     sync.Mutex
	cached *oauth2.Token
}

type Option func(*Provider)

// WithTokenURL overrides the AAD token endpoint. Intended for tests.
func WithTokenURL(u string) Option {
	return func(p *Provider) { p.tokenURL = u }
}

func WithScope(scope string) Option {
	return func(p *Provider) {
		if scope != "" {
			p.scope = scope
		}
	}
}

// New builds a provider from the resolved profile.
func New(profile *config.Profile, opts ...Option) *Provider {
	p := &Provider{
		profileName: profile.Name,
		tenantID:    profile.TenantID,
		clientID:    profile.ClientID,
		secret:      profile.ClientSecret,
		scope:       defaultScope,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Token returns a bearer token. The static-token env var wins when present;
// it is consulted on every call so rotation takes effect immediately.
func (p *Provider) Token(ctx context.Context) (string, error) {
	if tok := os.Getenv("BCTB_ACCESS_TOKEN"); tok != "" {
		return tok, nil
	}

	if issues := p.ConfigIssues(); len(issues) > 0 {
		return "", &Error{Message: "incomplete credentials: " + issues[0]}
	}

	p.mu.Lock()
	if p.cached != nil && p.cached.Valid() {
		tok := p.cached.AccessToken
		p.mu.Unlock()
		return tok, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do("token", func() (interface{}, error) {
		cc := clientcredentials.Config{
			ClientID:     p.clientID,
			ClientSecret: p.secret,
			TokenURL:     p.endpoint(),
			Scopes:       []string{p.scope},
		}
		tok, err := cc.Token(ctx)
		if err != nil {
			return nil, &Error{Message: "client-credentials grant failed", Err: err}
		}
		p.mu.Lock()
		p.cached = tok
		p.mu.Unlock()
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Method reports how the next Token call would authenticate.
func (p *Provider) Method() string {
	if os.Getenv("BCTB_ACCESS_TOKEN") != "" {
		return "static-token"
	}
	return "client-credentials"
}

// ConfigIssues lists what stops client-credentials auth from working.
// Empty when a static token is present or the profile is complete.
func (p *Provider) ConfigIssues() []string {
	if os.Getenv("BCTB_ACCESS_TOKEN") != "" {
		return nil
	}
	var issues []string
	if p.tenantID == "" {
		issues = append(issues, "tenantId is not configured")
	}
	if p.clientID == "" {
		issues = append(issues, "clientId is not configured")
	}
	if p.secret == "" {
		issues = append(issues, "clientSecret is not configured (or set BCTB_ACCESS_TOKEN)")
	}
	return issues
}

func (p *Provider) endpoint() string {
	if p.tokenURL != "" {
		return p.tokenURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", p.tenantID)
}
