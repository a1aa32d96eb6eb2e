package config

// Config is the root of .bctb-config.json. A workspace either defines a
// single flat profile (connection fields at top level) or a named profile
// map with a defaultProfile pointer; both shapes parse into this struct.
type Config struct {
	// Flat single-profile mode: connection fields live at top level.
	ProfileConfig

	DefaultProfile string                    `json:"defaultProfile,omitempty"`
	Profiles       map[string]*ProfileConfig `json:"profiles,omitempty"`

	Agents    AgentsConfig    `json:"agents,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`

	// Path is where this config was loaded from; not part of the file.
	Path string `json:"-"`
}

// ProfileConfig is one named connection bundle. Every field may also be
// declared on a base profile and inherited via extends.
type ProfileConfig struct {
	Extends string `json:"extends,omitempty"`

	// Application Insights connection.
	AppID        string `json:"appId,omitempty"`
	TenantID     string `json:"tenantId,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	APIEndpoint  string `json:"apiEndpoint,omitempty"` // default https://api.applicationinsights.io

	// Transport port for the MCP/HTTP surface; preserved across
	// switch_profile.
	Port int `json:"port,omitempty"`

	Cache         CacheConfig       `json:"cache,omitempty"`
	Sanitize      SanitizeConfig    `json:"sanitize,omitempty"`
	QueriesFolder string            `json:"queriesFolder,omitempty"`
	References    []ReferenceConfig `json:"references,omitempty"`
}

// CacheConfig controls the query-result cache.
type CacheConfig struct {
	Enabled    *bool `json:"enabled,omitempty"` // nil = enabled
	TTLSeconds int   `json:"ttlSeconds,omitempty"`
}

func (c CacheConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// SanitizeConfig controls post-query scrubbing.
type SanitizeConfig struct {
	RemovePII bool `json:"removePII,omitempty"`
}

// ReferenceConfig is one external KQL reference source.
type ReferenceConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AgentsConfig holds LLM wiring, run defaults, and action configs.
type AgentsConfig struct {
	LLM      LLMConfig               `json:"llm,omitempty"`
	Defaults AgentDefaults           `json:"defaults,omitempty"`
	Actions  map[string]ActionConfig `json:"actions,omitempty"`
}

// LLMConfig selects and parameterizes the provider.
type LLMConfig struct {
	Provider   string `json:"provider,omitempty"` // azure-openai | anthropic
	Endpoint   string `json:"endpoint,omitempty"`
	Deployment string `json:"deployment,omitempty"`
	Model      string `json:"model,omitempty"`
	APIVersion string `json:"apiVersion,omitempty"`
}

// AgentDefaults are the run safety limits.
type AgentDefaults struct {
	MaxToolCalls         int    `json:"maxToolCalls,omitempty"`
	MaxTokens            int    `json:"maxTokens,omitempty"`
	ContextWindowRuns    int    `json:"contextWindowRuns,omitempty"`
	ResolvedIssueTTLDays int    `json:"resolvedIssueTTLDays,omitempty"`
	ToolScope            string `json:"toolScope,omitempty"` // read-only | full
}

// ActionConfig is the union of per-action-type settings, keyed in
// agents.actions by the action type name.
type ActionConfig struct {
	// teams-webhook, generic-webhook
	URL     string            `json:"url,omitempty"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// email-smtp
	Host       string   `json:"host,omitempty"`
	Port       int      `json:"port,omitempty"`
	Secure     bool     `json:"secure,omitempty"`
	User       string   `json:"user,omitempty"`
	Password   string   `json:"password,omitempty"` // fallback; prefer SMTP_PASSWORD env
	From       string   `json:"from,omitempty"`
	Recipients []string `json:"recipients,omitempty"`

	// email-graph
	TenantID string `json:"tenantId,omitempty"`
	ClientID string `json:"clientId,omitempty"`

	// pipeline-trigger
	OrganizationURL string `json:"organizationUrl,omitempty"`
	Project         string `json:"project,omitempty"`
	PipelineID      int    `json:"pipelineId,omitempty"`
	PAT             string `json:"pat,omitempty"` // fallback; prefer DEVOPS_PAT env
}

// TelemetryConfig controls the internal event sink.
type TelemetryConfig struct {
	Enabled      *bool   `json:"enabled,omitempty"` // nil = enabled (events go to debug log)
	EventsPerSec float64 `json:"eventsPerSec,omitempty"`
	OTLPEndpoint string  `json:"otlpEndpoint,omitempty"`
	OTLPProtocol string  `json:"otlpProtocol,omitempty"` // http | grpc
	OTLPInsecure bool    `json:"otlpInsecure,omitempty"`
}

func (t TelemetryConfig) IsEnabled() bool { return t.Enabled == nil || *t.Enabled }
