package tools

import "github.com/bctelemetry/bctb/internal/providers"

// Annotations carry the MCP behavior hints for one tool.
type Annotations struct {
	ReadOnly    bool
	Destructive bool
	Idempotent  bool
	OpenWorld   bool
}

// Definition describes one tool: name, description, JSON schema for the
// arguments, and behavior hints. The same definitions feed both the LLM
// request and the MCP server registration.
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Annotations Annotations
}

// FilterByScope restricts the tool surface. Scope "read-only" removes the
// mutating tools (save_query, switch_profile); anything else passes the
// list through unchanged.
func FilterByScope(defs []Definition, scope string) []Definition {
	if scope != "read-only" {
		return defs
	}
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if d.Name == "save_query" || d.Name == "switch_profile" {
			continue
		}
		out = append(out, d)
	}
	return out
}

// ProviderTools converts definitions into the shape LLM providers send on
// the wire.
func ProviderTools(defs []Definition) []providers.ToolDefinition {
	out := make([]providers.ToolDefinition, len(defs))
	for i, d := range defs {
		out[i] = providers.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		}
	}
	return out
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// Definitions returns all tools in their canonical order.
func Definitions() []Definition {
	readOnly := Annotations{ReadOnly: true, Idempotent: true}
	remote := Annotations{ReadOnly: true, Idempotent: true, OpenWorld: true}

	return []Definition{
		{
			Name: "get_event_catalog",
			Description: "Discover which Business Central telemetry events exist in the environment. " +
				"Returns event IDs seen in the last N days with occurrence counts, a health status " +
				"(success/error/too slow/unknown), and a sample message. Start here before writing queries.",
			InputSchema: objectSchema(map[string]interface{}{
				"days": map[string]interface{}{
					"type":        "number",
					"description": "Lookback window in days. Default: 10.",
				},
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Filter by health status.",
					"enum":        []string{"all", "success", "error", "too slow", "unknown"},
				},
				"includeCommonFields": map[string]interface{}{
					"type":        "boolean",
					"description": "Also analyze which customDimensions fields the top events share, bucketed by prevalence.",
				},
			}),
			Annotations: remote,
		},
		{
			Name: "get_event_field_samples",
			Description: "Sample recent occurrences of one event ID and report its customDimensions fields " +
				"with detected data types (including timespans) and real sample values, plus an example KQL query. " +
				"Use after get_event_catalog to learn an event's shape.",
			InputSchema: objectSchema(map[string]interface{}{
				"eventId": map[string]interface{}{
					"type":        "string",
					"description": "Event ID to sample, e.g. 'RT0005'.",
				},
				"days": map[string]interface{}{
					"type":        "number",
					"description": "Lookback window in days. Default: 10.",
				},
				"sampleSize": map[string]interface{}{
					"type":        "number",
					"description": "Number of occurrences to sample (1-100). Default: 25.",
				},
			}, "eventId"),
			Annotations: remote,
		},
		{
			Name: "get_event_schema",
			Description: "Compact schema for one event ID: each customDimensions field with up to 5 example values. " +
				"Lighter alternative to get_event_field_samples.",
			InputSchema: objectSchema(map[string]interface{}{
				"eventId": map[string]interface{}{
					"type":        "string",
					"description": "Event ID to inspect, e.g. 'RT0005'.",
				},
				"days": map[string]interface{}{
					"type":        "number",
					"description": "Lookback window in days. Default: 10.",
				},
			}, "eventId"),
			Annotations: remote,
		},
		{
			Name: "get_tenant_mapping",
			Description: "Map company names to AAD tenant IDs with occurrence counts, so findings can name " +
				"customers instead of GUIDs. Optional substring filter over both columns.",
			InputSchema: objectSchema(map[string]interface{}{
				"filter": map[string]interface{}{
					"type":        "string",
					"description": "Case-insensitive substring to match against company name or tenant ID.",
				},
				"days": map[string]interface{}{
					"type":        "number",
					"description": "Lookback window in days. Default: 30.",
				},
			}),
			Annotations: remote,
		},
		{
			Name: "query_telemetry",
			Description: "Execute a KQL query against the active profile's Application Insights resource. " +
				"Returns columns, rows, and a summary. Results are cached; repeated identical queries are served " +
				"from cache with cached=true.",
			InputSchema: objectSchema(map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "KQL query text. Always include a time filter such as 'where timestamp > ago(1d)'.",
				},
			}, "query"),
			Annotations: remote,
		},
		{
			Name:        "get_saved_queries",
			Description: "List the workspace's saved KQL queries, optionally restricted to one category.",
			InputSchema: objectSchema(map[string]interface{}{
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Category (subfolder) to list. Omit for all.",
				},
			}),
			Annotations: readOnly,
		},
		{
			Name:        "search_queries",
			Description: "Search saved queries by substring across name, description, and query text.",
			InputSchema: objectSchema(map[string]interface{}{
				"term": map[string]interface{}{
					"type":        "string",
					"description": "Search term.",
				},
			}, "term"),
			Annotations: readOnly,
		},
		{
			Name:        "save_query",
			Description: "Save a KQL query to the workspace queries folder for reuse.",
			InputSchema: objectSchema(map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Query name; becomes the file name.",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "KQL query text.",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Category (subfolder). Default: 'general'.",
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "One-line description stored with the query.",
				},
			}, "name", "query"),
			Annotations: Annotations{Idempotent: true},
		},
		{
			Name:        "get_categories",
			Description: "List saved-query categories with the number of queries in each.",
			InputSchema: objectSchema(map[string]interface{}{}),
			Annotations: readOnly,
		},
		{
			Name: "get_recommendations",
			Description: "Static review of a KQL query: flags un-piped where clauses, project *, missing ago() " +
				"time filters, and oversized result sets.",
			InputSchema: objectSchema(map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "KQL query text to review.",
				},
				"resultRows": map[string]interface{}{
					"type":        "number",
					"description": "Row count of the query's last execution, if known.",
				},
			}, "query"),
			Annotations: readOnly,
		},
		{
			Name: "get_external_queries",
			Description: "Fetch KQL samples from the configured external reference sources (for example the " +
				"BCTech telemetry samples). Sources are fetched concurrently; per-source failures are reported inline.",
			InputSchema: objectSchema(map[string]interface{}{}),
			Annotations: remote,
		},
		{
			Name:        "get_cache_stats",
			Description: "Report query-cache statistics: entries, hits, misses, TTL.",
			InputSchema: objectSchema(map[string]interface{}{}),
			Annotations: readOnly,
		},
		{
			Name:        "clear_cache",
			Description: "Drop all cached query results.",
			InputSchema: objectSchema(map[string]interface{}{}),
			Annotations: Annotations{Idempotent: true},
		},
		{
			Name:        "cleanup_cache",
			Description: "Drop expired cache entries only.",
			InputSchema: objectSchema(map[string]interface{}{}),
			Annotations: Annotations{Idempotent: true},
		},
		{
			Name: "get_auth_status",
			Description: "Report authentication state for the active profile. Never fails: incomplete " +
				"configuration is returned as {authenticated:false, configurationIssues:[...]}.",
			InputSchema: objectSchema(map[string]interface{}{}),
			Annotations: readOnly,
		},
		{
			Name:        "list_profiles",
			Description: "List the configured connection profiles and mark the active one.",
			InputSchema: objectSchema(map[string]interface{}{}),
			Annotations: readOnly,
		},
		{
			Name: "switch_profile",
			Description: "Switch the active connection profile. Replaces the telemetry connection, cache, and " +
				"saved-query folder; the transport port is unchanged.",
			InputSchema: objectSchema(map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Profile name to activate.",
				},
			}, "name"),
			Annotations: Annotations{Idempotent: true},
		},
	}
}
