// Package tools dispatches the agent-facing tool calls. A Handlers value
// owns the active profile's services (auth, query client, cache, saved
// queries, external references) and swaps them wholesale on switch_profile.
package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bctelemetry/bctb/internal/auth"
	"github.com/bctelemetry/bctb/internal/cache"
	"github.com/bctelemetry/bctb/internal/config"
	"github.com/bctelemetry/bctb/internal/kusto"
	"github.com/bctelemetry/bctb/internal/queries"
	"github.com/bctelemetry/bctb/internal/telemetry"
)

// services bundles everything derived from one resolved profile. The
// bundle is replaced as a unit so concurrent tool calls always see a
// consistent profile.
type services struct {
	profile  *config.Profile
	auth     *auth.Provider
	kusto    *kusto.Client
	cache    *cache.Cache
	saved    *queries.Store
	external *queries.Fetcher
}

// Handlers executes tools over the active profile.
type Handlers struct {
	mu   sync.Mutex
	cfg  *config.Config
	svc  *services
	sink *telemetry.Sink

	// port is the transport port bound at startup; switch_profile must
	// not change it.
	port int

	authOpts []auth.Option // test hook for the token endpoint
}

// Option configures a Handlers at construction.
type Option func(*Handlers)

// WithAuthOptions forwards options to every auth provider the handlers
// build, including those built on profile switches.
func WithAuthOptions(opts ...auth.Option) Option {
	return func(h *Handlers) { h.authOpts = opts }
}

// NewHandlers resolves the named profile (empty means the configured
// default) and builds its service set.
func NewHandlers(cfg *config.Config, profileName string, sink *telemetry.Sink, opts ...Option) (*Handlers, error) {
	h := &Handlers{cfg: cfg, sink: sink}
	for _, o := range opts {
		o(h)
	}

	profile, err := config.ResolveProfile(cfg, profileName)
	if err != nil {
		return nil, err
	}
	h.svc = h.buildServices(profile)
	h.port = profile.Port
	return h, nil
}

func (h *Handlers) buildServices(profile *config.Profile) *services {
	tokens := auth.New(profile, h.authOpts...)
	return &services{
		profile:  profile,
		auth:     tokens,
		kusto:    kusto.NewClient(profile.AppID, profile.APIEndpoint, tokens),
		cache:    cache.New(profile.Cache.TTLSeconds, profile.Cache.IsEnabled()),
		saved:    queries.NewStore(h.queriesDir(profile)),
		external: queries.NewFetcher(profile.References),
	}
}

func (h *Handlers) queriesDir(profile *config.Profile) string {
	if filepath.IsAbs(profile.QueriesFolder) {
		return profile.QueriesFolder
	}
	return filepath.Join(h.cfg.Workspace(), profile.QueriesFolder)
}

// services returns the current bundle. Callers hold it for the duration
// of one tool call; a concurrent profile switch does not affect calls
// already in flight.
func (h *Handlers) services() *services {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.svc
}

// ActiveProfile reports the current profile name.
func (h *Handlers) ActiveProfile() string {
	return h.services().profile.Name
}

// Port reports the transport port fixed at startup.
func (h *Handlers) Port() int { return h.port }

// QueryStore exposes the saved-query store for the folder watcher.
func (h *Handlers) QueryStore() *queries.Store {
	return h.services().saved
}

// Definitions returns every tool this handler set can execute. The MCP
// server registers the full list; the agent runtime filters it by scope.
func (h *Handlers) Definitions() []Definition {
	return Definitions()
}

// Execute runs one tool call and emits exactly one ToolCompleted or
// ToolFailed event with the call duration and the hashed profile name.
// Failures additionally emit an exception event. Emission is rate-limited
// and never blocks or fails the call.
func (h *Handlers) Execute(ctx context.Context, toolName string, args map[string]interface{}) (interface{}, error) {
	start := time.Now()
	profileHash := telemetry.ProfileHash(h.ActiveProfile())

	out, err := h.dispatch(ctx, toolName, args)

	ev := telemetry.Event{
		Name:        telemetry.EventToolCompleted,
		Tool:        toolName,
		DurationMs:  time.Since(start).Milliseconds(),
		ProfileHash: profileHash,
	}
	if err != nil {
		ev.Name = telemetry.EventToolFailed
		ev.Error = err.Error()
	}
	h.sink.Emit(ctx, ev)
	if err != nil {
		h.sink.EmitException(ctx, profileHash, err)
	}
	return out, err
}

func (h *Handlers) dispatch(ctx context.Context, toolName string, args map[string]interface{}) (interface{}, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	svc := h.services()

	switch toolName {
	case "get_event_catalog":
		return h.eventCatalog(ctx, svc, args)
	case "get_event_field_samples":
		return h.eventFieldSamples(ctx, svc, args)
	case "get_event_schema":
		return h.eventSchema(ctx, svc, args)
	case "get_tenant_mapping":
		return h.tenantMapping(ctx, svc, args)
	case "query_telemetry":
		return h.queryTelemetry(ctx, svc, args)
	case "get_saved_queries":
		return h.savedQueries(svc, args)
	case "search_queries":
		return h.searchQueries(svc, args)
	case "save_query":
		return h.saveQuery(svc, args)
	case "get_categories":
		return h.categories(svc)
	case "get_recommendations":
		return h.recommendations(args)
	case "get_external_queries":
		return h.externalQueries(ctx, svc)
	case "get_cache_stats":
		return svc.cache.Stats(), nil
	case "clear_cache":
		return map[string]interface{}{"cleared": svc.cache.Clear()}, nil
	case "cleanup_cache":
		return map[string]interface{}{"removed": svc.cache.Cleanup()}, nil
	case "get_auth_status":
		return svc.auth.Status(ctx), nil
	case "list_profiles":
		return h.listProfiles(svc), nil
	case "switch_profile":
		return h.switchProfile(args)
	default:
		return nil, fmt.Errorf("unknown tool %q", toolName)
	}
}

// --- argument decoding (tool args arrive as decoded JSON) ---

func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}

func argBool(args map[string]interface{}, key string) bool {
	b, _ := args[key].(bool)
	return b
}
