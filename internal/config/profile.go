package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Profile is a fully resolved connection bundle: extends chains flattened,
// name attached.
type Profile struct {
	Name string
	ProfileConfig
}

// ProfileError reports a profile-resolution failure. Available lists the
// selectable (non-hidden) profile names when that helps the caller.
type ProfileError struct {
	Message   string
	Available []string
}

func (e *ProfileError) Error() string {
	if len(e.Available) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (available: %s)", e.Message, strings.Join(e.Available, ", "))
}

// ActiveProfileName picks the initial profile: BCTB_PROFILE env var if set,
// else the config's defaultProfile, else "default".
func ActiveProfileName(cfg *Config) string {
	if v := os.Getenv("BCTB_PROFILE"); v != "" {
		return v
	}
	if cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return "default"
}

// ProfileNames returns the selectable profile names, sorted. Names starting
// with "_" are inheritance bases and never surfaced. A flat single-profile
// config reports just "default".
func ProfileNames(cfg *Config) []string {
	if len(cfg.Profiles) == 0 {
		return []string{"default"}
	}
	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		if strings.HasPrefix(name, "_") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveProfile flattens the named profile. In flat mode the top-level
// connection fields are the profile regardless of name. In map mode the
// extends chain is resolved depth-first with the child overriding the base.
func ResolveProfile(cfg *Config, name string) (*Profile, error) {
	if name == "" {
		name = ActiveProfileName(cfg)
	}

	if len(cfg.Profiles) == 0 {
		pc := cfg.ProfileConfig
		applyProfileDefaults(&pc)
		return &Profile{Name: name, ProfileConfig: pc}, nil
	}

	pc, err := resolveChain(cfg, name, map[string]bool{})
	if err != nil {
		return nil, err
	}

	// Top-level fields act as the base layer under every named profile.
	merged := cfg.ProfileConfig
	overlayProfile(&merged, pc)
	applyProfileDefaults(&merged)
	return &Profile{Name: name, ProfileConfig: merged}, nil
}

func resolveChain(cfg *Config, name string, visited map[string]bool) (*ProfileConfig, error) {
	pc, ok := cfg.Profiles[name]
	if !ok {
		return nil, &ProfileError{
			Message:   fmt.Sprintf("unknown profile %q", name),
			Available: ProfileNames(cfg),
		}
	}
	if visited[name] {
		return nil, &ProfileError{Message: fmt.Sprintf("profile %q: extends cycle", name)}
	}
	visited[name] = true

	merged := ProfileConfig{}
	if pc.Extends != "" {
		base, err := resolveChain(cfg, pc.Extends, visited)
		if err != nil {
			return nil, err
		}
		merged = *base
	}
	overlayProfile(&merged, pc)
	return &merged, nil
}

// overlayProfile writes src's set fields over dst.
func overlayProfile(dst, src *ProfileConfig) {
	if src.AppID != "" {
		dst.AppID = src.AppID
	}
	if src.TenantID != "" {
		dst.TenantID = src.TenantID
	}
	if src.ClientID != "" {
		dst.ClientID = src.ClientID
	}
	if src.ClientSecret != "" {
		dst.ClientSecret = src.ClientSecret
	}
	if src.APIEndpoint != "" {
		dst.APIEndpoint = src.APIEndpoint
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.TTLSeconds != 0 {
		dst.Cache.TTLSeconds = src.Cache.TTLSeconds
	}
	if src.Sanitize.RemovePII {
		dst.Sanitize.RemovePII = true
	}
	if src.QueriesFolder != "" {
		dst.QueriesFolder = src.QueriesFolder
	}
	if len(src.References) > 0 {
		dst.References = src.References
	}
}

func applyProfileDefaults(pc *ProfileConfig) {
	if pc.APIEndpoint == "" {
		pc.APIEndpoint = "https://api.applicationinsights.io"
	}
	if pc.QueriesFolder == "" {
		pc.QueriesFolder = "queries"
	}
	if pc.Cache.TTLSeconds == 0 {
		pc.Cache.TTLSeconds = 300
	}
}
