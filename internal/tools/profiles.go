package tools

import (
	"fmt"
	"os"

	"github.com/bctelemetry/bctb/internal/config"
)

type profileEntry struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
	AppID  string `json:"appId,omitempty"`
}

// listProfiles surfaces the selectable profiles. Hidden bases (leading
// underscore) never appear.
func (h *Handlers) listProfiles(svc *services) interface{} {
	active := svc.profile.Name
	names := config.ProfileNames(h.cfg)

	entries := make([]profileEntry, 0, len(names))
	for _, name := range names {
		e := profileEntry{Name: name, Active: name == active}
		if resolved, err := config.ResolveProfile(h.cfg, name); err == nil {
			e.AppID = resolved.AppID
		}
		entries = append(entries, e)
	}
	return map[string]interface{}{
		"active":   active,
		"profiles": entries,
	}
}

// switchProfile re-resolves the named profile and replaces every owned
// service. The transport port bound at startup is untouched.
func (h *Handlers) switchProfile(args map[string]interface{}) (interface{}, error) {
	name := argString(args, "name")
	if name == "" {
		return nil, &config.ProfileError{
			Message:   "profile name is required",
			Available: config.ProfileNames(h.cfg),
		}
	}

	if h.cfg.Path != "" {
		if _, err := os.Stat(h.cfg.Path); err != nil {
			return nil, &config.ProfileError{
				Message: fmt.Sprintf("no configuration file found at %s", h.cfg.Path),
			}
		}
	}
	if len(h.cfg.Profiles) == 0 {
		return nil, &config.ProfileError{
			Message: "no profiles defined; the configuration is in single-profile mode",
		}
	}

	profile, err := config.ResolveProfile(h.cfg, name)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	previous := h.svc.profile.Name
	h.svc = h.buildServices(profile)
	h.mu.Unlock()

	return map[string]interface{}{
		"success":         true,
		"previousProfile": previous,
		"currentProfile": map[string]interface{}{
			"name":        profile.Name,
			"appId":       profile.AppID,
			"apiEndpoint": profile.APIEndpoint,
		},
	}, nil
}
