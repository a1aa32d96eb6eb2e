package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bctelemetry/bctb/internal/config"
)

func multiProfileConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DefaultProfile = "prod"
	cfg.Profiles = map[string]*config.ProfileConfig{
		"_base": {TenantID: "tenant-1", ClientID: "client-1"},
		"prod":  {Extends: "_base", AppID: "app-prod", Port: 3000},
		"test":  {Extends: "_base", AppID: "app-test"},
	}
	cfg.QueriesFolder = t.TempDir()

	// switch_profile stats the config file before switching.
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Path = path
	return cfg
}

func TestListProfiles(t *testing.T) {
	t.Setenv("BCTB_PROFILE", "")
	h, err := NewHandlers(multiProfileConfig(t), "", nil)
	if err != nil {
		t.Fatal(err)
	}

	out, err := h.Execute(context.Background(), "list_profiles", nil)
	if err != nil {
		t.Fatal(err)
	}
	m := asMap(t, out)
	if m["active"] != "prod" {
		t.Errorf("active = %v, want prod", m["active"])
	}
	entries := m["profiles"].([]profileEntry)
	if len(entries) != 2 {
		t.Fatalf("profiles = %d, want 2 (hidden base excluded)", len(entries))
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name, "_") {
			t.Errorf("hidden profile %q surfaced", e.Name)
		}
		if e.Name == "prod" && !e.Active {
			t.Error("prod not marked active")
		}
		if e.Name == "prod" && e.AppID != "app-prod" {
			t.Errorf("prod appId = %q", e.AppID)
		}
	}
}

func TestSwitchProfile_Success(t *testing.T) {
	t.Setenv("BCTB_PROFILE", "")
	h, err := NewHandlers(multiProfileConfig(t), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if h.Port() != 3000 {
		t.Fatalf("startup port = %d", h.Port())
	}
	before := h.services()

	out, err := h.Execute(context.Background(), "switch_profile", map[string]interface{}{"name": "test"})
	if err != nil {
		t.Fatal(err)
	}
	m := asMap(t, out)
	if m["success"] != true || m["previousProfile"] != "prod" {
		t.Errorf("response = %v", m)
	}
	current := m["currentProfile"].(map[string]interface{})
	if current["name"] != "test" || current["appId"] != "app-test" {
		t.Errorf("currentProfile = %v", current)
	}

	if h.ActiveProfile() != "test" {
		t.Errorf("active = %q after switch", h.ActiveProfile())
	}
	if h.services() == before {
		t.Error("services not replaced on switch")
	}
	// The bound transport port survives the switch even though the new
	// profile declares none.
	if h.Port() != 3000 {
		t.Errorf("port changed to %d on switch", h.Port())
	}
}

func TestSwitchProfile_UnknownListsAvailable(t *testing.T) {
	t.Setenv("BCTB_PROFILE", "")
	h, err := NewHandlers(multiProfileConfig(t), "", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = h.Execute(context.Background(), "switch_profile", map[string]interface{}{"name": "staging"})
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
	msg := err.Error()
	if !strings.Contains(msg, `"staging"`) || !strings.Contains(msg, "prod") || !strings.Contains(msg, "test") {
		t.Errorf("error must list available profiles: %q", msg)
	}
	if strings.Contains(msg, "_base") {
		t.Errorf("hidden base leaked into error: %q", msg)
	}
}

func TestSwitchProfile_SingleProfileMode(t *testing.T) {
	h := newTestHandlers(t, &fakeCluster{})
	_, err := h.Execute(context.Background(), "switch_profile", map[string]interface{}{"name": "anything"})
	if err == nil || !strings.Contains(err.Error(), "single-profile") {
		t.Fatalf("err = %v", err)
	}
}

func TestSwitchProfile_MissingConfigFile(t *testing.T) {
	t.Setenv("BCTB_PROFILE", "")
	cfg := multiProfileConfig(t)
	os.Remove(cfg.Path)

	h, err := NewHandlers(cfg, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = h.Execute(context.Background(), "switch_profile", map[string]interface{}{"name": "test"})
	if err == nil || !strings.Contains(err.Error(), "no configuration file") {
		t.Fatalf("err = %v", err)
	}
}
