package config

import (
	"os"
	"reflect"
	"testing"
)

func multiProfileConfig() *Config {
	cfg := Default()
	cfg.DefaultProfile = "prod"
	cfg.Profiles = map[string]*ProfileConfig{
		"_base": {
			TenantID:    "common-tenant",
			ClientID:    "common-client",
			APIEndpoint: "https://api.applicationinsights.io",
		},
		"prod": {
			Extends: "_base",
			AppID:   "app-prod",
		},
		"staging": {
			Extends:  "_base",
			AppID:    "app-staging",
			TenantID: "staging-tenant",
		},
	}
	return cfg
}

func TestResolveProfile_Extends(t *testing.T) {
	cfg := multiProfileConfig()

	p, err := ResolveProfile(cfg, "prod")
	if err != nil {
		t.Fatal(err)
	}
	if p.AppID != "app-prod" {
		t.Errorf("AppID = %q, want app-prod", p.AppID)
	}
	if p.TenantID != "common-tenant" {
		t.Errorf("TenantID = %q, want inherited common-tenant", p.TenantID)
	}

	p, err = ResolveProfile(cfg, "staging")
	if err != nil {
		t.Fatal(err)
	}
	if p.TenantID != "staging-tenant" {
		t.Errorf("child must override base: TenantID = %q", p.TenantID)
	}
	if p.ClientID != "common-client" {
		t.Errorf("ClientID = %q, want inherited", p.ClientID)
	}
}

func TestResolveProfile_Unknown(t *testing.T) {
	cfg := multiProfileConfig()

	_, err := ResolveProfile(cfg, "nope")
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
	pe, ok := err.(*ProfileError)
	if !ok {
		t.Fatalf("error type = %T, want *ProfileError", err)
	}
	want := []string{"prod", "staging"}
	if !reflect.DeepEqual(pe.Available, want) {
		t.Errorf("Available = %v, want %v (hidden bases excluded)", pe.Available, want)
	}
}

func TestResolveProfile_ExtendsCycle(t *testing.T) {
	cfg := Default()
	cfg.Profiles = map[string]*ProfileConfig{
		"a": {Extends: "b"},
		"b": {Extends: "a"},
	}
	if _, err := ResolveProfile(cfg, "a"); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestResolveProfile_FlatMode(t *testing.T) {
	cfg := Default()
	cfg.AppID = "flat-app"
	cfg.TenantID = "flat-tenant"

	p, err := ResolveProfile(cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "default" {
		t.Errorf("Name = %q, want default", p.Name)
	}
	if p.AppID != "flat-app" {
		t.Errorf("AppID = %q", p.AppID)
	}
	if p.APIEndpoint == "" {
		t.Error("API endpoint default missing")
	}
}

func TestActiveProfileName(t *testing.T) {
	cfg := multiProfileConfig()

	t.Setenv("BCTB_PROFILE", "")
	os.Unsetenv("BCTB_PROFILE")
	if got := ActiveProfileName(cfg); got != "prod" {
		t.Errorf("got %q, want defaultProfile prod", got)
	}

	t.Setenv("BCTB_PROFILE", "staging")
	if got := ActiveProfileName(cfg); got != "staging" {
		t.Errorf("got %q, want env staging", got)
	}

	t.Setenv("BCTB_PROFILE", "")
	os.Unsetenv("BCTB_PROFILE")
	cfg.DefaultProfile = ""
	if got := ActiveProfileName(cfg); got != "default" {
		t.Errorf("got %q, want literal default", got)
	}
}

func TestProfileNames_HidesBases(t *testing.T) {
	cfg := multiProfileConfig()
	got := ProfileNames(cfg)
	if !reflect.DeepEqual(got, []string{"prod", "staging"}) {
		t.Errorf("ProfileNames = %v", got)
	}

	flat := Default()
	if !reflect.DeepEqual(ProfileNames(flat), []string{"default"}) {
		t.Errorf("flat mode ProfileNames = %v", ProfileNames(flat))
	}
}
