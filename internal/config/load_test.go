package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_JSON5Tolerance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	content := `{
	// profile for the dev tenant
	appId: "11111111-1111-1111-1111-111111111111",
	tenantId: "t1",
	clientId: "c1",
	cache: { ttlSeconds: 60, },
	agents: {
		llm: { provider: "anthropic", model: "claude-sonnet-4-5" },
		defaults: { maxToolCalls: 5, toolScope: "full" },
	},
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AppID != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("AppID = %q", cfg.AppID)
	}
	if cfg.Cache.TTLSeconds != 60 {
		t.Errorf("TTLSeconds = %d, want 60", cfg.Cache.TTLSeconds)
	}
	if cfg.Agents.LLM.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.Agents.LLM.Provider)
	}
	if cfg.Agents.Defaults.MaxToolCalls != 5 {
		t.Errorf("maxToolCalls = %d, want 5", cfg.Agents.Defaults.MaxToolCalls)
	}
	// Untouched defaults survive the overlay.
	if cfg.Agents.Defaults.ContextWindowRuns != 5 {
		t.Errorf("contextWindowRuns = %d, want default 5", cfg.Agents.Defaults.ContextWindowRuns)
	}
	if cfg.Agents.Defaults.ResolvedIssueTTLDays != 30 {
		t.Errorf("resolvedIssueTTLDays = %d, want default 30", cfg.Agents.Defaults.ResolvedIssueTTLDays)
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agents.Defaults.MaxToolCalls != 20 {
		t.Errorf("maxToolCalls = %d, want 20", cfg.Agents.Defaults.MaxToolCalls)
	}
	if cfg.Agents.Defaults.ToolScope != "read-only" {
		t.Errorf("toolScope = %q, want read-only", cfg.Agents.Defaults.ToolScope)
	}
}

func TestLoad_BadJSONFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(`{appId: `), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWorkspace(t *testing.T) {
	cfg := &Config{Path: "/tmp/ws/.bctb-config.json"}

	os.Unsetenv("BCTB_WORKSPACE_PATH")
	if got := cfg.Workspace(); got != "/tmp/ws" {
		t.Errorf("Workspace() = %q, want /tmp/ws", got)
	}

	t.Setenv("BCTB_WORKSPACE_PATH", "/srv/agents")
	if got := cfg.Workspace(); got != "/srv/agents" {
		t.Errorf("Workspace() = %q, want env override", got)
	}
}

func TestFindConfigPath(t *testing.T) {
	os.Unsetenv("BCTB_WORKSPACE_PATH")
	if got := FindConfigPath("/explicit.json"); got != "/explicit.json" {
		t.Errorf("explicit path ignored: %q", got)
	}
	t.Setenv("BCTB_WORKSPACE_PATH", "/srv/ws")
	if got := FindConfigPath(""); got != filepath.Join("/srv/ws", ConfigFileName) {
		t.Errorf("got %q", got)
	}
}

func TestEnvOverridesLLM(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://env.openai.azure.com")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "env-dep")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agents.LLM.Endpoint != "https://env.openai.azure.com" {
		t.Errorf("endpoint = %q", cfg.Agents.LLM.Endpoint)
	}
	if cfg.Agents.LLM.Deployment != "env-dep" {
		t.Errorf("deployment = %q", cfg.Agents.LLM.Deployment)
	}
}
