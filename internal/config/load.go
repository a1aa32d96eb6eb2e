package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"
)

// ConfigFileName is the workspace config file looked up next to the
// agents directory.
const ConfigFileName = ".bctb-config.json"

// Default returns a Config with the documented defaults.
func Default() *Config {
	return &Config{
		ProfileConfig: ProfileConfig{
			APIEndpoint:   "https://api.applicationinsights.io",
			QueriesFolder: "queries",
			Cache:         CacheConfig{TTLSeconds: 300},
		},
		Agents: AgentsConfig{
			LLM: LLMConfig{Provider: "azure-openai"},
			Defaults: AgentDefaults{
				MaxToolCalls:         20,
				MaxTokens:            4096,
				ContextWindowRuns:    5,
				ResolvedIssueTTLDays: 30,
				ToolScope:            "read-only",
			},
		},
		Telemetry: TelemetryConfig{EventsPerSec: 10},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields the defaults so env-only setups work.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.Path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// FindConfigPath resolves the config file location: explicit flag value,
// then BCTB_WORKSPACE_PATH, then the current directory.
func FindConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if ws := os.Getenv("BCTB_WORKSPACE_PATH"); ws != "" {
		return filepath.Join(ws, ConfigFileName)
	}
	return ConfigFileName
}

// Workspace returns the directory agent state lives under: the
// BCTB_WORKSPACE_PATH env var when set, else the config file's directory.
func (c *Config) Workspace() string {
	if ws := os.Getenv("BCTB_WORKSPACE_PATH"); ws != "" {
		return ws
	}
	if c.Path != "" {
		if dir := filepath.Dir(c.Path); dir != "" {
			return dir
		}
	}
	return "."
}

// applyEnvOverrides overlays reserved env vars onto the config.
// Env vars take precedence over file values. Secret-bearing vars
// (AZURE_OPENAI_KEY, ANTHROPIC_API_KEY, BCTB_ACCESS_TOKEN, ...) are NOT
// copied here; their consumers read them at the moment of use.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("AZURE_OPENAI_ENDPOINT", &c.Agents.LLM.Endpoint)
	envStr("AZURE_OPENAI_DEPLOYMENT", &c.Agents.LLM.Deployment)
	if c.Agents.LLM.Provider == "anthropic" {
		envStr("ANTHROPIC_MODEL", &c.Agents.LLM.Model)
	}
}

// Save writes the config as plain JSON. Used by the setup wizard;
// the core only reads.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}
