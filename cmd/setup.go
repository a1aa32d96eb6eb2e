package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/bctelemetry/bctb/internal/bootstrap"
	"github.com/bctelemetry/bctb/internal/config"
)

func setupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive configuration wizard",
		Long: `Write a .bctb-config.json by answering a few prompts. Secrets are never
written to the file: AZURE_OPENAI_KEY, ANTHROPIC_API_KEY, SMTP_PASSWORD and
friends stay in the environment (a .env next to the config works too).`,
		Run: func(cmd *cobra.Command, args []string) {
			runSetup(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

func runSetup(force bool) {
	path := config.FindConfigPath(cfgFile)
	if _, err := os.Stat(path); err == nil && !force {
		fail(fmt.Errorf("%s already exists (use --force to overwrite)", path))
	}

	var (
		appID      string
		tenantID   string
		clientID   string
		provider   = "azure-openai"
		endpoint   string
		deployment string
		model      string
		teamsURL   string
		confirmed  bool
	)

	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Application Insights app id").
				Description("The 'API Access' application id of the resource holding the BC telemetry.").
				Validate(required("app id")).
				Value(&appID),
			huh.NewInput().
				Title("AAD tenant id").
				Description("Tenant used for client-credentials auth. Leave empty when using BCTB_ACCESS_TOKEN.").
				Value(&tenantID),
			huh.NewInput().
				Title("AAD client id").
				Description("App registration id. The client secret is never stored here; set BCTB_ACCESS_TOKEN or add clientSecret to the file yourself.").
				Value(&clientID),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("LLM provider for agent runs").
				Options(
					huh.NewOption("Azure OpenAI", "azure-openai"),
					huh.NewOption("Anthropic", "anthropic"),
				).
				Value(&provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Azure OpenAI endpoint").
				Placeholder("https://myresource.openai.azure.com").
				Description("Key comes from AZURE_OPENAI_KEY at run time.").
				Value(&endpoint),
			huh.NewInput().
				Title("Deployment name").
				Value(&deployment),
		).WithHideFunc(func() bool { return provider != "azure-openai" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Anthropic model").
				Description("Leave empty to use the ANTHROPIC_MODEL environment variable. Key comes from ANTHROPIC_API_KEY.").
				Value(&model),
		).WithHideFunc(func() bool { return provider != "anthropic" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Teams incoming-webhook URL for alerts (optional)").
				Value(&teamsURL),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write the configuration?").
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		fail(err)
	}
	if !confirmed {
		fmt.Println("Aborted; nothing written.")
		return
	}

	cfg := config.Default()
	cfg.AppID = strings.TrimSpace(appID)
	cfg.TenantID = strings.TrimSpace(tenantID)
	cfg.ClientID = strings.TrimSpace(clientID)
	cfg.Agents.LLM.Provider = provider
	cfg.Agents.LLM.Endpoint = strings.TrimSpace(endpoint)
	cfg.Agents.LLM.Deployment = strings.TrimSpace(deployment)
	cfg.Agents.LLM.Model = strings.TrimSpace(model)
	if url := strings.TrimSpace(teamsURL); url != "" {
		cfg.Agents.Actions = map[string]config.ActionConfig{
			"teams-webhook": {URL: url},
		}
	}

	if err := config.Save(path, cfg); err != nil {
		fail(err)
	}
	fmt.Printf("✓ Wrote %s\n", path)

	queriesDir := filepath.Join(filepath.Dir(path), cfg.QueriesFolder)
	if seeded, err := bootstrap.EnsureStarterQueries(queriesDir); err == nil && len(seeded) > 0 {
		fmt.Printf("✓ Seeded %d starter queries under %s\n", len(seeded), queriesDir)
	}

	fmt.Println("  next: export the provider key (AZURE_OPENAI_KEY or ANTHROPIC_API_KEY),")
	fmt.Println("  then: bctb agent start \"<instruction>\" --name <name>")
}
