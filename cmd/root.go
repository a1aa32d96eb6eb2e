package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bctelemetry/bctb/internal/config"
)

// Version is set at build time via -ldflags "-X github.com/bctelemetry/bctb/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "bctb",
	Short: "bctb — Business Central telemetry buddy",
	Long: `bctb explores Business Central telemetry in Application Insights and runs
LLM monitoring agents over it. The same KQL tool set serves agent runs and
MCP clients; agents keep persistent state under the workspace between runs.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
		loadDotEnv()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: .bctb-config.json in BCTB_WORKSPACE_PATH or the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(setupCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bctb %s\n", Version)
		},
	}
}

// setupLogging sends logs to stderr so stdout stays clean for MCP stdio
// framing and table output.
func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// loadDotEnv overlays a .env file next to the config, when one exists.
// Secrets stay in the process environment; nothing is copied into config.
func loadDotEnv() {
	path := filepath.Join(filepath.Dir(config.FindConfigPath(cfgFile)), ".env")
	if err := godotenv.Load(path); err == nil {
		slog.Debug("loaded environment file", "path", path)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.FindConfigPath(cfgFile))
}

// fail prints the user-visible failure line and exits non-zero.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "✗ %v\n", err)
	os.Exit(1)
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
