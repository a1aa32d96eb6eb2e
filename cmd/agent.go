package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/adhocore/gronx"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/bctelemetry/bctb/internal/actions"
	"github.com/bctelemetry/bctb/internal/agent"
	"github.com/bctelemetry/bctb/internal/config"
	"github.com/bctelemetry/bctb/internal/providers"
	"github.com/bctelemetry/bctb/internal/store"
	"github.com/bctelemetry/bctb/internal/telemetry"
	"github.com/bctelemetry/bctb/internal/tools"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Create and run telemetry monitoring agents",
	}
	cmd.AddCommand(agentStartCmd())
	cmd.AddCommand(agentRunCmd())
	cmd.AddCommand(agentRunAllCmd())
	cmd.AddCommand(agentListCmd())
	cmd.AddCommand(agentHistoryCmd())
	cmd.AddCommand(agentPauseCmd())
	cmd.AddCommand(agentResumeCmd())
	cmd.AddCommand(agentPruneCmd())
	return cmd
}

func agentStartCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "start <instruction>",
		Short: "Create a monitoring agent from an instruction",
		Long: `Create an agent: writes instruction.md and a fresh state.json under
<workspace>/agents/<name>/. The instruction is the natural-language
monitoring brief the agent follows on every run.

Examples:
  bctb agent start "Watch RT0010 deadlocks and alert Teams on spikes" --name sql-watch
  bctb agent start "$(cat briefs/sync-errors.md)" --name sync-errors`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runAgentStart(name, args[0])
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "agent name (required)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runAgentStart(name, instruction string) {
	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}
	if err := store.NewManager(cfg.Workspace()).CreateAgent(name, instruction); err != nil {
		fail(err)
	}
	fmt.Printf("✓ Agent '%s' created\n", name)
	fmt.Printf("  run it with: bctb agent run %s\n", name)
}

func agentRunCmd() *cobra.Command {
	var (
		profile  string
		once     bool
		cronExpr string
	)

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run one agent once, or on a cron schedule",
		Long: `Run an agent: the LLM investigates telemetry with the KQL tools, compares
against the agent's previous state, and may dispatch alert actions. State
and a run log are written only when the run completes.

Examples:
  bctb agent run sql-watch                       # single run
  bctb agent run sql-watch --cron "*/15 * * * *" # every 15 minutes until interrupted
  bctb agent run sql-watch -p production`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runAgentRun(args[0], profile, once, cronExpr)
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "connection profile (default: BCTB_PROFILE or the config default)")
	cmd.Flags().BoolVar(&once, "once", false, "run exactly once (the default unless --cron is set)")
	cmd.Flags().StringVar(&cronExpr, "cron", "", `cron schedule, e.g. "*/15 * * * *"; keeps watching until interrupted`)

	return cmd
}

func runAgentRun(name, profile string, once bool, cronExpr string) {
	if once && cronExpr != "" {
		fail(errors.New("--once and --cron are mutually exclusive"))
	}
	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}
	runner, sink, err := buildRunner(cfg, profile)
	if err != nil {
		fail(err)
	}
	defer sink.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cronExpr == "" {
		if err := runAndReport(ctx, runner, name); err != nil {
			fail(err)
		}
		return
	}
	err = watchCron(ctx, cronExpr, func(ctx context.Context) {
		if err := runAndReport(ctx, runner, name); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		}
	})
	if err != nil {
		fail(err)
	}
}

func agentRunAllCmd() *cobra.Command {
	var (
		profile  string
		once     bool
		cronExpr string
	)

	cmd := &cobra.Command{
		Use:   "run-all",
		Short: "Run every active agent, one after another",
		Long: `Run all agents sequentially in name order. Paused agents are skipped.
A failed agent does not stop the others; the command exits 1 if any
agent failed.`,
		Run: func(cmd *cobra.Command, args []string) {
			runAgentRunAll(profile, once, cronExpr)
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "connection profile (default: BCTB_PROFILE or the config default)")
	cmd.Flags().BoolVar(&once, "once", false, "run the set exactly once (the default unless --cron is set)")
	cmd.Flags().StringVar(&cronExpr, "cron", "", `cron schedule, e.g. "0 * * * *"; keeps watching until interrupted`)

	return cmd
}

func runAgentRunAll(profile string, once bool, cronExpr string) {
	if once && cronExpr != "" {
		fail(errors.New("--once and --cron are mutually exclusive"))
	}
	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}
	runner, sink, err := buildRunner(cfg, profile)
	if err != nil {
		fail(err)
	}
	defer sink.Close(context.Background())

	manager := store.NewManager(cfg.Workspace())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cronExpr == "" {
		if failed := runAll(ctx, runner, manager); failed > 0 {
			os.Exit(1)
		}
		return
	}
	err = watchCron(ctx, cronExpr, func(ctx context.Context) {
		runAll(ctx, runner, manager)
	})
	if err != nil {
		fail(err)
	}
}

// runAll runs every active agent in name order and prints a tally.
// Returns the number of failed runs.
func runAll(ctx context.Context, runner *agent.Runner, manager *store.Manager) int {
	agents, err := manager.ListAgents()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		return 1
	}
	if len(agents) == 0 {
		fmt.Println("No agents found. Create one with: bctb agent start <instruction> --name <name>")
		return 0
	}

	var succeeded, failed, paused int
	for _, a := range agents {
		if ctx.Err() != nil {
			break
		}
		if a.Status == store.StatusPaused {
			fmt.Printf("- %s: paused, skipped\n", a.Name)
			paused++
			continue
		}
		if err := runAndReport(ctx, runner, a.Name); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", a.Name, err)
			failed++
			continue
		}
		succeeded++
	}

	fmt.Printf("%d succeeded, %d failed, %d paused\n", succeeded, failed, paused)
	return failed
}

// runAndReport performs one run and prints the success lines. The caller
// decides how a failure is reported.
func runAndReport(ctx context.Context, runner *agent.Runner, name string) error {
	log, err := runner.Run(ctx, name)
	if err != nil {
		return err
	}
	elapsed := (time.Duration(log.DurationMs) * time.Millisecond).Round(100 * time.Millisecond)
	fmt.Printf("✓ %s run #%d: %d tool calls, %d actions, %s\n",
		name, log.RunID, len(log.ToolCalls), len(log.Actions), elapsed)
	if log.Assessment != "" {
		fmt.Printf("  %s\n", firstLine(log.Assessment))
	}
	return nil
}

// watchCron invokes tick at every minute boundary where expr is due.
// Returns nil once the context is cancelled (operator interrupt); the
// core runtime stays schedule-free, this loop is the only scheduler.
func watchCron(ctx context.Context, expr string, tick func(context.Context)) error {
	gron := gronx.New()
	if !gron.IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q", expr)
	}
	slog.Info("watch mode", "cron", expr)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			due, err := gron.IsDue(expr, now)
			if err != nil {
				return err
			}
			if due {
				tick(ctx)
			}
		}
	}
}

func agentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents with status and run counts",
		Run: func(cmd *cobra.Command, args []string) {
			runAgentList()
		},
	}
}

func runAgentList() {
	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}
	agents, err := store.NewManager(cfg.Workspace()).ListAgents()
	if err != nil {
		fail(err)
	}
	if len(agents) == 0 {
		fmt.Println("No agents found. Create one with: bctb agent start <instruction> --name <name>")
		return
	}

	rows := make([][]string, 0, len(agents))
	for _, a := range agents {
		lastRun := a.LastRun
		if lastRun == "" {
			lastRun = "never"
		}
		rows = append(rows, []string{
			a.Name,
			a.Status,
			strconv.Itoa(a.RunCount),
			lastRun,
			strconv.Itoa(a.ActiveIssueCount),
		})
	}
	printTable([]string{"NAME", "STATUS", "RUNS", "LAST RUN", "ISSUES"}, rows)
}

func agentHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <name>",
		Short: "Show an agent's recent runs, newest first",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runAgentHistory(args[0], limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "number of runs to show (0 = all)")

	return cmd
}

func runAgentHistory(name string, limit int) {
	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}
	logs, err := store.NewManager(cfg.Workspace()).RunHistory(name, limit)
	if err != nil {
		fail(err)
	}
	if len(logs) == 0 {
		fmt.Printf("No runs recorded for '%s'.\n", name)
		return
	}

	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, []string{
			fmt.Sprintf("#%d", l.RunID),
			l.Timestamp,
			strconv.Itoa(len(l.ToolCalls)),
			strconv.Itoa(len(l.Actions)),
			fmt.Sprintf("%.1fs", float64(l.DurationMs)/1000),
			runewidth.Truncate(firstLine(l.Assessment), 60, "…"),
		})
	}
	printTable([]string{"RUN", "TIMESTAMP", "TOOLS", "ACTIONS", "DURATION", "ASSESSMENT"}, rows)

	// Oldest retrieved log starting past run 1 means prune removed history.
	oldest := logs[len(logs)-1]
	if (limit <= 0 || len(logs) < limit) && oldest.RunID > 1 {
		fmt.Printf("(runs #1-#%d pruned)\n", oldest.RunID-1)
	}
}

func agentPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <name>",
		Short: "Pause an agent so run attempts are refused",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			setAgentStatus(args[0], store.StatusPaused)
		},
	}
}

func agentResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <name>",
		Short: "Resume a paused agent",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			setAgentStatus(args[0], store.StatusActive)
		},
	}
}

func setAgentStatus(name, status string) {
	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}
	if err := store.NewManager(cfg.Workspace()).SetAgentStatus(name, status); err != nil {
		fail(err)
	}
	fmt.Printf("✓ Agent '%s' is now %s\n", name, status)
}

func agentPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune <name>",
		Short: "Delete old run logs, keeping the most recent",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runAgentPrune(args[0], keep)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 50, "how many recent run-log pairs to keep")

	return cmd
}

func runAgentPrune(name string, keep int) {
	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}
	removed, err := store.NewManager(cfg.Workspace()).PruneRuns(name, keep)
	if err != nil {
		fail(err)
	}
	fmt.Printf("✓ Removed %d run-log pairs\n", removed)
}

// buildRunner assembles the run pipeline: telemetry sink, per-profile tool
// handlers, LLM provider, and action dispatcher.
func buildRunner(cfg *config.Config, profileName string) (*agent.Runner, *telemetry.Sink, error) {
	sink := telemetry.NewSink(cfg.Telemetry)
	handlers, err := tools.NewHandlers(cfg, profileName, sink)
	if err != nil {
		return nil, nil, err
	}
	provider, err := providers.New(providers.Settings{
		Provider:   cfg.Agents.LLM.Provider,
		Endpoint:   cfg.Agents.LLM.Endpoint,
		Deployment: cfg.Agents.LLM.Deployment,
		Model:      cfg.Agents.LLM.Model,
		APIVersion: cfg.Agents.LLM.APIVersion,
	})
	if err != nil {
		return nil, nil, err
	}
	runner := agent.NewRunner(agent.RunnerConfig{
		Manager:    store.NewManager(cfg.Workspace()),
		Provider:   provider,
		Handlers:   handlers,
		Dispatcher: actions.New(cfg.Agents.Actions),
		Defaults:   cfg.Agents.Defaults,
	})
	return runner, sink, nil
}

// printTable renders columns aligned by display width; summaries may carry
// emoji and wide runes that defeat %-Ns padding.
func printTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = pad(cell, widths[i])
		}
		fmt.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
	}
	printRow(headers)
	for _, row := range rows {
		printRow(row)
	}
}

func pad(s string, w int) string {
	if gap := w - runewidth.StringWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
