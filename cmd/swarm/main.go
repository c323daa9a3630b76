package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codeswarm/internal/agent"
	"codeswarm/internal/config"
	"codeswarm/internal/logging"
	"codeswarm/internal/oracle"
	"codeswarm/internal/orchestrator"
	"codeswarm/internal/ratelimit"
	"codeswarm/internal/sandbox"
	"codeswarm/internal/tools"
)

var (
	// Global flags
	configPath    string
	apiKey        string
	model         string
	maxIterations int
	parallelism   int
	sourceGlob    string
	debugMode     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "swarm",
	Short: "codeswarm - self-healing refactoring pipeline",
	Long: `codeswarm coordinates three cooperating roles over a body of source code:

  1. Auditor: analyzes each file and reports issues
  2. Fixer:   proposes and applies targeted fixes
  3. Judge:   validates the result against tests and static analysis

The fix/judge loop repeats until the judge approves or the iteration
budget is exhausted. All file access is confined to the target
directory, and every oracle exchange is recorded in an audit log.`,
	SilenceUsage: true,
}

// runCmd drives the full pipeline over a target directory
var runCmd = &cobra.Command{
	Use:   "run [target-dir]",
	Short: "Audit, fix and judge every source file in a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipeline,
}

// statsCmd summarizes the experiment audit log
var statsCmd = &cobra.Command{
	Use:   "stats [target-dir]",
	Short: "Summarize the experiment audit log of a previous run",
	Args:  cobra.ExactArgs(1),
	RunE:  showStats,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "swarm.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (falls back to GEMINI_API_KEY / GOOGLE_API_KEY)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging categories")

	runCmd.Flags().StringVar(&model, "model", "", "oracle model name")
	runCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "fix/judge loop budget per file")
	runCmd.Flags().IntVar(&parallelism, "parallelism", 0, "concurrent file workflows")
	runCmd.Flags().StringVar(&sourceGlob, "glob", "", "source file glob, e.g. '*.py'")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges file, environment and flag configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if model != "" {
		cfg.LLM.Model = model
	}
	if maxIterations > 0 {
		cfg.Workflow.MaxIterations = maxIterations
	}
	if parallelism > 0 {
		cfg.Workflow.Parallelism = parallelism
	}
	if sourceGlob != "" {
		cfg.Workflow.SourceGlob = sourceGlob
	}
	if debugMode {
		cfg.Logging.DebugMode = true
	}
	return cfg, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	target := args[0]
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("target directory %s does not exist or is not a directory", target)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no API key: set GEMINI_API_KEY, GOOGLE_API_KEY or --api-key")
	}

	root := cfg.Sandbox.Root
	if root == "" {
		root = target
	}

	if err := logging.Initialize(root, logging.Settings{
		DebugMode:  cfg.Logging.DebugMode,
		Categories: cfg.Logging.Categories,
		Level:      cfg.Logging.Level,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Orchestrator("shutdown signal received")
		cancel()
	}()

	box, err := sandbox.NewGuard(root)
	if err != nil {
		return fmt.Errorf("failed to set up sandbox: %w", err)
	}

	expLog, err := logging.NewExperimentLog(experimentLogPath(root, cfg))
	if err != nil {
		return fmt.Errorf("failed to open experiment log: %w", err)
	}

	client, err := oracle.NewGeminiClient(ctx, oracle.GeminiConfig{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}

	limiter := ratelimit.New(config.RateIntervalFor(cfg.LLM.Model))
	caller := oracle.NewCaller(client, limiter, expLog, cfg.LLM.MaxRetries)

	analyzer := tools.NewAnalyzer(cfg.Tools.AnalyzerCmd, cfg.Tools.AnalyzerTimeout)
	tester := tools.NewTestRunner(cfg.Tools.TestCmd, cfg.Tools.TestTimeout)

	orch := orchestrator.New(
		agent.NewAuditor(caller, box, analyzer),
		agent.NewFixer(caller, box, cfg.Sandbox.Backups),
		agent.NewJudge(caller, box, analyzer, tester),
		box,
		orchestrator.Config{
			MaxIterations: cfg.Workflow.MaxIterations,
			Parallelism:   cfg.Workflow.Parallelism,
		},
	)

	fmt.Printf("codeswarm: processing %s (model %s, budget %d)\n",
		root, cfg.LLM.Model, cfg.Workflow.MaxIterations)

	summary, err := orch.Run(ctx, cfg.Workflow.SourceGlob)
	if err != nil {
		return err
	}

	printSummary(summary, limiter.Stats())
	if code := exitCodeFor(summary.Final); code != 0 {
		os.Exit(code)
	}
	return nil
}

// exitCodeFor maps the final run outcome to the process exit code.
// Only a fully approved run exits 0; an exhausted iteration budget and
// an operational failure stay distinguishable to callers.
func exitCodeFor(final orchestrator.Outcome) int {
	switch final {
	case orchestrator.OutcomeFailed:
		return 2
	case orchestrator.OutcomeMaxIterations:
		return 3
	default:
		return 0
	}
}

// experimentLogPath anchors a relative experiment-log path under the
// sandbox root.
func experimentLogPath(root string, cfg *config.Config) string {
	path := cfg.Logging.ExperimentLog
	if path == "" {
		path = "logs/experiment_data.json"
	}
	if !os.IsPathSeparator(path[0]) {
		path = root + string(os.PathSeparator) + path
	}
	return path
}

func printSummary(summary *orchestrator.Summary, stats ratelimit.Stats) {
	fmt.Printf("\n=== Run summary (%s) ===\n", summary.Elapsed.Round(time.Second))
	for _, st := range summary.States {
		switch st.Outcome {
		case orchestrator.OutcomeSuccess:
			fmt.Printf("  SUCCESS        %s (%d iterations)\n", st.FilePath, st.Iterations)
		case orchestrator.OutcomeMaxIterations:
			fmt.Printf("  MAX_ITERATIONS %s (budget exhausted)\n", st.FilePath)
		case orchestrator.OutcomeFailed:
			fmt.Printf("  FAILED         %s: %v\n", st.FilePath, st.Err)
		}
	}
	counts := summary.Counts()
	fmt.Printf("Files: %d ok, %d exhausted, %d failed. Final: %s\n",
		counts[orchestrator.OutcomeSuccess],
		counts[orchestrator.OutcomeMaxIterations],
		counts[orchestrator.OutcomeFailed],
		summary.Final)
	fmt.Printf("Oracle calls: %d (%.1f/min, %s spent waiting for quota)\n",
		stats.TotalCalls, stats.CallsPerMinute, stats.TotalWait.Round(time.Second))
}

func showStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	expLog, err := logging.NewExperimentLog(experimentLogPath(args[0], cfg))
	if err != nil {
		return err
	}
	stats, err := expLog.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Experiment log: %s\n", expLog.Path())
	fmt.Printf("Total exchanges: %d\n", stats.Total)
	fmt.Println("By agent:")
	for agentName, n := range stats.ByAgent {
		fmt.Printf("  %-12s %d\n", agentName, n)
	}
	fmt.Println("By action:")
	for action, n := range stats.ByAction {
		fmt.Printf("  %-12s %d\n", action, n)
	}
	fmt.Println("By status:")
	for status, n := range stats.ByStatus {
		fmt.Printf("  %-12s %d\n", status, n)
	}
	return nil
}
