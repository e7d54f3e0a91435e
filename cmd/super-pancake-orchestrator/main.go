package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pradapjackie/super-pancake-orchestrator/pkg/analytics"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/broadcast"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/collector"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/config"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/discovery"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/logger"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/models"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/orchestrator"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/report"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/server"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/storage"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/store"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "super-pancake-orchestrator",
		Short: "Test orchestrator and report pipeline for super-pancake suites",
		Long: `Super Pancake Orchestrator

Runs browser test selections one file at a time over the shared debug
port, collects result artifacts, detects flaky and slow tests, and
renders a self-contained HTML report.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	var runCmd = &cobra.Command{
		Use:   "run [filePath::testName ...]",
		Short: "Execute a test selection and generate the report",
		Long:  "Execute the given tests sequentially, each entry formatted as filePath::testName, then collect results, analyze them and write the HTML report.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRun,
	}

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API and live progress server",
		Long:  "Start the local server exposing test discovery, run triggering, the live progress websocket and the generated report.",
		RunE:  runServe,
	}

	var reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Regenerate the report from stored results",
		Long:  "Rebuild the HTML report from the artifacts of the last run without executing any tests.",
		RunE:  runReport,
	}

	var cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Remove generated reports and screenshots",
		RunE:  runClean,
	}

	runCmd.Flags().StringP("config", "c", "", "Path to configuration file")
	runCmd.Flags().BoolP("analytics", "a", true, "Enable flakiness and performance analytics")

	serveCmd.Flags().IntP("port", "p", 3000, "Port to run the server on")
	serveCmd.Flags().StringP("host", "H", "localhost", "Host to bind the server to")
	serveCmd.Flags().StringP("config", "c", "", "Path to configuration file")

	reportCmd.Flags().StringP("config", "c", "", "Path to configuration file")

	cleanCmd.Flags().Bool("reports", false, "Remove only the generated report document")
	cleanCmd.Flags().Bool("screenshots", false, "Remove only captured screenshots")
	cleanCmd.Flags().Bool("all", false, "Remove the report and all stored result data")
	cleanCmd.Flags().Int("retention", 0, "Prune run history older than this many days")
	cleanCmd.Flags().StringP("config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(runCmd, serveCmd, reportCmd, cleanCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration: explicit file if
// given, otherwise probed project config plus environment overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		cfg := config.NewConfig()
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg.LoadFromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		logger.SetLevel(cfg.LogLevel)
		return cfg, nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// buildPipeline wires the run pipeline from a configuration. The run
// database is advisory: when it cannot be opened the pipeline still
// works, with trend and score features disabled.
func buildPipeline(cfg *config.Config) (*orchestrator.Orchestrator, *broadcast.Hub, *store.Store, *analytics.Engine) {
	st := store.New(cfg.StoreRoot, cfg.HistoryCap)

	db, err := storage.NewDatabase(cfg.StoreRoot)
	if err != nil {
		logger.Warnf("Run history database unavailable: %v", err)
		db = nil
	}

	analyticsEngine := analytics.NewEngine(cfg, st, db)
	assembler := report.NewAssembler(cfg, version)
	hub := broadcast.NewHub()
	orch := orchestrator.New(cfg, st, orchestrator.NewExecEngine(cfg), analyticsEngine, assembler, hub)
	return orch, hub, st, analyticsEngine
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("analytics") {
		cfg.EnableAnalytics, _ = cmd.Flags().GetBool("analytics")
	}

	selection, err := models.ParseSelection(args)
	if err != nil {
		return err
	}

	orch, _, _, _ := buildPipeline(cfg)

	logger.Infof("Executing %d selected test(s)", len(selection))
	outcome, err := orch.Run(context.Background(), selection)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	logger.Infof("✓ Run complete: %d passed, %d failed, %d skipped", outcome.Summary.Passed, outcome.Summary.Failed, outcome.Summary.Skipped)
	logger.Infof("View report: file://%s", cfg.ReportPath)

	if outcome.Summary.Failed > 0 {
		os.Exit(1)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}

	projectRoot, err := os.Getwd()
	if err != nil {
		return err
	}

	orch, hub, _, _ := buildPipeline(cfg)
	srv := server.NewServer(cfg, discovery.NewScanner(cfg), orch, hub, projectRoot)
	return srv.Start()
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	_, _, st, analyticsEngine := buildPipeline(cfg)

	records, err := collector.New(st).Collect()
	if err != nil {
		return fmt.Errorf("failed to collect results: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no stored results found under %s", st.ResultsDir())
	}

	summary, snapshot := analyticsEngine.Analyze(records)
	assembler := report.NewAssembler(cfg, version)
	if err := assembler.Assemble(summary, snapshot, records, analyticsEngine.RunTrend()); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	logger.Infof("✓ Report regenerated from %d record(s)", len(records))
	logger.Infof("View report: file://%s", cfg.ReportPath)
	return nil
}

// runClean removes generated output in three distinct scopes: only the
// rendered report document, only captured screenshots, or the report
// plus all stored result data.
func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reports, _ := cmd.Flags().GetBool("reports")
	screenshots, _ := cmd.Flags().GetBool("screenshots")
	all, _ := cmd.Flags().GetBool("all")
	retention, _ := cmd.Flags().GetInt("retention")
	if !reports && !screenshots && !all && retention <= 0 {
		return fmt.Errorf("nothing to clean: pass --reports, --screenshots, --all or --retention")
	}

	var failed bool
	removeReport := func() {
		if err := os.Remove(cfg.ReportPath); err != nil {
			if !os.IsNotExist(err) {
				logger.Errorf("Failed to remove %s: %v", cfg.ReportPath, err)
				failed = true
			}
			return
		}
		logger.Infof("Removed %s", cfg.ReportPath)
	}

	if all {
		if err := os.RemoveAll(cfg.StoreRoot); err != nil {
			logger.Errorf("Failed to remove %s: %v", cfg.StoreRoot, err)
			failed = true
		} else {
			logger.Infof("Removed %s", cfg.StoreRoot)
		}
		// The report may live outside the store root.
		removeReport()
	} else {
		if reports {
			removeReport()
		}
		if screenshots {
			if err := os.RemoveAll(cfg.ScreenshotsDir()); err != nil {
				logger.Errorf("Failed to remove %s: %v", cfg.ScreenshotsDir(), err)
				failed = true
			} else {
				logger.Infof("Removed %s", cfg.ScreenshotsDir())
			}
		}
	}

	if retention > 0 && !all {
		db, err := storage.NewDatabase(cfg.StoreRoot)
		if err != nil {
			logger.Errorf("Run history database unavailable: %v", err)
			failed = true
		} else {
			defer db.Close()
			if err := db.CleanupOldData(retention); err != nil {
				logger.Errorf("Failed to prune run history: %v", err)
				failed = true
			} else {
				logger.Infof("Pruned run history older than %d day(s)", retention)
			}
		}
	}

	if failed {
		return fmt.Errorf("cleanup finished with errors")
	}
	return nil
}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logrus.SetLevel(logrus.InfoLevel)
}
