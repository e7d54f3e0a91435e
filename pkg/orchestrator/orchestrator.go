package orchestrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pradapjackie/super-pancake-orchestrator/pkg/analytics"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/broadcast"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/collector"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/config"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/logger"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/models"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/report"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/store"
)

// Broadcaster receives progress lines during a run. The websocket hub
// implements it; tests substitute a recorder.
type Broadcaster interface {
	Publish(line string)
}

// Engine runs one test file as a subprocess and streams its output
// line by line through publish. It returns the process exit code.
type Engine interface {
	Run(ctx context.Context, filePath string, testNames []string, publish func(string)) (int, error)
}

// ExecEngine is the default Engine: it shells out to the configured
// runner command with a name-pattern filter built from the requested
// test names.
type ExecEngine struct {
	command string
	args    []string
}

// NewExecEngine builds the default subprocess engine from the config.
func NewExecEngine(cfg *config.Config) *ExecEngine {
	return &ExecEngine{command: cfg.EngineCommand, args: cfg.EngineArgs}
}

// NamePattern builds the engine's test-name filter: each requested
// name literal-escaped, alternated with "|". Tests are selected by
// exact-name alternation, never by a user-supplied regexp.
func NamePattern(testNames []string) string {
	quoted := make([]string, 0, len(testNames))
	for _, name := range testNames {
		quoted = append(quoted, regexp.QuoteMeta(name))
	}
	return strings.Join(quoted, "|")
}

// Run executes the runner for one file. Output lines from stdout and
// stderr are forwarded to publish as they arrive. A non-zero exit is
// reported through the returned code, not as an error; err is reserved
// for failures to start or stream the process.
func (e *ExecEngine) Run(ctx context.Context, filePath string, testNames []string, publish func(string)) (int, error) {
	args := append([]string{}, e.args...)
	args = append(args, filePath)
	if pattern := NamePattern(testNames); pattern != "" {
		args = append(args, "--testNamePattern", pattern)
	}

	cmd := exec.CommandContext(ctx, e.command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start engine %s: %w", e.command, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		relayLines(stdout, publish)
	}()
	go func() {
		defer wg.Done()
		relayLines(stderr, publish)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("engine %s failed: %w", e.command, err)
	}
	return 0, nil
}

// relayLines forwards output to publish line by line. Engines dump
// inline JSON blobs far beyond the default scanner token limit, so the
// buffer cap is raised to keep long lines flowing instead of silently
// ending the relay.
func relayLines(r io.Reader, publish func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		publish(scanner.Text())
	}
}

// Orchestrator drives a full run: reset the store, execute each
// selected file sequentially over the shared debug port, then collect,
// analyze and render. Execution is strictly one file at a time; the
// browser debug port cannot be shared by concurrent engine processes.
type Orchestrator struct {
	config      *config.Config
	store       *store.Store
	engine      Engine
	collector   *collector.Collector
	analytics   *analytics.Engine
	assembler   *report.Assembler
	broadcaster Broadcaster
}

// New wires an orchestrator from its collaborators.
func New(cfg *config.Config, st *store.Store, engine Engine, analyticsEngine *analytics.Engine, assembler *report.Assembler, broadcaster Broadcaster) *Orchestrator {
	return &Orchestrator{
		config:      cfg,
		store:       st,
		engine:      engine,
		collector:   collector.New(st),
		analytics:   analyticsEngine,
		assembler:   assembler,
		broadcaster: broadcaster,
	}
}

// Run executes the selection end to end and returns the run outcome.
// An empty selection is rejected before any store mutation.
func (o *Orchestrator) Run(ctx context.Context, selection models.Selection) (*models.RunOutcome, error) {
	if len(selection) == 0 {
		return nil, fmt.Errorf("no tests selected")
	}

	runID := uuid.NewString()
	startedAt := time.Now()

	if err := o.store.Reset(); err != nil {
		return nil, fmt.Errorf("store reset failed: %w", err)
	}

	groups := selection.GroupByFile()
	o.publishf("Starting run %s: %d test(s) across %d file(s)", runID, len(selection), len(groups))

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := o.runFile(ctx, group); err != nil {
			return nil, err
		}
	}

	records, err := o.collector.Collect()
	if err != nil {
		return nil, fmt.Errorf("result collection failed: %w", err)
	}

	var summary models.Summary
	var snapshot models.AnalyticsSnapshot
	if o.config.EnableAnalytics {
		summary, snapshot = o.analytics.Analyze(records)
	} else {
		summary = analytics.Summarize(records)
	}

	if err := o.assembler.Assemble(summary, snapshot, records, o.analytics.RunTrend()); err != nil {
		logger.Errorf("Report assembly failed: %v", err)
	}

	if err := o.analytics.SaveRunData(runID, summary, records); err != nil {
		logger.Warnf("Failed to persist run history: %v", err)
	}

	o.publishf("Run %s finished: %d passed, %d failed, %d skipped", runID, summary.Passed, summary.Failed, summary.Skipped)
	o.broadcaster.Publish(broadcast.CompletionMarker)

	return &models.RunOutcome{
		RunID:     runID,
		Summary:   summary,
		Snapshot:  snapshot,
		Records:   len(records),
		FilesRun:  len(groups),
		StartedAt: startedAt,
		EndedAt:   time.Now(),
	}, nil
}

// runFile executes one file group: purge its artifact directory, run
// the engine, and guarantee an artifact exists afterwards even when
// the engine crashed before writing one.
func (o *Orchestrator) runFile(ctx context.Context, group models.FileGroup) error {
	o.publishf("Running %s (%d test(s))", group.FilePath, len(group.TestNames))

	if err := o.store.PurgeFile(group.FilePath); err != nil {
		return err
	}

	exitCode, err := o.engine.Run(ctx, group.FilePath, group.TestNames, o.broadcaster.Publish)
	if err != nil {
		logger.Errorf("Engine failed for %s: %v", group.FilePath, err)
		exitCode = -1
	}

	if _, statErr := os.Stat(o.store.ArtifactPath(group.FilePath)); os.IsNotExist(statErr) {
		o.publishf("No results written for %s, recording requested tests as failed", group.FilePath)
		if synthErr := o.synthesizeFailure(group, exitCode, err); synthErr != nil {
			return synthErr
		}
	}

	o.publishf("Finished %s (exit code %d)", group.FilePath, exitCode)
	return nil
}

// synthesizeFailure writes an artifact marking every requested test in
// the group as failed, so crashed files still show up in the report
// instead of silently vanishing.
func (o *Orchestrator) synthesizeFailure(group models.FileGroup, exitCode int, runErr error) error {
	message := fmt.Sprintf("test file produced no results (exit code %d)", exitCode)
	if runErr != nil {
		message = fmt.Sprintf("%s: %v", message, runErr)
	}

	now := time.Now().UnixMilli()
	results := make([]models.RawTestRecord, 0, len(group.TestNames))
	for _, name := range group.TestNames {
		results = append(results, models.RawTestRecord{
			Title:           name,
			Status:          "failed",
			FailureMessages: []string{message},
			IndividualTest:  true,
		})
	}

	artifact := &models.ResultArtifact{
		StartTime: now,
		EndTime:   now,
		TestResults: []models.FileResult{{
			TestFilePath:     group.FilePath,
			AssertionResults: results,
		}},
	}
	return o.store.WriteArtifact(group.FilePath, artifact)
}

func (o *Orchestrator) publishf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	logger.Info(line)
	o.broadcaster.Publish(line)
}
