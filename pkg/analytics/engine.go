package analytics

import (
	"fmt"
	"regexp"
	"runtime"
	"sort"
	"time"

	"github.com/pradapjackie/super-pancake-orchestrator/pkg/config"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/logger"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/models"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/storage"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/store"
)

// volatilePattern matches test names touching the timing/network/async
// surface area that tends to produce intermittent outcomes.
var volatilePattern = regexp.MustCompile(`(?i)\b(timeout|timing|network|async|await|retry|race|poll|wait|debounce|websocket|animation)\b`)

// Engine derives the Summary and AnalyticsSnapshot from a canonical
// record set. Everything here is a pure function of the records plus
// best-effort history; absent metrics default to zero instead of
// failing the analysis.
type Engine struct {
	config *config.Config
	store  *store.Store
	db     *storage.Database
}

// NewEngine creates an analytics engine. db may be nil; flakiness then
// relies on retries, name heuristics and the history file alone.
func NewEngine(cfg *config.Config, st *store.Store, db *storage.Database) *Engine {
	return &Engine{config: cfg, store: st, db: db}
}

// Analyze computes the summary and derived snapshot for a record set,
// reading the rolling history before appending the current outcomes to
// it.
func (e *Engine) Analyze(records []*models.CanonicalTestRecord) (models.Summary, models.AnalyticsSnapshot) {
	summary := Summarize(records)

	history := e.store.ReadHistory()
	snapshot := models.AnalyticsSnapshot{
		FlakyTests:      []models.FlakyTest{},
		SlowestTests:    slowestTests(records, e.config.SlowestTestCount),
		AverageDuration: averageDuration(records),
		Resources:       sampleResources(),
	}
	if e.config.FlakyTestDetection {
		snapshot.FlakyTests = e.detectFlakyTests(records, history)
	}

	outcomes := make(map[string]models.Status, len(records))
	for _, record := range records {
		outcomes[record.TestName] = record.Status
	}
	e.store.AppendHistory(outcomes)

	return summary, snapshot
}

// Summarize counts record outcomes in a single pass. Unknown statuses
// count toward Total only.
func Summarize(records []*models.CanonicalTestRecord) models.Summary {
	summary := models.Summary{
		Browsers:     []string{},
		Environments: []string{},
		Tags:         []string{},
	}

	browsers := make(map[string]bool)
	environments := make(map[string]bool)
	tags := make(map[string]bool)

	for _, record := range records {
		summary.Total++
		switch record.Status {
		case models.StatusPassed:
			summary.Passed++
		case models.StatusFailed:
			summary.Failed++
		case models.StatusSkipped:
			summary.Skipped++
		}

		summary.TotalDuration += record.Duration

		if !record.Timestamp.IsZero() {
			if summary.StartTime.IsZero() || record.Timestamp.Before(summary.StartTime) {
				summary.StartTime = record.Timestamp
			}
			if record.Timestamp.After(summary.EndTime) {
				summary.EndTime = record.Timestamp
			}
		}

		if record.Browser != "" {
			browsers[record.Browser] = true
		}
		if record.Environment != "" {
			environments[record.Environment] = true
		}
		for _, tag := range record.Tags {
			tags[tag] = true
		}
	}

	summary.Browsers = sortedKeys(browsers)
	summary.Environments = sortedKeys(environments)
	summary.Tags = sortedKeys(tags)
	return summary
}

// detectFlakyTests flags records by retries, name heuristics, rolling
// history pass rate, and (when available) the run database score.
func (e *Engine) detectFlakyTests(records []*models.CanonicalTestRecord, history *store.History) []models.FlakyTest {
	flaky := make([]models.FlakyTest, 0)

	for _, record := range records {
		var reasons []string

		if record.RetryCount > 0 {
			reasons = append(reasons, fmt.Sprintf("required %d retries", record.RetryCount))
		}
		if volatilePattern.MatchString(record.TestName) || volatilePattern.MatchString(record.Description) {
			reasons = append(reasons, "name matches volatility pattern")
		}

		passRate, runs := history.PassRate(record.TestName)
		historicallyFlaky := runs > 0 && passRate > 0.10 && passRate < 0.90
		if historicallyFlaky {
			reasons = append(reasons, fmt.Sprintf("pass rate %.0f%% over last %d runs", passRate*100, runs))
		}

		dbScore := 0.0
		if e.db != nil {
			score, err := e.db.FlakyScore(record.TestName, e.config.TrendWindowDays)
			if err != nil {
				logger.Debugf("Flaky score unavailable for %q: %v", record.TestName, err)
			} else if score > 0.3 {
				dbScore = score
				reasons = append(reasons, fmt.Sprintf("run history flaky score %.2f", score))
			}
		}

		if len(reasons) == 0 {
			continue
		}

		flaky = append(flaky, models.FlakyTest{
			TestName:    record.TestName,
			SourceFile:  record.SourceFile,
			Severity:    flakySeverity(record, historicallyFlaky, passRate, dbScore),
			Reasons:     reasons,
			PassRate:    passRate,
			HistoryRuns: runs,
		})
	}

	return flaky
}

// flakySeverity classifies how disruptive a flaky test is.
func flakySeverity(record *models.CanonicalTestRecord, historicallyFlaky bool, passRate float64, dbScore float64) string {
	if dbScore > 0.7 {
		return "high"
	}
	if historicallyFlaky && passRate > 0.25 && passRate < 0.75 {
		return "high"
	}
	if record.RetryCount > 0 || historicallyFlaky {
		return "medium"
	}
	return "low"
}

// slowestTests ranks records by duration descending and keeps the top
// N, annotating each with its single longest sub-operation when
// step-level timings are present.
func slowestTests(records []*models.CanonicalTestRecord, n int) []models.SlowTest {
	if n <= 0 {
		n = 5
	}

	ranked := make([]*models.CanonicalTestRecord, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Duration > ranked[j].Duration
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	slow := make([]models.SlowTest, 0, len(ranked))
	for _, record := range ranked {
		stepName := record.TestName
		stepDuration := record.Duration
		if len(record.Steps) > 0 {
			longest := record.Steps[0]
			for _, step := range record.Steps[1:] {
				if step.Duration > longest.Duration {
					longest = step
				}
			}
			stepName = longest.Name
			stepDuration = longest.Duration
		}
		slow = append(slow, models.SlowTest{
			TestName:     record.TestName,
			SourceFile:   record.SourceFile,
			Duration:     record.Duration,
			SlowestStep:  stepName,
			StepDuration: stepDuration,
		})
	}
	return slow
}

// averageDuration is the mean record duration, zero for no records.
func averageDuration(records []*models.CanonicalTestRecord) float64 {
	if len(records) == 0 {
		return 0.0
	}
	total := 0.0
	for _, record := range records {
		total += record.Duration
	}
	return total / float64(len(records))
}

// sampleResources snapshots the analysis process itself. This is an
// approximation of system load at analysis time, not a per-test
// measurement; the Source field says so to report consumers. Workers
// is 1 because execution is strictly sequential over the shared
// debugging endpoint.
func sampleResources() models.ResourceSample {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return models.ResourceSample{
		HeapAllocMB:  float64(mem.HeapAlloc) / (1024 * 1024),
		SysMB:        float64(mem.Sys) / (1024 * 1024),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		Workers:      1,
		SampledAt:    time.Now(),
		Source:       "analysis-process",
	}
}

// SaveRunData persists the run and its per-test rows for historical
// trend tracking. No-op without a database.
func (e *Engine) SaveRunData(runID string, summary models.Summary, records []*models.CanonicalTestRecord) error {
	if e.db == nil {
		return nil
	}

	environment := ""
	if len(summary.Environments) > 0 {
		environment = summary.Environments[0]
	}

	run := &storage.RunRecord{
		ID:           runID,
		Timestamp:    time.Now(),
		Duration:     int64(summary.TotalDuration),
		TotalTests:   summary.Total,
		PassedTests:  summary.Passed,
		FailedTests:  summary.Failed,
		SkippedTests: summary.Skipped,
		SuccessRate:  summary.SuccessRate(),
		Environment:  environment,
	}
	if err := e.db.SaveRun(run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for _, record := range records {
		row := &storage.TestRow{
			RunID:      runID,
			TestName:   record.TestName,
			SourceFile: record.SourceFile,
			Status:     string(record.Status),
			Duration:   int64(record.Duration),
			Error:      record.Error,
		}
		if err := e.db.SaveTestResult(row); err != nil {
			logger.Warnf("Failed to save test row for %q: %v", record.TestName, err)
		}
	}
	return nil
}

// RunTrend returns run-over-run trend points for the configured
// window, empty without a database.
func (e *Engine) RunTrend() []storage.TrendPoint {
	if e.db == nil {
		return nil
	}
	trend, err := e.db.GetRunTrend(e.config.TrendWindowDays)
	if err != nil {
		logger.Warnf("Failed to load run trend: %v", err)
		return nil
	}
	return trend
}

// CategorizeError classifies a failure message for the report's
// failure excerpts.
func CategorizeError(message string) string {
	patterns := []struct {
		category string
		re       *regexp.Regexp
	}{
		{"Timeout", regexp.MustCompile(`(?i)timeout|timed out|deadline`)},
		{"Connection", regexp.MustCompile(`(?i)connection|network|unreachable|ECONNREFUSED`)},
		{"NotFound", regexp.MustCompile(`(?i)not found|404|missing|no such element`)},
		{"Permission", regexp.MustCompile(`(?i)permission|denied|unauthorized|403`)},
		{"Assertion", regexp.MustCompile(`(?i)assert|expected|actual`)},
		{"Null", regexp.MustCompile(`(?i)\bnull\b|\bnil\b|undefined`)},
	}

	for _, p := range patterns {
		if p.re.MatchString(message) {
			return p.category
		}
	}
	return "Other"
}

// FormatDuration formats a millisecond duration to a readable string.
func FormatDuration(ms float64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
