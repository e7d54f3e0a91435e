package analytics

import (
	"testing"

	"github.com/pradapjackie/super-pancake-orchestrator/pkg/config"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/models"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	cfg := config.NewConfig()
	st := store.New(t.TempDir(), cfg.HistoryCap)
	return NewEngine(cfg, st, nil), st
}

func record(name, file string, status models.Status, duration float64) *models.CanonicalTestRecord {
	return &models.CanonicalTestRecord{
		TestName:   name,
		SourceFile: file,
		Status:     status,
		Duration:   duration,
	}
}

func TestSummarize_Counts(t *testing.T) {
	records := []*models.CanonicalTestRecord{
		record("t1", "a.test.js", models.StatusPassed, 100),
		record("t2", "a.test.js", models.StatusFailed, 200),
		record("t3", "b.test.js", models.StatusSkipped, 0),
		record("t4", "b.test.js", models.StatusUnknown, 50),
	}

	summary := Summarize(records)
	if summary.Total != 4 {
		t.Errorf("Total = %d, want 4", summary.Total)
	}
	if summary.Passed != 1 || summary.Failed != 1 || summary.Skipped != 1 {
		t.Errorf("bucket counts = %d/%d/%d, want 1/1/1", summary.Passed, summary.Failed, summary.Skipped)
	}
	if summary.Passed+summary.Failed+summary.Skipped > summary.Total {
		t.Error("bucket counts exceed total")
	}
	if summary.TotalDuration != 350 {
		t.Errorf("TotalDuration = %v, want 350", summary.TotalDuration)
	}
}

func TestSummarize_BucketInvariant(t *testing.T) {
	// Equality with total holds exactly when nothing maps to unknown.
	records := []*models.CanonicalTestRecord{
		record("t1", "a.test.js", models.StatusPassed, 10),
		record("t2", "a.test.js", models.StatusFailed, 10),
	}
	summary := Summarize(records)
	if summary.Passed+summary.Failed+summary.Skipped != summary.Total {
		t.Errorf("expected bucket equality without unknown records: %+v", summary)
	}
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)
	if summary.Total != 0 || summary.Passed != 0 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Errorf("empty record set should produce zero summary, got %+v", summary)
	}
	if summary.SuccessRate() != 0.0 {
		t.Errorf("SuccessRate() on empty summary = %v, want 0", summary.SuccessRate())
	}
}

func TestSummarize_ObservedSets(t *testing.T) {
	records := []*models.CanonicalTestRecord{
		{TestName: "t1", Status: models.StatusPassed, Browser: "chrome", Environment: "ci", Tags: []string{"smoke"}},
		{TestName: "t2", Status: models.StatusPassed, Browser: "chrome", Environment: "local", Tags: []string{"smoke", "auth"}},
	}
	summary := Summarize(records)
	if len(summary.Browsers) != 1 || summary.Browsers[0] != "chrome" {
		t.Errorf("Browsers = %v, want [chrome]", summary.Browsers)
	}
	if len(summary.Environments) != 2 {
		t.Errorf("Environments = %v, want two entries", summary.Environments)
	}
	if len(summary.Tags) != 2 {
		t.Errorf("Tags = %v, want two entries", summary.Tags)
	}
}

func TestDetectFlaky_RetryCount(t *testing.T) {
	engine, _ := newTestEngine(t)
	rec := record("login works", "login.test.js", models.StatusPassed, 50)
	rec.RetryCount = 2

	_, snapshot := engine.Analyze([]*models.CanonicalTestRecord{rec})
	if len(snapshot.FlakyTests) != 1 {
		t.Fatalf("expected 1 flaky test, got %d", len(snapshot.FlakyTests))
	}
	if snapshot.FlakyTests[0].Severity != "medium" {
		t.Errorf("Severity = %q, want medium", snapshot.FlakyTests[0].Severity)
	}
}

func TestDetectFlaky_VolatileName(t *testing.T) {
	engine, _ := newTestEngine(t)
	rec := record("handles network timeout gracefully", "net.test.js", models.StatusPassed, 50)

	_, snapshot := engine.Analyze([]*models.CanonicalTestRecord{rec})
	if len(snapshot.FlakyTests) != 1 {
		t.Fatalf("expected name-heuristic flaky flag, got %d", len(snapshot.FlakyTests))
	}
	if snapshot.FlakyTests[0].Severity != "low" {
		t.Errorf("Severity = %q, want low", snapshot.FlakyTests[0].Severity)
	}
}

func TestDetectFlaky_HistoryPassRate(t *testing.T) {
	engine, st := newTestEngine(t)

	// Seed an unstable history: pass rate 50%, strictly between 10% and 90%.
	for i := 0; i < 4; i++ {
		status := models.StatusPassed
		if i%2 == 0 {
			status = models.StatusFailed
		}
		st.AppendHistory(map[string]models.Status{"checkout": status})
	}

	rec := record("checkout", "cart.test.js", models.StatusPassed, 50)
	_, snapshot := engine.Analyze([]*models.CanonicalTestRecord{rec})
	if len(snapshot.FlakyTests) != 1 {
		t.Fatalf("expected history-based flaky flag, got %d", len(snapshot.FlakyTests))
	}
	if snapshot.FlakyTests[0].Severity != "high" {
		t.Errorf("Severity = %q, want high for ~50%% pass rate", snapshot.FlakyTests[0].Severity)
	}
	if snapshot.FlakyTests[0].HistoryRuns != 4 {
		t.Errorf("HistoryRuns = %d, want 4", snapshot.FlakyTests[0].HistoryRuns)
	}
}

func TestDetectFlaky_StableHistoryNotFlagged(t *testing.T) {
	engine, st := newTestEngine(t)
	for i := 0; i < 10; i++ {
		st.AppendHistory(map[string]models.Status{"stable": models.StatusPassed})
	}

	rec := record("stable", "ok.test.js", models.StatusPassed, 50)
	_, snapshot := engine.Analyze([]*models.CanonicalTestRecord{rec})
	if len(snapshot.FlakyTests) != 0 {
		t.Errorf("100%% pass rate should not be flagged, got %+v", snapshot.FlakyTests)
	}
}

func TestAnalyze_AppendsHistory(t *testing.T) {
	engine, st := newTestEngine(t)
	rec := record("t1", "a.test.js", models.StatusFailed, 10)

	engine.Analyze([]*models.CanonicalTestRecord{rec})

	history := st.ReadHistory()
	if got := history.Entries["t1"]; len(got) != 1 || got[0] != "failed" {
		t.Errorf("history not appended: %v", history.Entries)
	}
}

func TestSlowestTests_RankingAndSteps(t *testing.T) {
	slow := record("slow", "a.test.js", models.StatusPassed, 900)
	slow.Steps = []models.StepTiming{
		{Name: "navigate", Duration: 100},
		{Name: "wait for selector", Duration: 700},
		{Name: "click", Duration: 100},
	}
	records := []*models.CanonicalTestRecord{
		record("fast", "a.test.js", models.StatusPassed, 10),
		slow,
		record("medium", "b.test.js", models.StatusPassed, 400),
	}

	ranked := slowestTests(records, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected top 2, got %d", len(ranked))
	}
	if ranked[0].TestName != "slow" || ranked[1].TestName != "medium" {
		t.Errorf("unexpected ranking: %+v", ranked)
	}
	if ranked[0].SlowestStep != "wait for selector" || ranked[0].StepDuration != 700 {
		t.Errorf("slowest step not identified: %+v", ranked[0])
	}
	// Without step timings the record name is the default.
	if ranked[1].SlowestStep != "medium" {
		t.Errorf("SlowestStep default = %q, want record name", ranked[1].SlowestStep)
	}
}

func TestAnalyze_ResourceSampleLabeled(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, snapshot := engine.Analyze(nil)

	if snapshot.Resources.Source != "analysis-process" {
		t.Errorf("resource sample source = %q, want analysis-process", snapshot.Resources.Source)
	}
	if snapshot.Resources.Workers != 1 {
		t.Errorf("Workers = %d, want 1 for sequential execution", snapshot.Resources.Workers)
	}
	if snapshot.Resources.NumCPU <= 0 {
		t.Errorf("NumCPU = %d, want a real measurement", snapshot.Resources.NumCPU)
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		message  string
		expected string
	}{
		{"Navigation timeout of 30000 ms exceeded", "Timeout"},
		{"net::ERR_CONNECTION_REFUSED", "Connection"},
		{"element not found: #submit", "NotFound"},
		{"expected true to equal false", "Assertion"},
		{"cannot read property of undefined", "Null"},
		{"something unrecognizable", "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := CategorizeError(tt.message); got != tt.expected {
				t.Errorf("CategorizeError(%q) = %q, want %q", tt.message, got, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms       float64
		expected string
	}{
		{250, "250ms"},
		{1500, "1.5s"},
		{90000, "1m 30s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatDuration(tt.ms); got != tt.expected {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.ms, got, tt.expected)
			}
		})
	}
}
