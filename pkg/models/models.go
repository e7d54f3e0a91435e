package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the canonical test outcome vocabulary. Every vendor label
// coming out of the execution engine is mapped onto this set exactly
// once, in CanonicalStatus.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusUnknown Status = "unknown"
)

// CanonicalStatus maps a raw engine status label to the canonical set.
// This is the single source of truth for status normalization.
func CanonicalStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "passed", "pass", "success":
		return StatusPassed
	case "failed", "fail", "error":
		return StatusFailed
	case "skipped", "skip", "pending", "todo":
		return StatusSkipped
	default:
		return StatusUnknown
	}
}

// SelectionItem is one requested (file, test name) pair.
type SelectionItem struct {
	FilePath string `json:"filePath"`
	TestName string `json:"testName"`
}

// Selection is the ordered set of tests requested for one run.
type Selection []SelectionItem

// FileGroup holds all requested test names for one file, in the order
// they were first requested.
type FileGroup struct {
	FilePath  string
	TestNames []string
}

// ParseSelection parses "filePath::testName" entries as submitted by
// the run endpoint into a Selection.
func ParseSelection(entries []string) (Selection, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("selection is empty")
	}

	selection := make(Selection, 0, len(entries))
	for _, entry := range entries {
		idx := strings.Index(entry, "::")
		if idx <= 0 || idx == len(entry)-2 {
			return nil, fmt.Errorf("invalid selection entry %q: expected filePath::testName", entry)
		}
		selection = append(selection, SelectionItem{
			FilePath: entry[:idx],
			TestName: entry[idx+2:],
		})
	}
	return selection, nil
}

// GroupByFile groups the selection by file path, preserving the order
// in which each file was first requested and every requested test name
// within it.
func (s Selection) GroupByFile() []FileGroup {
	var groups []FileGroup
	index := make(map[string]int)

	for _, item := range s {
		i, ok := index[item.FilePath]
		if !ok {
			index[item.FilePath] = len(groups)
			groups = append(groups, FileGroup{FilePath: item.FilePath})
			i = len(groups) - 1
		}
		groups[i].TestNames = append(groups[i].TestNames, item.TestName)
	}
	return groups
}

// ResultArtifact is the raw JSON output of one test-file execution as
// written by the execution engine.
type ResultArtifact struct {
	RunID       string       `json:"runId,omitempty"`
	Browser     string       `json:"browser,omitempty"`
	Environment string       `json:"environment,omitempty"`
	Framework   string       `json:"framework,omitempty"`
	Version     string       `json:"version,omitempty"`
	Platform    string       `json:"platform,omitempty"`
	StartTime   int64        `json:"startTime,omitempty"`
	EndTime     int64        `json:"endTime,omitempty"`
	TestResults []FileResult `json:"testResults"`
}

// FileResult is the per-file nesting level of the engine output.
type FileResult struct {
	TestFilePath     string          `json:"testFilePath"`
	AssertionResults []RawTestRecord `json:"assertionResults"`
}

// RawTestRecord is one assertion result as the engine reports it. The
// status vocabulary is whatever the engine emits; duration and timing
// fields are optional.
type RawTestRecord struct {
	Title           string       `json:"title"`
	FullName        string       `json:"fullName,omitempty"`
	Status          string       `json:"status"`
	Duration        float64      `json:"duration,omitempty"`
	FailureMessages []string     `json:"failureMessages,omitempty"`
	Invocations     int          `json:"invocations,omitempty"`
	IndividualTest  bool         `json:"individualTest,omitempty"`
	Logs            []string     `json:"logs,omitempty"`
	Tags            []string     `json:"tags,omitempty"`
	Screenshots     []string     `json:"screenshots,omitempty"`
	Steps           []StepTiming `json:"steps,omitempty"`
}

// StepTiming is an optional step-level timing inside one test.
type StepTiming struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
}

// RecordMetadata carries provenance about who produced a record.
type RecordMetadata struct {
	Framework string `json:"framework,omitempty"`
	Version   string `json:"version,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// CanonicalTestRecord is the normalized, deduplicated unit of truth.
// After deduplication there is at most one record per
// (SourceFile, TestName) pair.
type CanonicalTestRecord struct {
	ID             string         `json:"id"`
	TestName       string         `json:"testName"`
	Description    string         `json:"description,omitempty"`
	Status         Status         `json:"status"`
	Duration       float64        `json:"duration"`
	Timestamp      time.Time      `json:"timestamp"`
	Browser        string         `json:"browser,omitempty"`
	Environment    string         `json:"environment,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Screenshots    []string       `json:"screenshots,omitempty"`
	Logs           []string       `json:"logs,omitempty"`
	Error          string         `json:"error,omitempty"`
	RetryCount     int            `json:"retryCount"`
	SourceFile     string         `json:"sourceFile"`
	Metadata       RecordMetadata `json:"metadata"`
	Steps          []StepTiming   `json:"steps,omitempty"`
	IndividualTest bool           `json:"individualTest,omitempty"`
}

// Key returns the deduplication key for the record.
func (r *CanonicalTestRecord) Key() string {
	return r.SourceFile + "::" + r.TestName
}

// Summary holds aggregate counts over a canonical record set. Records
// with unknown status count toward Total but none of the three
// outcome buckets, so Passed+Failed+Skipped <= Total always holds.
type Summary struct {
	Total         int       `json:"total"`
	Passed        int       `json:"passed"`
	Failed        int       `json:"failed"`
	Skipped       int       `json:"skipped"`
	TotalDuration float64   `json:"totalDuration"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Browsers      []string  `json:"browsers"`
	Environments  []string  `json:"environments"`
	Tags          []string  `json:"tags"`
}

// SuccessRate returns the passed percentage over the total, guarded
// against a zero total.
func (s *Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0.0
	}
	return float64(s.Passed) / float64(s.Total) * 100.0
}

// FlakyTest is a record flagged as behaving inconsistently.
type FlakyTest struct {
	TestName    string   `json:"testName"`
	SourceFile  string   `json:"sourceFile"`
	Severity    string   `json:"severity"` // "low", "medium", "high"
	Reasons     []string `json:"reasons"`
	PassRate    float64  `json:"passRate"`
	HistoryRuns int      `json:"historyRuns"`
}

// SlowTest is one entry of the slowest-N ranking.
type SlowTest struct {
	TestName     string  `json:"testName"`
	SourceFile   string  `json:"sourceFile"`
	Duration     float64 `json:"duration"`
	SlowestStep  string  `json:"slowestStep"`
	StepDuration float64 `json:"stepDuration"`
}

// ResourceSample is a snapshot of the process running the analysis
// stage. It approximates system load at analysis time and is not a
// per-test measurement; Source records that provenance for report
// consumers.
type ResourceSample struct {
	HeapAllocMB  float64   `json:"heapAllocMb"`
	SysMB        float64   `json:"sysMb"`
	NumGoroutine int       `json:"numGoroutine"`
	NumCPU       int       `json:"numCpu"`
	Workers      int       `json:"workers"`
	SampledAt    time.Time `json:"sampledAt"`
	Source       string    `json:"source"`
}

// AnalyticsSnapshot is the derived, non-persisted view over a
// canonical record set. It is a pure function of the records plus
// best-effort history, and is recomputable from stored artifacts.
type AnalyticsSnapshot struct {
	FlakyTests      []FlakyTest    `json:"flakyTests"`
	SlowestTests    []SlowTest     `json:"slowestTests"`
	AverageDuration float64        `json:"averageDuration"`
	Resources       ResourceSample `json:"resources"`
}

// RunOutcome is what one orchestrated run produced.
type RunOutcome struct {
	RunID     string            `json:"runId"`
	Summary   Summary           `json:"summary"`
	Snapshot  AnalyticsSnapshot `json:"snapshot"`
	Records   int               `json:"records"`
	FilesRun  int               `json:"filesRun"`
	StartedAt time.Time         `json:"startedAt"`
	EndedAt   time.Time         `json:"endedAt"`
}
