package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/pradapjackie/super-pancake-orchestrator/pkg/analytics"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/config"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/logger"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/models"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/storage"
)

// maxErrorExcerpt caps inline failure excerpts in the report.
const maxErrorExcerpt = 400

// Segment is one slice of the proportional status bar.
type Segment struct {
	Status string
	Count  int
	Width  float64
}

// ReportData is the serializable model handed to the template. All
// user-sourced text flows through html/template's contextual escaping.
type ReportData struct {
	ProjectName string
	Version     string
	GeneratedAt time.Time
	Summary     models.Summary
	SuccessRate float64
	StatusBar   []Segment
	Records     []*models.CanonicalTestRecord
	Snapshot    models.AnalyticsSnapshot
	Trend       []storage.TrendPoint
}

// Assembler produces the single static, self-contained report
// document. All record data is embedded inline so the document is
// viewable without a running server.
type Assembler struct {
	config  *config.Config
	version string
}

// NewAssembler creates a report assembler.
func NewAssembler(cfg *config.Config, version string) *Assembler {
	if version == "" {
		version = "dev"
	}
	return &Assembler{config: cfg, version: version}
}

// Assemble renders the report to the configured output path. Any
// failure still produces a minimal fallback document describing the
// failure, so a report artifact always exists after a run.
func (a *Assembler) Assemble(summary models.Summary, snapshot models.AnalyticsSnapshot, records []*models.CanonicalTestRecord, trend []storage.TrendPoint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("report assembly panicked: %v", r)
			a.writeFallback(fmt.Sprintf("%v", r))
		}
	}()

	if records == nil {
		records = []*models.CanonicalTestRecord{}
	}

	data := &ReportData{
		ProjectName: a.config.ProjectName,
		Version:     a.version,
		GeneratedAt: time.Now(),
		Summary:     summary,
		SuccessRate: summary.SuccessRate(),
		StatusBar:   statusBar(summary),
		Records:     records,
		Snapshot:    snapshot,
		Trend:       trend,
	}

	if err := os.MkdirAll(filepath.Dir(a.config.ReportPath), 0755); err != nil {
		a.writeFallback(err.Error())
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	f, err := os.Create(a.config.ReportPath)
	if err != nil {
		a.writeFallback(err.Error())
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := reportTemplate().Execute(f, data); err != nil {
		f.Close()
		a.writeFallback(err.Error())
		return fmt.Errorf("failed to render report: %w", err)
	}

	logger.Infof("Report written to %s", a.config.ReportPath)
	return nil
}

// statusBar computes proportional segment widths, guarded against a
// zero total. Unknown records get their own segment so the widths sum
// to 100%.
func statusBar(summary models.Summary) []Segment {
	unknown := summary.Total - summary.Passed - summary.Failed - summary.Skipped
	if unknown < 0 {
		unknown = 0
	}

	segments := []Segment{
		{Status: "passed", Count: summary.Passed},
		{Status: "failed", Count: summary.Failed},
		{Status: "skipped", Count: summary.Skipped},
		{Status: "unknown", Count: unknown},
	}

	if summary.Total == 0 {
		return segments
	}
	for i := range segments {
		segments[i].Width = float64(segments[i].Count) / float64(summary.Total) * 100.0
	}
	return segments
}

// writeFallback emits a minimal document with the failure and a
// timestamp instead of leaving no artifact at all. Best-effort.
func (a *Assembler) writeFallback(reason string) {
	doc := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Test Report (degraded)</title></head>
<body>
<h1>Report generation failed</h1>
<p>%s</p>
<p>Generated at %s</p>
</body>
</html>
`, template.HTMLEscapeString(reason), time.Now().Format(time.RFC3339))

	if err := os.MkdirAll(filepath.Dir(a.config.ReportPath), 0755); err != nil {
		logger.Errorf("Failed to create fallback report directory: %v", err)
		return
	}
	if err := os.WriteFile(a.config.ReportPath, []byte(doc), 0644); err != nil {
		logger.Errorf("Failed to write fallback report: %v", err)
	}
}

// truncateExcerpt shortens a failure message for inline display,
// cutting on a rune boundary so multi-byte characters never split.
func truncateExcerpt(message string) string {
	if len(message) <= maxErrorExcerpt {
		return message
	}
	runes := []rune(message)
	if len(runes) <= maxErrorExcerpt {
		return message
	}
	return string(runes[:maxErrorExcerpt]) + "…"
}

// reportTemplate builds the report template with its helpers.
func reportTemplate() *template.Template {
	funcMap := template.FuncMap{
		"formatDuration": analytics.FormatDuration,
		"formatRate": func(rate float64) string {
			return fmt.Sprintf("%.1f", rate)
		},
		"formatWidth": func(width float64) string {
			return fmt.Sprintf("%.2f", width)
		},
		"formatTimestamp": func(t time.Time) string {
			return t.Format("January 2, 2006 at 3:04 PM")
		},
		"categorizeError": analytics.CategorizeError,
		"truncateError":   truncateExcerpt,
	}

	return template.Must(template.New("report").Funcs(funcMap).Parse(reportTemplateHTML))
}
