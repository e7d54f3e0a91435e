package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/logger"
)

// Database persists run-level execution history across orchestrated
// runs. It is advisory: the artifact tree stays the source of truth
// and every consumer degrades gracefully when the database is absent.
type Database struct {
	db   *sql.DB
	path string
}

// RunRecord is one completed orchestrated run.
type RunRecord struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Duration     int64     `json:"duration"`
	TotalTests   int       `json:"totalTests"`
	PassedTests  int       `json:"passedTests"`
	FailedTests  int       `json:"failedTests"`
	SkippedTests int       `json:"skippedTests"`
	SuccessRate  float64   `json:"successRate"`
	Environment  string    `json:"environment"`
}

// TestRow is one test outcome within a run.
type TestRow struct {
	RunID      string `json:"runId"`
	TestName   string `json:"testName"`
	SourceFile string `json:"sourceFile"`
	Status     string `json:"status"`
	Duration   int64  `json:"duration"`
	Error      string `json:"error,omitempty"`
}

// TrendPoint is one point of run-over-run trend data.
type TrendPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	SuccessRate float64   `json:"successRate"`
	Duration    int64     `json:"duration"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
}

// NewDatabase creates or opens the run history database under the
// store root.
func NewDatabase(storeRoot string) (*Database, error) {
	if err := os.MkdirAll(storeRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}

	dbPath := filepath.Join(storeRoot, "run-history.db")

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db, path: dbPath}
	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.Debugf("Run history database ready at %s", dbPath)
	return database, nil
}

// migrate creates or updates the database schema
func (d *Database) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			duration INTEGER NOT NULL,
			total_tests INTEGER,
			passed_tests INTEGER,
			failed_tests INTEGER,
			skipped_tests INTEGER,
			success_rate REAL,
			environment TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_run_timestamp
		 ON runs(timestamp DESC)`,

		`CREATE TABLE IF NOT EXISTS test_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			test_name TEXT NOT NULL,
			source_file TEXT NOT NULL,
			status TEXT NOT NULL,
			duration INTEGER,
			error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_test_name
		 ON test_history(test_name)`,

		`CREATE INDEX IF NOT EXISTS idx_test_run
		 ON test_history(run_id)`,
	}

	for i, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

// SaveRun stores a completed run record.
func (d *Database) SaveRun(run *RunRecord) error {
	query := `
		INSERT INTO runs (
			id, timestamp, duration, total_tests,
			passed_tests, failed_tests, skipped_tests,
			success_rate, environment
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(query,
		run.ID,
		run.Timestamp.Format(time.RFC3339),
		run.Duration,
		run.TotalTests,
		run.PassedTests,
		run.FailedTests,
		run.SkippedTests,
		run.SuccessRate,
		run.Environment,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveTestResult stores one test outcome within a run.
func (d *Database) SaveTestResult(row *TestRow) error {
	query := `
		INSERT INTO test_history (
			run_id, test_name, source_file, status, duration, error
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(query,
		row.RunID,
		row.TestName,
		row.SourceFile,
		row.Status,
		row.Duration,
		row.Error,
	)
	return err
}

// FlakyScore calculates how flaky a test has been over the trailing
// window (0.0 = stable, 1.0 = very flaky). It peaks when the failure
// rate is around 50%.
func (d *Database) FlakyScore(testName string, days int) (float64, error) {
	query := `
		SELECT
			COUNT(*) as total_runs,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) as failed_runs
		FROM test_history th
		JOIN runs r ON th.run_id = r.id
		WHERE th.test_name = ?
		AND r.timestamp >= datetime('now', '-' || ? || ' days')
	`

	var totalRuns int
	var failedRuns sql.NullInt64
	if err := d.db.QueryRow(query, testName, days).Scan(&totalRuns, &failedRuns); err != nil {
		return 0.0, err
	}

	if totalRuns < 3 {
		return 0.0, nil // Not enough data
	}

	failureRate := float64(failedRuns.Int64) / float64(totalRuns)
	score := 1.0 - (2.0 * abs(failureRate-0.5))
	return score, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// GetRunTrend retrieves trend data for the last N days, oldest first.
func (d *Database) GetRunTrend(days int) ([]TrendPoint, error) {
	query := `
		SELECT
			timestamp,
			success_rate,
			duration,
			total_tests,
			passed_tests,
			failed_tests
		FROM runs
		WHERE timestamp >= datetime('now', '-' || ? || ' days')
		ORDER BY timestamp ASC
	`

	rows, err := d.db.Query(query, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trend []TrendPoint
	for rows.Next() {
		var tp TrendPoint
		var timestamp string

		if err := rows.Scan(
			&timestamp,
			&tp.SuccessRate,
			&tp.Duration,
			&tp.Total,
			&tp.Passed,
			&tp.Failed,
		); err != nil {
			continue
		}

		tp.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
		trend = append(trend, tp)
	}

	return trend, nil
}

// CleanupOldData removes data older than the retention window.
func (d *Database) CleanupOldData(retentionDays int) error {
	tables := []string{"test_history", "runs"}

	for _, table := range tables {
		query := fmt.Sprintf(`
			DELETE FROM %s
			WHERE created_at < datetime('now', '-' || ? || ' days')
		`, table)

		result, err := d.db.Exec(query, retentionDays)
		if err != nil {
			logger.Warnf("Failed to cleanup %s: %v", table, err)
			continue
		}

		rows, _ := result.RowsAffected()
		logger.Debugf("Cleaned up %d old records from %s", rows, table)
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
