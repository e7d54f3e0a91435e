package collector

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pradapjackie/super-pancake-orchestrator/pkg/models"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(t.TempDir(), 20)
}

func writeArtifact(t *testing.T, st *store.Store, filePath string, artifact *models.ResultArtifact) {
	t.Helper()
	if err := st.WriteArtifact(filePath, artifact); err != nil {
		t.Fatalf("WriteArtifact(%q) error = %v", filePath, err)
	}
}

func TestCollect_FlattensAndCanonicalizes(t *testing.T) {
	st := newTestStore(t)
	writeArtifact(t, st, "login.test.js", &models.ResultArtifact{
		Browser:     "chrome",
		Environment: "local",
		Framework:   "super-pancake",
		EndTime:     1700000000000,
		TestResults: []models.FileResult{{
			TestFilePath: "login.test.js",
			AssertionResults: []models.RawTestRecord{
				{Title: "login works", Status: "pass", Duration: 120, Invocations: 3},
				{Title: "logout works", Status: "weird-vendor-label"},
			},
		}},
	})

	records, err := New(st).Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	login := records[0]
	if login.TestName != "login works" {
		t.Fatalf("unexpected record order: %+v", records)
	}
	if login.Status != models.StatusPassed {
		t.Errorf("Status = %v, want passed", login.Status)
	}
	if login.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2 (invocations-1)", login.RetryCount)
	}
	if login.Browser != "chrome" || login.Environment != "local" {
		t.Errorf("artifact context not carried: %+v", login)
	}
	if login.Metadata.Framework != "super-pancake" {
		t.Errorf("Metadata.Framework = %q, want super-pancake", login.Metadata.Framework)
	}
	if login.ID == "" {
		t.Error("expected generated record ID")
	}

	if records[1].Status != models.StatusUnknown {
		t.Errorf("unmapped vendor status should be unknown, got %v", records[1].Status)
	}
	if records[1].RetryCount != 0 {
		t.Errorf("RetryCount without invocations = %d, want 0", records[1].RetryCount)
	}
}

func TestCollect_SkipsMalformedArtifacts(t *testing.T) {
	st := newTestStore(t)
	writeArtifact(t, st, "good.test.js", &models.ResultArtifact{
		TestResults: []models.FileResult{{
			TestFilePath:     "good.test.js",
			AssertionResults: []models.RawTestRecord{{Title: "t1", Status: "passed"}},
		}},
	})

	if err := st.PurgeFile("bad.test.js"); err != nil {
		t.Fatalf("PurgeFile() error = %v", err)
	}
	broken := st.ArtifactPath("bad.test.js")
	if err := os.WriteFile(broken, []byte("{truncated"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	records, err := New(st).Collect()
	if err != nil {
		t.Fatalf("Collect() should not abort on malformed files, got %v", err)
	}
	if len(records) != 1 || records[0].TestName != "t1" {
		t.Errorf("expected only the valid record, got %+v", records)
	}
}

func TestCollect_DedupPriority(t *testing.T) {
	tests := []struct {
		name               string
		first, second      models.RawTestRecord
		wantIndividualTest bool
		wantLogs           int
	}{
		{
			name:               "individual without logs beats suite-level with logs",
			first:              models.RawTestRecord{Title: "login works", Status: "failed", Logs: []string{"console: boom"}},
			second:             models.RawTestRecord{Title: "login works", Status: "failed", IndividualTest: true},
			wantIndividualTest: true,
			wantLogs:           0,
		},
		{
			name:               "individual with logs beats everything",
			first:              models.RawTestRecord{Title: "login works", Status: "passed", IndividualTest: true},
			second:             models.RawTestRecord{Title: "login works", Status: "passed", IndividualTest: true, Logs: []string{"trace"}},
			wantIndividualTest: true,
			wantLogs:           1,
		},
		{
			name:               "suite-level with logs beats suite-level without",
			first:              models.RawTestRecord{Title: "login works", Status: "passed"},
			second:             models.RawTestRecord{Title: "login works", Status: "passed", Logs: []string{"trace"}},
			wantIndividualTest: false,
			wantLogs:           1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			writeArtifact(t, st, "login.test.js", &models.ResultArtifact{
				TestResults: []models.FileResult{{
					TestFilePath:     "login.test.js",
					AssertionResults: []models.RawTestRecord{tt.first, tt.second},
				}},
			})

			records, err := New(st).Collect()
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if len(records) != 1 {
				t.Fatalf("expected a single survivor, got %d", len(records))
			}
			if records[0].IndividualTest != tt.wantIndividualTest {
				t.Errorf("survivor IndividualTest = %v, want %v", records[0].IndividualTest, tt.wantIndividualTest)
			}
			if len(records[0].Logs) != tt.wantLogs {
				t.Errorf("survivor has %d logs, want %d", len(records[0].Logs), tt.wantLogs)
			}
		})
	}
}

func TestCollect_Idempotent(t *testing.T) {
	st := newTestStore(t)
	writeArtifact(t, st, filepath.Join("tests", "a.test.js"), &models.ResultArtifact{
		EndTime: 1700000000000,
		TestResults: []models.FileResult{{
			TestFilePath: "tests/a.test.js",
			AssertionResults: []models.RawTestRecord{
				{Title: "t1", Status: "passed", Duration: 10},
				{Title: "t1", Status: "failed", IndividualTest: true},
				{Title: "t2", Status: "skipped"},
			},
		}},
	})

	c := New(st)
	first, err := c.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	second, err := c.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("collection is not idempotent:\nfirst = %+v\nsecond = %+v", first, second)
	}
}
