package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pradapjackie/super-pancake-orchestrator/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), 20)
}

func TestStore_ArtifactPath(t *testing.T) {
	s := New("test-report", 20)

	tests := []struct {
		name     string
		filePath string
		expected string
	}{
		{
			name:     "file in a subdirectory",
			filePath: filepath.Join("tests", "login.test.js"),
			expected: filepath.Join("test-report", "results", "tests", "login.test", "results.json"),
		},
		{
			name:     "file at the project root",
			filePath: "smoke.test.js",
			expected: filepath.Join("test-report", "results", "root", "smoke.test", "results.json"),
		},
		{
			name:     "nested directories are flattened into one group",
			filePath: filepath.Join("tests", "ui", "form.test.js"),
			expected: filepath.Join("test-report", "results", "tests_ui", "form.test", "results.json"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.ArtifactPath(tt.filePath); got != tt.expected {
				t.Errorf("ArtifactPath(%q) = %q, want %q", tt.filePath, got, tt.expected)
			}
		})
	}
}

func TestStore_ResetClearsArtifacts(t *testing.T) {
	s := newTestStore(t)

	artifact := &models.ResultArtifact{
		TestResults: []models.FileResult{{TestFilePath: "a.test.js"}},
	}
	if err := s.WriteArtifact("a.test.js", artifact); err != nil {
		t.Fatalf("WriteArtifact() error = %v", err)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	paths, err := s.Walk()
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected empty store after reset, found %v", paths)
	}
}

func TestStore_WalkFindsArtifacts(t *testing.T) {
	s := newTestStore(t)

	files := []string{
		filepath.Join("tests", "a.test.js"),
		filepath.Join("tests", "b.test.js"),
		"c.test.js",
	}
	for _, f := range files {
		if err := s.WriteArtifact(f, &models.ResultArtifact{}); err != nil {
			t.Fatalf("WriteArtifact(%q) error = %v", f, err)
		}
	}

	paths, err := s.Walk()
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(paths) != 3 {
		t.Errorf("Walk() found %d artifacts, want 3", len(paths))
	}
}

func TestStore_WalkMissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist"), 20)

	paths, err := s.Walk()
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected no artifacts, got %v", paths)
	}
}

func TestStore_WalkIgnoresNonJSON(t *testing.T) {
	s := newTestStore(t)
	if err := s.PurgeFile("a.test.js"); err != nil {
		t.Fatalf("PurgeFile() error = %v", err)
	}
	notes := filepath.Join(s.ArtifactDir("a.test.js"), "notes.txt")
	if err := os.WriteFile(notes, []byte("scratch"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	paths, err := s.Walk()
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected non-JSON files to be skipped, got %v", paths)
	}
}

func TestStore_PurgeFileRemovesPriorArtifact(t *testing.T) {
	s := newTestStore(t)

	if err := s.WriteArtifact("a.test.js", &models.ResultArtifact{}); err != nil {
		t.Fatalf("WriteArtifact() error = %v", err)
	}
	if err := s.PurgeFile("a.test.js"); err != nil {
		t.Fatalf("PurgeFile() error = %v", err)
	}

	if _, err := os.Stat(s.ArtifactPath("a.test.js")); !os.IsNotExist(err) {
		t.Errorf("expected artifact to be purged, stat err = %v", err)
	}
	if _, err := os.Stat(s.ArtifactDir("a.test.js")); err != nil {
		t.Errorf("expected artifact dir to be recreated, stat err = %v", err)
	}
}

func TestHistory_AppendAndPassRate(t *testing.T) {
	s := newTestStore(t)

	s.AppendHistory(map[string]models.Status{"login works": models.StatusPassed})
	s.AppendHistory(map[string]models.Status{"login works": models.StatusFailed})
	s.AppendHistory(map[string]models.Status{"login works": models.StatusPassed})

	history := s.ReadHistory()
	rate, runs := history.PassRate("login works")
	if runs != 3 {
		t.Fatalf("expected 3 runs, got %d", runs)
	}
	if rate < 0.66 || rate > 0.67 {
		t.Errorf("PassRate() = %v, want ~0.667", rate)
	}
}

func TestHistory_CapsEntries(t *testing.T) {
	s := New(t.TempDir(), 5)

	for i := 0; i < 8; i++ {
		s.AppendHistory(map[string]models.Status{"t1": models.StatusPassed})
	}

	history := s.ReadHistory()
	if got := len(history.Entries["t1"]); got != 5 {
		t.Errorf("expected history capped at 5 entries, got %d", got)
	}
}

func TestHistory_CorruptFileDegradesToEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(s.Root(), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(s.HistoryPath(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	history := s.ReadHistory()
	if len(history.Entries) != 0 {
		t.Errorf("expected empty history for corrupt file, got %v", history.Entries)
	}

	_, runs := history.PassRate("anything")
	if runs != 0 {
		t.Errorf("expected zero runs, got %d", runs)
	}
}
