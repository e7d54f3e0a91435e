package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pradapjackie/super-pancake-orchestrator/pkg/models"
)

// ArtifactFileName is the file each engine invocation writes into its
// per-file subdirectory.
const ArtifactFileName = "results.json"

// Store is the directory-tree-backed result store. It is the single
// durable source of truth for a run: one JSON artifact per executed
// test file under <root>/results/<group>/<stem>/results.json, plus the
// rolling flakiness history at <root>/test-history.json.
type Store struct {
	root       string
	historyCap int
}

// New creates a store rooted at the given directory.
func New(root string, historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = 20
	}
	return &Store{root: root, historyCap: historyCap}
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// ResultsDir returns the directory holding per-file artifacts.
func (s *Store) ResultsDir() string {
	return filepath.Join(s.root, "results")
}

// HistoryPath returns the rolling flakiness history file.
func (s *Store) HistoryPath() string {
	return filepath.Join(s.root, "test-history.json")
}

// Reset deletes every pre-existing artifact and recreates an empty
// results tree so stale results never leak into a new run. A failure
// here means the store root is unusable and is fatal to the run.
func (s *Store) Reset() error {
	resultsDir := s.ResultsDir()
	if err := os.RemoveAll(resultsDir); err != nil {
		return fmt.Errorf("failed to clear results directory: %w", err)
	}
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	return nil
}

// ArtifactDir returns the per-file artifact subdirectory for a test
// file path.
func (s *Store) ArtifactDir(filePath string) string {
	group := filepath.Dir(filePath)
	if group == "." || group == string(filepath.Separator) {
		group = "root"
	} else {
		group = strings.ReplaceAll(filepath.ToSlash(group), "/", "_")
	}

	base := filepath.Base(filePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	return filepath.Join(s.ResultsDir(), group, stem)
}

// ArtifactPath returns the expected artifact file for a test file.
func (s *Store) ArtifactPath(filePath string) string {
	return filepath.Join(s.ArtifactDir(filePath), ArtifactFileName)
}

// PurgeFile removes and recreates the artifact subdirectory for one
// test file, so each run of that file starts from a clean slate.
func (s *Store) PurgeFile(filePath string) error {
	dir := s.ArtifactDir(filePath)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to purge artifact dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact dir %s: %w", dir, err)
	}
	return nil
}

// WriteArtifact stores an artifact for a test file. Used by the
// orchestrator to synthesize failure artifacts when the engine
// produced none.
func (s *Store) WriteArtifact(filePath string, artifact *models.ResultArtifact) error {
	if err := os.MkdirAll(s.ArtifactDir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	if err := os.WriteFile(s.ArtifactPath(filePath), data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// Walk returns the flat list of artifact paths under the results tree.
// The traversal is an explicit iterative walk kept separate from
// parsing so the two can be tested independently. A missing results
// directory yields an empty list.
func (s *Store) Walk() ([]string, error) {
	var artifacts []string

	stack := []string{s.ResultsDir()}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) && dir == s.ResultsDir() {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				stack = append(stack, path)
				continue
			}
			if strings.HasSuffix(entry.Name(), ".json") {
				artifacts = append(artifacts, path)
			}
		}
	}

	return artifacts, nil
}
