package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pradapjackie/super-pancake-orchestrator/pkg/config"
)

// testCasePattern matches test("...") and it("...") call sites in a
// test source file, with single, double or backtick quoting. It is a
// lexical scan, not a parse: dynamically generated titles are not
// discoverable and are simply absent from the listing.
var testCasePattern = regexp.MustCompile("(?m)\\b(?:test|it)\\s*\\(\\s*['\"`](.+?)['\"`]")

// Scanner enumerates test files and their test cases in a project
// directory.
type Scanner struct {
	config *config.Config
}

// NewScanner creates a scanner for the configured project layout.
func NewScanner(cfg *config.Config) *Scanner {
	return &Scanner{config: cfg}
}

// ListTestFiles walks the project root and returns relative paths of
// every file matching a configured test suffix, sorted. Excluded
// directories and the report store are never descended into.
func (s *Scanner) ListTestFiles(root string) ([]string, error) {
	excluded := make(map[string]bool, len(s.config.ExcludeDirs)+1)
	for _, dir := range s.config.ExcludeDirs {
		excluded[dir] = true
	}
	excluded[filepath.Base(s.config.StoreRoot)] = true

	files := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (excluded[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		for _, suffix := range s.config.TestFileSuffixes {
			if strings.HasSuffix(d.Name(), suffix) {
				rel, relErr := filepath.Rel(root, path)
				if relErr != nil {
					return relErr
				}
				files = append(files, filepath.ToSlash(rel))
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// ListTestCases extracts the test titles declared in one test file, in
// source order, duplicates removed.
func (s *Scanner) ListTestCases(filePath string) ([]string, error) {
	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read test file %s: %w", filePath, err)
	}

	seen := make(map[string]bool)
	titles := []string{}
	for _, match := range testCasePattern.FindAllSubmatch(source, -1) {
		title := string(match[1])
		if seen[title] {
			continue
		}
		seen[title] = true
		titles = append(titles, title)
	}
	return titles, nil
}
