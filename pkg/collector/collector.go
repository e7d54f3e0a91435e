package collector

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/logger"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/models"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/store"
)

// Collector scans the result store and produces the canonical,
// deduplicated record set. It is a pure reader: running it twice over
// an unchanged store yields identical records.
type Collector struct {
	store *store.Store
}

// New creates a collector over a result store.
func New(st *store.Store) *Collector {
	return &Collector{store: st}
}

// Collect walks the store, parses every artifact, flattens the nested
// per-file assertion results into canonical records and deduplicates
// them by (sourceFile, testName). Malformed artifacts are logged and
// skipped; only a failed walk aborts collection.
func (c *Collector) Collect() ([]*models.CanonicalTestRecord, error) {
	paths, err := c.store.Walk()
	if err != nil {
		return nil, fmt.Errorf("failed to scan result store: %w", err)
	}

	var flattened []*models.CanonicalTestRecord
	for _, path := range paths {
		artifact, err := parseArtifact(path)
		if err != nil {
			logger.Warnf("Skipping malformed artifact %s: %v", path, err)
			continue
		}
		flattened = append(flattened, flatten(artifact)...)
	}

	return deduplicate(flattened), nil
}

// parseArtifact reads and decodes one artifact file.
func parseArtifact(path string) (*models.ResultArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	artifact := &models.ResultArtifact{}
	if err := json.Unmarshal(data, artifact); err != nil {
		return nil, fmt.Errorf("failed to parse artifact: %w", err)
	}
	return artifact, nil
}

// flatten converts one artifact into canonical records, one per
// assertion result.
func flatten(artifact *models.ResultArtifact) []*models.CanonicalTestRecord {
	var records []*models.CanonicalTestRecord

	timestamp := time.Time{}
	if artifact.EndTime > 0 {
		timestamp = time.UnixMilli(artifact.EndTime)
	} else if artifact.StartTime > 0 {
		timestamp = time.UnixMilli(artifact.StartTime)
	}

	for _, fileResult := range artifact.TestResults {
		for _, raw := range fileResult.AssertionResults {
			records = append(records, canonicalize(raw, fileResult.TestFilePath, artifact, timestamp))
		}
	}
	return records
}

// canonicalize maps one raw record to the canonical schema.
func canonicalize(raw models.RawTestRecord, sourceFile string, artifact *models.ResultArtifact, timestamp time.Time) *models.CanonicalTestRecord {
	description := raw.FullName
	if description == "" {
		description = raw.Title
	}

	duration := raw.Duration
	if duration < 0 {
		duration = 0
	}

	retryCount := raw.Invocations - 1
	if retryCount < 0 {
		retryCount = 0
	}

	return &models.CanonicalTestRecord{
		// Deterministic per (sourceFile, testName) so repeated
		// collections over the same store agree.
		ID:             uuid.NewSHA1(uuid.NameSpaceOID, []byte(sourceFile+"::"+raw.Title)).String(),
		TestName:       raw.Title,
		Description:    description,
		Status:         models.CanonicalStatus(raw.Status),
		Duration:       duration,
		Timestamp:      timestamp,
		Browser:        artifact.Browser,
		Environment:    artifact.Environment,
		Tags:           raw.Tags,
		Screenshots:    raw.Screenshots,
		Logs:           raw.Logs,
		Error:          strings.Join(raw.FailureMessages, "\n"),
		RetryCount:     retryCount,
		SourceFile:     sourceFile,
		Metadata:       models.RecordMetadata{Framework: artifact.Framework, Version: artifact.Version, Platform: artifact.Platform},
		Steps:          raw.Steps,
		IndividualTest: raw.IndividualTest,
	}
}

// recordPriority ranks duplicate records for the same logical test,
// lower is better. Multiple producers (a suite-level reporter and a
// per-test console-capture reporter) may both write a record for the
// same test; the richer, more specific record must win.
func recordPriority(r *models.CanonicalTestRecord) int {
	switch {
	case r.IndividualTest && len(r.Logs) > 0:
		return 1
	case r.IndividualTest:
		return 2
	case len(r.Logs) > 0:
		return 3
	default:
		return 4
	}
}

// deduplicate keeps exactly one survivor per (sourceFile, testName)
// group, resolved by priority. Ties keep the first record encountered
// so the result is deterministic. Output is sorted by source file then
// test name.
func deduplicate(records []*models.CanonicalTestRecord) []*models.CanonicalTestRecord {
	survivors := make(map[string]*models.CanonicalTestRecord)
	var order []string

	for _, record := range records {
		key := record.Key()
		current, ok := survivors[key]
		if !ok {
			survivors[key] = record
			order = append(order, key)
			continue
		}
		if recordPriority(record) < recordPriority(current) {
			survivors[key] = record
		}
	}

	result := make([]*models.CanonicalTestRecord, 0, len(order))
	for _, key := range order {
		result = append(result, survivors[key])
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SourceFile != result[j].SourceFile {
			return result[i].SourceFile < result[j].SourceFile
		}
		return result[i].TestName < result[j].TestName
	})
	return result
}
