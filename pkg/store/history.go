package store

import (
	"encoding/json"
	"os"

	"github.com/pradapjackie/super-pancake-orchestrator/pkg/logger"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/models"
)

// History is the rolling per-test-name outcome log used for flakiness
// detection. Each entry list holds the most recent outcomes, newest
// last, capped at the store's history cap.
type History struct {
	Entries map[string][]string `json:"entries"`
}

// PassRate returns the rolling pass rate for a test name and the
// number of recorded runs. Zero runs yields a zero rate.
func (h *History) PassRate(testName string) (float64, int) {
	outcomes := h.Entries[testName]
	if len(outcomes) == 0 {
		return 0.0, 0
	}

	passed := 0
	for _, outcome := range outcomes {
		if models.Status(outcome) == models.StatusPassed {
			passed++
		}
	}
	return float64(passed) / float64(len(outcomes)), len(outcomes)
}

// ReadHistory loads the history log. All failures degrade to an empty
// history so flakiness analysis falls back to heuristics instead of
// aborting.
func (s *Store) ReadHistory() *History {
	history := &History{Entries: make(map[string][]string)}

	data, err := os.ReadFile(s.HistoryPath())
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("Failed to read test history: %v", err)
		}
		return history
	}

	if err := json.Unmarshal(data, history); err != nil {
		logger.Warnf("Failed to parse test history, starting fresh: %v", err)
		return &History{Entries: make(map[string][]string)}
	}
	if history.Entries == nil {
		history.Entries = make(map[string][]string)
	}
	return history
}

// AppendHistory records the latest outcome for each test name,
// read-then-append, keeping only the most recent entries per test.
// Write failures are logged and swallowed; history is best-effort.
func (s *Store) AppendHistory(outcomes map[string]models.Status) {
	if len(outcomes) == 0 {
		return
	}

	history := s.ReadHistory()
	for name, status := range outcomes {
		entries := append(history.Entries[name], string(status))
		if len(entries) > s.historyCap {
			entries = entries[len(entries)-s.historyCap:]
		}
		history.Entries[name] = entries
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		logger.Warnf("Failed to marshal test history: %v", err)
		return
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		logger.Warnf("Failed to create store root for history: %v", err)
		return
	}
	if err := os.WriteFile(s.HistoryPath(), data, 0644); err != nil {
		logger.Warnf("Failed to write test history: %v", err)
	}
}
