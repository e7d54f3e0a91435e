package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/pradapjackie/super-pancake-orchestrator/pkg/broadcast"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/config"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/discovery"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/logger"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/models"
)

// Runner executes a test selection. The orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, selection models.Selection) (*models.RunOutcome, error)
}

// Server exposes the run dashboard API: test discovery, run triggering
// and the live progress websocket.
type Server struct {
	config      *config.Config
	scanner     *discovery.Scanner
	runner      Runner
	hub         *broadcast.Hub
	projectRoot string

	mu      sync.Mutex
	running bool
}

// runRequest is the POST /api/run payload.
type runRequest struct {
	Tests []string `json:"tests"`
}

// NewServer wires the API server.
func NewServer(cfg *config.Config, scanner *discovery.Scanner, runner Runner, hub *broadcast.Hub, projectRoot string) *Server {
	return &Server{
		config:      cfg,
		scanner:     scanner,
		runner:      runner,
		hub:         hub,
		projectRoot: projectRoot,
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/test-files", s.handleTestFiles).Methods("GET")
	r.HandleFunc("/api/test-cases", s.handleTestCases).Methods("GET")
	r.HandleFunc("/api/run", s.handleRun).Methods("POST")
	r.HandleFunc("/ws", s.hub.HandleWebSocket)
	r.HandleFunc("/report", s.handleReport).Methods("GET")
	return r
}

// Start serves the API until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	logger.Infof("Dashboard API listening on http://%s", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
	}
	return srv.ListenAndServe()
}

func (s *Server) handleTestFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.scanner.ListTestFiles(s.projectRoot)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"testFiles": files})
}

func (s *Server) handleTestCases(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if file == "" {
		writeError(w, http.StatusBadRequest, "missing file parameter")
		return
	}

	resolved, err := s.resolveProjectPath(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cases, err := s.scanner.ListTestCases(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "test file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"file": file, "testCases": cases})
}

// handleRun accepts a selection and starts the run in the background.
// The caller follows progress over the websocket; the response only
// acknowledges acceptance. One run at a time: the engine owns the
// browser debug port exclusively.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	selection, err := models.ParseSelection(req.Tests)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		if _, err := s.runner.Run(context.Background(), selection); err != nil {
			logger.Errorf("Run failed: %v", err)
			s.hub.Publish(fmt.Sprintf("Run failed: %v", err))
			s.hub.Publish(broadcast.CompletionMarker)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"tests":  len(selection),
	})
}

// handleReport serves the generated report, or a placeholder page when
// no run has produced one yet.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(s.config.ReportPath); os.IsNotExist(err) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, placeholderPage)
		return
	}
	http.ServeFile(w, r, s.config.ReportPath)
}

// resolveProjectPath confines a client-supplied relative path to the
// project root.
func (s *Server) resolveProjectPath(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed")
	}
	resolved := filepath.Join(s.projectRoot, filepath.FromSlash(rel))

	root, err := filepath.Abs(s.projectRoot)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", err
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the project root")
	}
	return resolved, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

const placeholderPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Test Report</title></head>
<body>
<h1>No report yet</h1>
<p>Run a test selection to generate the report.</p>
</body>
</html>
`
