package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/salespipe/internal/core"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 1000
)

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"pipeline": s.pipeline.Gate().Status(),
	})
}

// handleListRuns returns run_log entries, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", defaultHistoryLimit), maxHistoryLimit)

	records, err := s.history.History(r.Context(), s.namespace, limit)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if records == nil {
		records = []core.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Gate().Status())
}

// handleLastRun returns the report of the most recent run started by this
// process.
func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	report, ok := s.pipeline.Last()
	if !ok {
		respondErrorJSON(w, core.UserMessage{
			Message: "No pipeline run has finished yet.",
			Action:  "Trigger a run with POST /api/pipeline.",
			Code:    "RUN404",
		}, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// TriggerResponse acknowledges a started run.
type TriggerResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// handleTriggerRun starts a run in the background. 409 when one is in progress.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	runID, err := s.pipeline.Start(s.runCtx, "http")
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Location", "/api/pipeline/last")
	writeJSON(w, http.StatusAccepted, TriggerResponse{
		RunID:  runID.String(),
		Status: "started",
	})
}
