package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/audithq/site-auditor/internal/audit"
	"github.com/audithq/site-auditor/internal/orchestrator"
	"github.com/audithq/site-auditor/internal/worker"
)

type analysisRequest struct {
	URL                 string `json:"url"`
	UserID              string `json:"userId"`
	Priority            int    `json:"priority"`
	IncludeImages       bool   `json:"includeImages"`
	CheckMobileFriendly bool   `json:"checkMobileFriendly"`
}

type singleAnalysisRequest struct {
	URL          string             `json:"url"`
	UserID       string             `json:"userId"`
	AnalysisType audit.AnalyzerType `json:"analysisType"`
}

func (s *Server) startAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	session, err := s.orchestrator.StartSession(r.Context(), req.UserID, req.URL, orchestrator.Options{
		Priority:            req.Priority,
		IncludeImages:       req.IncludeImages,
		CheckMobileFriendly: req.CheckMobileFriendly,
	})
	if err != nil {
		if errors.Is(err, audit.ErrInvalidURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, session)
}

func (s *Server) startSingleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req singleAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	taskID, err := s.orchestrator.StartTask(r.Context(), req.UserID, req.URL, req.AnalysisType, orchestrator.Options{})
	if err != nil {
		if errors.Is(err, audit.ErrInvalidURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	view, err := s.progress.Session(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if userID := r.URL.Query().Get("user_id"); userID != "" && view.UserID != "" && view.UserID != userID {
		writeError(w, http.StatusForbidden, "session belongs to another user")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type resultAnalysis struct {
	Structural json.RawMessage `json:"structural,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	Technical  json.RawMessage `json:"technical,omitempty"`
}

// resultResponse reports completion as a percentage, each analyzer field
// contributing a third once present.
type resultResponse struct {
	UserID     string         `json:"userId"`
	URL        string         `json:"url"`
	Title      string         `json:"title"`
	IsComplete bool           `json:"isComplete"`
	Progress   int            `json:"progress"`
	Analysis   resultAnalysis `json:"analysis"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func newResultResponse(record audit.Record) resultResponse {
	present := 0
	for _, field := range [][]byte{record.Structural, record.Content, record.Technical} {
		if len(field) > 0 {
			present++
		}
	}
	return resultResponse{
		UserID:     record.UserID,
		URL:        record.URL,
		Title:      record.Title,
		IsComplete: present == 3,
		Progress:   int(math.Round(float64(present) * 100.0 / 3.0)),
		Analysis: resultAnalysis{
			Structural: record.Structural,
			Content:    record.Content,
			Technical:  record.Technical,
		},
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	record, err := s.records.Get(r.Context(), userID, url)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no analysis record for this url")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load analysis record")
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(record))
}

// getTaskResult serves a single task's cached result envelope. The caller
// must present the owning user ID; other users get 403 rather than 404 so
// task IDs cannot be probed for existence cheaply.
func (s *Server) getTaskResult(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	raw, err := s.cache.Get(r.Context(), worker.ResultCacheKey(taskID))
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task result not found or expired")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load task result")
		return
	}

	var envelope worker.ResultEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		writeError(w, http.StatusInternalServerError, "corrupt task result")
		return
	}
	if envelope.UserID != userID {
		writeError(w, http.StatusForbidden, "task belongs to another user")
		return
	}
	writeJSON(w, http.StatusOK, envelope)
}
