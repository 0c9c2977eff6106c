// Package api provides HTTP handlers for HabitAudit endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/HabitAudit/internal/flow"
	"github.com/BTreeMap/HabitAudit/internal/models"
)

// Orchestrator is the slice of the assessment orchestrator the HTTP layer
// depends on. Implemented by *flow.Orchestrator and by test stubs.
type Orchestrator interface {
	InitiateAssessment(ctx context.Context, userID, habitID, language string) (*flow.TurnResult, error)
	ContinueAssessment(ctx context.Context, sessionID, userMessage string) (*flow.TurnResult, error)
	ResumeAssessment(token, userID string) (*models.AssessmentSession, error)
	GetSession(sessionID string) (*models.AssessmentSession, error)
	GetResult(habitID string) (*models.AssessmentResult, error)
	AuditTrail(habitID string) ([]models.AuditTrailEntry, error)
	QuotaStatus(userID string) (models.QuotaStatus, error)
	GetVOIQuestions(facts models.HabitFacts) []models.VOIQuestion
}

type initiateRequest struct {
	UserID   string `json:"user_id"`
	HabitID  string `json:"habit_id"`
	Language string `json:"language,omitempty"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type resumeRequest struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

type voiRequest struct {
	Facts models.HabitFacts `json:"facts"`
}

func (s *Server) initiateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.initiateHandler: processing request", "path", r.URL.Path)

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.initiateHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.UserID == "" || req.HabitID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required fields: user_id, habit_id"))
		return
	}

	turn, err := s.orchestrator.InitiateAssessment(r.Context(), req.UserID, req.HabitID, req.Language)
	if err != nil {
		s.writeOrchestratorError(w, "initiateHandler", err)
		return
	}
	slog.Info("Server.initiateHandler: assessment started", "sessionID", turn.SessionID, "userID", req.UserID)
	writeJSONResponse(w, http.StatusCreated, models.Success(turn))
}

func (s *Server) continueHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sessionID := r.PathValue("id")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.continueHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Message == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: message"))
		return
	}

	turn, err := s.orchestrator.ContinueAssessment(r.Context(), sessionID, req.Message)
	if err != nil {
		s.writeOrchestratorError(w, "continueHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turn))
}

func (s *Server) resumeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.resumeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Token == "" || req.UserID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required fields: token, user_id"))
		return
	}

	session, err := s.orchestrator.ResumeAssessment(req.Token, req.UserID)
	if err != nil {
		s.writeOrchestratorError(w, "resumeHandler", err)
		return
	}
	slog.Info("Server.resumeHandler: assessment resumed", "sessionID", session.ID, "userID", req.UserID)
	writeJSONResponse(w, http.StatusOK, models.Success(session))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.orchestrator.GetSession(r.PathValue("id"))
	if err != nil {
		s.writeOrchestratorError(w, "getSessionHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(session))
}

func (s *Server) resultHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.orchestrator.GetResult(r.PathValue("id"))
	if err != nil {
		s.writeOrchestratorError(w, "resultHandler", err)
		return
	}
	if result == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No completed assessment for this habit"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) auditTrailHandler(w http.ResponseWriter, r *http.Request) {
	trail, err := s.orchestrator.AuditTrail(r.PathValue("id"))
	if err != nil {
		s.writeOrchestratorError(w, "auditTrailHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(trail))
}

func (s *Server) quotaHandler(w http.ResponseWriter, r *http.Request) {
	quota, err := s.orchestrator.QuotaStatus(r.PathValue("id"))
	if err != nil {
		s.writeOrchestratorError(w, "quotaHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(quota))
}

func (s *Server) voiHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	var req voiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.voiHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	questions := s.orchestrator.GetVOIQuestions(req.Facts)
	writeJSONResponse(w, http.StatusOK, models.Success(questions))
}

// writeOrchestratorError maps the orchestrator's error taxonomy onto HTTP
// status codes.
func (s *Server) writeOrchestratorError(w http.ResponseWriter, handler string, err error) {
	var quotaErr *models.QuotaExhaustedError
	switch {
	case errors.As(err, &quotaErr):
		slog.Info("Server."+handler+": quota exhausted", "used", quotaErr.Used, "limit", quotaErr.Limit)
		writeJSONResponse(w, http.StatusTooManyRequests, models.Error(quotaErr.Error()))
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrHabitNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
	case errors.Is(err, models.ErrSessionBusy):
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	case errors.Is(err, models.ErrCannotResume):
		writeJSONResponse(w, http.StatusGone, models.Error(err.Error()))
	default:
		slog.Error("Server."+handler+": internal error", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}
