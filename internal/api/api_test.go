package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/HabitAudit/internal/flow"
	"github.com/BTreeMap/HabitAudit/internal/models"
)

// stubOrchestrator returns canned values so handler tests exercise only the
// HTTP layer: routing, decoding, and status mapping.
type stubOrchestrator struct {
	turn    *flow.TurnResult
	session *models.AssessmentSession
	result  *models.AssessmentResult
	trail   []models.AuditTrailEntry
	quota   models.QuotaStatus
	voi     []models.VOIQuestion
	err     error
}

func (s *stubOrchestrator) InitiateAssessment(ctx context.Context, userID, habitID, language string) (*flow.TurnResult, error) {
	return s.turn, s.err
}

func (s *stubOrchestrator) ContinueAssessment(ctx context.Context, sessionID, userMessage string) (*flow.TurnResult, error) {
	return s.turn, s.err
}

func (s *stubOrchestrator) ResumeAssessment(token, userID string) (*models.AssessmentSession, error) {
	return s.session, s.err
}

func (s *stubOrchestrator) GetSession(sessionID string) (*models.AssessmentSession, error) {
	return s.session, s.err
}

func (s *stubOrchestrator) GetResult(habitID string) (*models.AssessmentResult, error) {
	return s.result, s.err
}

func (s *stubOrchestrator) AuditTrail(habitID string) ([]models.AuditTrailEntry, error) {
	return s.trail, s.err
}

func (s *stubOrchestrator) QuotaStatus(userID string) (models.QuotaStatus, error) {
	return s.quota, s.err
}

func (s *stubOrchestrator) GetVOIQuestions(facts models.HabitFacts) []models.VOIQuestion {
	return s.voi
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not valid JSON: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestInitiateHandler(t *testing.T) {
	stub := &stubOrchestrator{turn: &flow.TurnResult{SessionID: "sess-1", Step: models.StepAudit, Message: "first question"}}
	handler := NewServer(stub).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/assessments", `{"user_id":"user-1","habit_id":"habit-1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("envelope status = %s, want ok", resp.Status)
	}
}

func TestInitiateHandlerValidation(t *testing.T) {
	handler := NewServer(&stubOrchestrator{}).Handler()

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing user", `{"habit_id":"habit-1"}`},
		{"missing habit", `{"user_id":"user-1"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doRequest(t, handler, http.MethodPost, "/assessments", c.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestInitiateHandlerQuotaExhausted(t *testing.T) {
	stub := &stubOrchestrator{err: &models.QuotaExhaustedError{Used: 30, Limit: 30, ResetAt: time.Now().Add(time.Hour)}}
	handler := NewServer(stub).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/assessments", `{"user_id":"user-1","habit_id":"habit-1"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if !strings.Contains(resp.Message, "quota exhausted") {
		t.Errorf("message = %q, want quota detail", resp.Message)
	}
}

func TestContinueHandlerStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"session not found", models.ErrSessionNotFound, http.StatusNotFound},
		{"session busy", models.ErrSessionBusy, http.StatusConflict},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			handler := NewServer(&stubOrchestrator{err: c.err}).Handler()
			rec := doRequest(t, handler, http.MethodPost, "/assessments/sess-1/messages", `{"message":"hello"}`)
			if rec.Code != c.want {
				t.Errorf("status = %d, want %d", rec.Code, c.want)
			}
		})
	}
}

func TestContinueHandlerEmptyMessage(t *testing.T) {
	handler := NewServer(&stubOrchestrator{}).Handler()
	rec := doRequest(t, handler, http.MethodPost, "/assessments/sess-1/messages", `{"message":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestResumeHandler(t *testing.T) {
	stub := &stubOrchestrator{session: &models.AssessmentSession{ID: "sess-2", Step: models.StepAudit}}
	handler := NewServer(stub).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/assessments/resume", `{"token":"fa_abc","user_id":"user-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
}

func TestResumeHandlerCannotResume(t *testing.T) {
	handler := NewServer(&stubOrchestrator{err: models.ErrCannotResume}).Handler()
	rec := doRequest(t, handler, http.MethodPost, "/assessments/resume", `{"token":"fa_abc","user_id":"user-1"}`)
	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", rec.Code)
	}
}

func TestResultHandlerNotFound(t *testing.T) {
	handler := NewServer(&stubOrchestrator{}).Handler()
	rec := doRequest(t, handler, http.MethodGet, "/habits/habit-1/result", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestQuotaHandler(t *testing.T) {
	stub := &stubOrchestrator{quota: models.QuotaStatus{UserID: "user-1", Used: 3, Limit: 30}}
	handler := NewServer(stub).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/users/user-1/quota", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result shape unexpected: %T", resp.Result)
	}
	if result["used"].(float64) != 3 {
		t.Errorf("used = %v, want 3", result["used"])
	}
}

func TestVOIHandler(t *testing.T) {
	stub := &stubOrchestrator{voi: []models.VOIQuestion{{FactID: models.FactActualFrequency, Question: "How often?", Impact: 13.5, Priority: 5}}}
	handler := NewServer(stub).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/voi/questions", `{"facts":{"F01":{"value":"run","uncertainty_type":"U0"}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	questions, ok := resp.Result.([]interface{})
	if !ok || len(questions) != 1 {
		t.Fatalf("expected 1 question, got %v", resp.Result)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := NewServer(&stubOrchestrator{}).Handler()
	rec := doRequest(t, handler, http.MethodGet, "/assessments", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
