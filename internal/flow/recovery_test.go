package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// failSession drives a session into the failed state and returns the
// resumption token together with the facts snapshotted at failure time.
func failSession(t *testing.T, o *Orchestrator, client *mockGenAI) (string, models.HabitFacts) {
	t.Helper()

	turn, err := o.InitiateAssessment(context.Background(), "user-1", "habit-1", "en")
	if err != nil {
		t.Fatalf("InitiateAssessment: %v", err)
	}

	partial := models.HabitFacts{
		models.FactActionDefinition: {Value: "run", Uncertainty: models.UncertaintyStated},
		models.FactActualFrequency:  {Value: "daily", Uncertainty: models.UncertaintyStated},
	}
	mid, err := o.ContinueAssessment(context.Background(), turn.SessionID, "I run daily")
	if err != nil {
		t.Fatalf("ContinueAssessment: %v", err)
	}
	if mid.Step != models.StepAudit {
		t.Fatalf("expected session still in audit, got %s", mid.Step)
	}

	final, err := o.ContinueAssessment(context.Background(), turn.SessionID, "hello?")
	if err != nil {
		t.Fatalf("ContinueAssessment: %v", err)
	}
	if final.Step != models.StepFailed {
		t.Fatalf("expected failure, got %s", final.Step)
	}
	return final.ResumptionToken, partial
}

func newFailingOrchestratorScript(partial models.HabitFacts) *mockGenAI {
	return newMockGenAI(
		mockReply{text: "What does the habit involve?"},
		mockReply{text: factsBlock(partial)},
		mockReply{err: errRateLimited},
	)
}

func TestResumeAssessmentRoundTrip(t *testing.T) {
	partial := models.HabitFacts{
		models.FactActionDefinition: {Value: "run", Uncertainty: models.UncertaintyStated},
		models.FactActualFrequency:  {Value: "daily", Uncertainty: models.UncertaintyStated},
	}
	client := newFailingOrchestratorScript(partial)
	o, st := newTestOrchestrator(t, client)

	token, _ := failSession(t, o, client)

	restored, err := o.ResumeAssessment(token, "user-1")
	if err != nil {
		t.Fatalf("ResumeAssessment: %v", err)
	}
	if restored.Step != models.StepAudit {
		t.Errorf("restored step = %s, want audit", restored.Step)
	}
	for id := range partial {
		fv, ok := restored.Facts[id]
		if !ok {
			t.Fatalf("fact %s lost across resumption", id)
		}
		if fv.Uncertainty != models.UncertaintyStated {
			t.Errorf("fact %s uncertainty = %s, want U0", id, fv.Uncertainty)
		}
	}

	// The restored session must be a new id sharing the old conversation.
	record, _ := st.GetFailedAssessmentByToken(token)
	if restored.ID == record.SessionID {
		t.Error("resumption must mint a new session id")
	}
	if restored.ConversationID != record.ConversationID {
		t.Error("resumption must inherit the conversation id")
	}
	if record.Status != models.FailedStatusResumed {
		t.Errorf("record status = %s, want resumed", record.Status)
	}

	history, err := st.GetConversationHistory(restored.ConversationID)
	if err != nil || history == nil {
		t.Fatalf("conversation not restored: %v", err)
	}
	if len(history.Messages) != len(record.History) {
		t.Errorf("restored history length = %d, want %d", len(history.Messages), len(record.History))
	}
}

func TestResumeAssessmentWrongOwner(t *testing.T) {
	partial := models.HabitFacts{
		models.FactActionDefinition: {Value: "run", Uncertainty: models.UncertaintyStated},
		models.FactActualFrequency:  {Value: "daily", Uncertainty: models.UncertaintyStated},
	}
	client := newFailingOrchestratorScript(partial)
	o, _ := newTestOrchestrator(t, client)

	token, _ := failSession(t, o, client)

	if _, err := o.ResumeAssessment(token, "someone-else"); !errors.Is(err, models.ErrCannotResume) {
		t.Fatalf("err = %v, want ErrCannotResume", err)
	}
}

func TestResumeAssessmentUnknownToken(t *testing.T) {
	o, _ := newTestOrchestrator(t, newMockGenAI(mockReply{text: "hello"}))
	if _, err := o.ResumeAssessment("fa_nonexistent", "user-1"); !errors.Is(err, models.ErrCannotResume) {
		t.Fatalf("err = %v, want ErrCannotResume", err)
	}
}

func TestResumeAssessmentExpired(t *testing.T) {
	partial := models.HabitFacts{
		models.FactActionDefinition: {Value: "run", Uncertainty: models.UncertaintyStated},
		models.FactActualFrequency:  {Value: "daily", Uncertainty: models.UncertaintyStated},
	}
	client := newFailingOrchestratorScript(partial)
	o, st := newTestOrchestrator(t, client)

	token, _ := failSession(t, o, client)

	// Age the record past its expiry.
	record, _ := st.GetFailedAssessmentByToken(token)
	record.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	if err := st.SaveFailedAssessment(*record); err != nil {
		t.Fatalf("SaveFailedAssessment: %v", err)
	}

	if _, err := o.ResumeAssessment(token, "user-1"); !errors.Is(err, models.ErrCannotResume) {
		t.Fatalf("err = %v, want ErrCannotResume", err)
	}

	record, _ = st.GetFailedAssessmentByToken(token)
	if record.Status != models.FailedStatusExpired {
		t.Errorf("record status = %s, want expired as a side effect", record.Status)
	}
}

func TestResumeAssessmentOnlyOnce(t *testing.T) {
	partial := models.HabitFacts{
		models.FactActionDefinition: {Value: "run", Uncertainty: models.UncertaintyStated},
		models.FactActualFrequency:  {Value: "daily", Uncertainty: models.UncertaintyStated},
	}
	client := newFailingOrchestratorScript(partial)
	o, _ := newTestOrchestrator(t, client)

	token, _ := failSession(t, o, client)

	if _, err := o.ResumeAssessment(token, "user-1"); err != nil {
		t.Fatalf("first resume: %v", err)
	}
	if _, err := o.ResumeAssessment(token, "user-1"); !errors.Is(err, models.ErrCannotResume) {
		t.Fatalf("second resume err = %v, want ErrCannotResume", err)
	}
}

func TestResumedSessionCanContinueToCompletion(t *testing.T) {
	partial := models.HabitFacts{
		models.FactActionDefinition: {Value: "run", Uncertainty: models.UncertaintyStated},
		models.FactActualFrequency:  {Value: "daily", Uncertainty: models.UncertaintyStated},
	}
	client := newMockGenAI(
		mockReply{text: "What does the habit involve?"},
		mockReply{text: factsBlock(partial)},
		mockReply{err: errRateLimited},
		mockReply{err: errRateLimited},
		mockReply{err: errRateLimited},
		mockReply{text: factsBlock(fullyStatedFacts())},
	)
	o, _ := newTestOrchestrator(t, client)

	token, _ := failSession(t, o, client)

	restored, err := o.ResumeAssessment(token, "user-1")
	if err != nil {
		t.Fatalf("ResumeAssessment: %v", err)
	}

	final, err := o.ContinueAssessment(context.Background(), restored.ID, "picking up where we left off")
	if err != nil {
		t.Fatalf("ContinueAssessment after resume: %v", err)
	}
	if final.Step != models.StepCompleted {
		t.Fatalf("step = %s, want completed", final.Step)
	}

	quota, _ := o.QuotaStatus("user-1")
	if quota.Used != 1 {
		t.Errorf("quota used = %d, want 1 despite the failure detour", quota.Used)
	}
}
