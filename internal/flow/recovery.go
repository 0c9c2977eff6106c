package flow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/HabitAudit/internal/models"
	"github.com/BTreeMap/HabitAudit/internal/util"
)

// handleCallExhaustion converts a spent retry budget into a resumable
// failure: the session is marked failed and a FailedAssessmentRecord
// snapshots everything needed to pick the conversation back up. Quota is
// never consumed on this path.
func (o *Orchestrator) handleCallExhaustion(session *models.AssessmentSession, history models.ConversationHistory, attempts int, class models.ErrorClass, callErr error) (*TurnResult, error) {
	token, err := util.GenerateResumptionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate resumption token: %w", err)
	}

	now := time.Now().UTC()
	record := models.FailedAssessmentRecord{
		Token:          token,
		UserID:         session.UserID,
		HabitID:        session.HabitID,
		SessionID:      session.ID,
		ConversationID: session.ConversationID,
		Facts:          session.Facts.Clone(),
		Step:           session.Step,
		History:        history.Messages,
		ErrorClass:     class,
		RetryCount:     attempts,
		Language:       session.Language,
		Status:         models.FailedStatusFailed,
		FailedAt:       now,
		ExpiresAt:      now.Add(models.FailedAssessmentExpiry),
	}
	if err := o.store.SaveFailedAssessment(record); err != nil {
		return nil, fmt.Errorf("failed to persist failure record: %w", err)
	}

	session.Step = models.StepFailed
	session.UpdatedAt = now
	if err := o.store.SaveSession(*session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Error("Orchestrator.handleCallExhaustion: session failed", "sessionID", session.ID, "attempts", attempts, "class", class, "error", callErr)
	return &TurnResult{
		SessionID:       session.ID,
		Step:            session.Step,
		Message:         "The assessment service is temporarily unavailable. Your progress has been saved; use the resumption token to continue later.",
		ResumptionToken: token,
		Resumable:       true,
	}, nil
}

// ResumeAssessment restores a failed assessment from its token. The record
// must belong to the requesting user, still be in failed status, and not be
// past its expiry; an expired record is marked expired as a side effect of
// the failed lookup. On success a new session inherits the old conversation
// id, facts, and step, and the record is marked resumed.
func (o *Orchestrator) ResumeAssessment(token, userID string) (*models.AssessmentSession, error) {
	record, err := o.store.GetFailedAssessmentByToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to load failure record: %w", err)
	}
	if record == nil || record.UserID != userID {
		// Wrong owner looks identical to a missing token.
		return nil, models.ErrCannotResume
	}
	if record.Status != models.FailedStatusFailed {
		return nil, models.ErrCannotResume
	}
	if time.Now().UTC().After(record.ExpiresAt) {
		if err := o.store.UpdateFailedAssessmentStatus(token, models.FailedStatusExpired); err != nil {
			slog.Error("Orchestrator.ResumeAssessment: failed to mark record expired", "error", err)
		}
		return nil, models.ErrCannotResume
	}

	now := time.Now().UTC()
	session := models.AssessmentSession{
		ID:             uuid.NewString(),
		HabitID:        record.HabitID,
		UserID:         record.UserID,
		ConversationID: record.ConversationID,
		Step:           record.Step,
		Facts:          record.Facts.Clone(),
		Language:       record.Language,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.store.SaveSession(session); err != nil {
		return nil, fmt.Errorf("failed to save restored session: %w", err)
	}
	if err := o.store.SaveConversationHistory(session.ConversationID, models.ConversationHistory{Messages: record.History}); err != nil {
		return nil, fmt.Errorf("failed to restore conversation: %w", err)
	}
	if err := o.store.UpdateFailedAssessmentStatus(token, models.FailedStatusResumed); err != nil {
		return nil, fmt.Errorf("failed to mark record resumed: %w", err)
	}

	slog.Info("Orchestrator.ResumeAssessment: session restored", "oldSessionID", record.SessionID, "newSessionID", session.ID, "step", session.Step)
	return &session, nil
}
