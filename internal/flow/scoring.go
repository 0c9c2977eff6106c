package flow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/HabitAudit/internal/models"
	"github.com/BTreeMap/HabitAudit/internal/thli"
)

// runScoring drives a session from score through validation to completed,
// or diverts it to needs_more_data when the missingness firewall fires.
// The firewall branch is a normal outcome, not an error.
func (o *Orchestrator) runScoring(session *models.AssessmentSession, visibleMessage string) (*TurnResult, error) {
	estimate := thli.CalculateLevelWithPolicy(session.Facts, o.firewall)

	if estimate.FirewallTriggered {
		session.Step = models.StepNeedsMoreData
		session.UpdatedAt = time.Now().UTC()
		if err := o.store.SaveSession(*session); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
		slog.Info("Orchestrator.runScoring: firewall triggered", "sessionID", session.ID, "ici", estimate.ICI, "assumptionBudget", estimate.AssumptionBudget, "voiQuestions", len(estimate.VOIQuestions))
		return &TurnResult{
			SessionID:    session.ID,
			Step:         session.Step,
			Message:      visibleMessage,
			Estimate:     &estimate,
			VOIQuestions: estimate.VOIQuestions,
		}, nil
	}

	session.Step = models.StepValidation
	validation := o.validation.ValidateCrossFramework(estimate.ExpectedMinLevel, session.Facts)

	warnings := append([]string(nil), estimate.Warnings...)
	if validation.Gate == models.GateFail {
		for _, d := range validation.Discrepancies {
			warnings = append(warnings, fmt.Sprintf("cross-framework discrepancy: %s scored %.1f vs primary %.1f (delta %.1f)", d.Framework, d.Comparison, d.Primary, d.Delta))
		}
		slog.Warn("Orchestrator.runScoring: validation gate failed", "sessionID", session.ID, "discrepancies", len(validation.Discrepancies))
	}

	session.Step = models.StepCompleted
	session.UpdatedAt = time.Now().UTC()

	result := models.AssessmentResult{
		SessionID:   session.ID,
		HabitID:     session.HabitID,
		UserID:      session.UserID,
		Facts:       session.Facts.Clone(),
		Estimate:    estimate,
		Validation:  &validation,
		Warnings:    warnings,
		CompletedAt: session.UpdatedAt,
	}

	// The result is stored regardless of gate status; a failed gate only
	// tags warnings for an optional later re-assessment.
	if err := o.store.SaveAssessmentResult(result); err != nil {
		return nil, fmt.Errorf("failed to persist assessment result: %w", err)
	}
	if err := o.store.SaveSession(*session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	// Quota is consumed exactly once, here, at the completed transition.
	periodStart, periodEnd := quotaPeriod(session.UpdatedAt)
	if err := o.store.IncrementQuota(session.UserID, periodStart, periodEnd); err != nil {
		return nil, fmt.Errorf("failed to increment quota: %w", err)
	}

	o.recordAuditTrail(session, &result, validation.Gate)

	slog.Info("Orchestrator.runScoring: assessment completed", "sessionID", session.ID, "habitID", session.HabitID, "tier", estimate.Tier, "expectedMin", estimate.ExpectedMinLevel, "expectedMax", estimate.ExpectedMaxLevel, "gate", validation.Gate)
	return &TurnResult{
		SessionID: session.ID,
		Step:      session.Step,
		Message:   visibleMessage,
		Estimate:  &estimate,
		Result:    &result,
	}, nil
}

// recordAuditTrail writes the level-change and validation rows. Trail writes
// are best effort: a persistence failure here is logged and swallowed so it
// cannot abort an otherwise-successful assessment.
func (o *Orchestrator) recordAuditTrail(session *models.AssessmentSession, result *models.AssessmentResult, gate models.GateStatus) {
	now := time.Now().UTC()
	entries := []models.AuditTrailEntry{
		{
			HabitID:   session.HabitID,
			UserID:    session.UserID,
			SessionID: session.ID,
			Event:     "level_assessed",
			Detail:    string(result.Estimate.Tier),
			Level:     result.Estimate.ExpectedMinLevel,
			CreatedAt: now,
		},
		{
			HabitID:   session.HabitID,
			UserID:    session.UserID,
			SessionID: session.ID,
			Event:     "validation_gate",
			Detail:    string(gate),
			Level:     result.Estimate.ExpectedMinLevel,
			CreatedAt: now,
		},
	}
	for _, entry := range entries {
		if err := o.store.AddAuditTrailEntry(entry); err != nil {
			slog.Error("Orchestrator.recordAuditTrail: failed to write audit trail entry", "error", err, "event", entry.Event, "habitID", entry.HabitID)
		}
	}
}
