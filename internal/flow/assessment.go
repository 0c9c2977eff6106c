package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"

	"github.com/BTreeMap/HabitAudit/internal/models"
	"github.com/BTreeMap/HabitAudit/internal/prompts"
	"github.com/BTreeMap/HabitAudit/internal/thli"
	"github.com/BTreeMap/HabitAudit/internal/util"
)

// TurnResult is what one orchestrator call hands back to the transport
// layer: the assistant's visible message plus whatever the state machine
// produced this turn.
type TurnResult struct {
	SessionID       string                   `json:"session_id"`
	Step            models.AssessmentStep    `json:"step"`
	Message         string                   `json:"message,omitempty"`
	Estimate        *models.LevelEstimate    `json:"estimate,omitempty"`
	Result          *models.AssessmentResult `json:"result,omitempty"`
	VOIQuestions    []models.VOIQuestion     `json:"voi_questions,omitempty"`
	ResumptionToken string                   `json:"resumption_token,omitempty"`
	Resumable       bool                     `json:"resumable,omitempty"`
}

// openingUserTurn is the synthetic first user message that kicks off the
// audit conversation.
const openingUserTurn = "Please begin the habit difficulty audit. Ask me your first question."

// InitiateAssessment checks quota, seeds a new audit session for the habit,
// and returns the model's opening question. A user whose quota is exhausted
// may still finish an assessment already in flight, but cannot start a new
// one.
func (o *Orchestrator) InitiateAssessment(ctx context.Context, userID, habitID, language string) (*TurnResult, error) {
	slog.Debug("Orchestrator.InitiateAssessment: starting", "userID", userID, "habitID", habitID, "language", language)

	quota, err := o.QuotaStatus(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check quota: %w", err)
	}
	if quota.Exhausted() {
		if inProgress, err := o.findActiveSession(userID, habitID); err == nil && inProgress != nil {
			// Graceful exhaustion: the running assessment may finish.
			slog.Info("Orchestrator.InitiateAssessment: quota exhausted, returning in-flight session", "userID", userID, "sessionID", inProgress.ID)
			return &TurnResult{SessionID: inProgress.ID, Step: inProgress.Step}, nil
		}
		slog.Info("Orchestrator.InitiateAssessment: quota exhausted", "userID", userID, "used", quota.Used, "limit", quota.Limit)
		return nil, &models.QuotaExhaustedError{Used: quota.Used, Limit: quota.Limit, ResetAt: quota.PeriodEnd}
	}

	habit, err := o.store.GetHabit(habitID)
	if err != nil {
		return nil, fmt.Errorf("failed to load habit: %w", err)
	}
	if habit == nil {
		return nil, models.ErrHabitNotFound
	}

	if language == "" {
		language = prompts.DefaultLanguage
	}
	systemPrompt, validation, err := o.prompts.LoadAuditPrompt(language)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit prompt: %w", err)
	}
	if !validation.Valid {
		slog.Warn("Orchestrator.InitiateAssessment: audit prompt failed structural validation", "language", language, "missing", validation.MissingSections)
	}

	now := time.Now().UTC()
	session := models.AssessmentSession{
		ID:             uuid.NewString(),
		HabitID:        habitID,
		UserID:         userID,
		ConversationID: util.GenerateConversationID(),
		Step:           models.StepAudit,
		Facts:          models.HabitFacts{},
		Language:       language,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	history := models.ConversationHistory{Messages: []models.ConversationMessage{
		{Role: "system", Content: systemPrompt + o.habitContext(habit), Timestamp: now},
		{Role: "user", Content: openingUserTurn, Timestamp: now},
	}}

	reply, outcome, err := o.generateReply(ctx, history)
	if err != nil {
		// The session was never persisted, so there is nothing to resume.
		slog.Error("Orchestrator.InitiateAssessment: opening question failed", "error", err, "attempts", outcome.Attempts, "class", outcome.Class)
		return nil, fmt.Errorf("failed to generate opening question: %w", err)
	}

	facts, visible := ExtractFactBlock(reply)
	session.Facts.Merge(facts)
	history.Messages = append(history.Messages, models.ConversationMessage{Role: "assistant", Content: reply, Timestamp: time.Now().UTC()})

	if err := o.store.SaveSession(session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if err := o.store.SaveConversationHistory(session.ConversationID, history); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	slog.Info("Orchestrator.InitiateAssessment: session created", "sessionID", session.ID, "userID", userID, "habitID", habitID)
	return &TurnResult{SessionID: session.ID, Step: session.Step, Message: visible}, nil
}

// ContinueAssessment processes one user turn: it forwards the conversation
// to the model, folds extracted facts into the session, and advances the
// state machine when the audit has gathered enough.
func (o *Orchestrator) ContinueAssessment(ctx context.Context, sessionID, userMessage string) (*TurnResult, error) {
	if !o.lockSession(sessionID) {
		return nil, models.ErrSessionBusy
	}
	defer o.unlockSession(sessionID)

	session, err := o.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	if session.Step.IsTerminal() {
		return nil, fmt.Errorf("session %s is %s and accepts no more turns", sessionID, session.Step)
	}

	history, err := o.store.GetConversationHistory(session.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if history == nil {
		history = &models.ConversationHistory{}
	}
	history.Messages = append(history.Messages, models.ConversationMessage{Role: "user", Content: userMessage, Timestamp: time.Now().UTC()})

	reply, outcome, err := o.generateReply(ctx, *history)
	if err != nil {
		return o.handleCallExhaustion(session, *history, outcome.Attempts, outcome.Class, err)
	}

	facts, visible := ExtractFactBlock(reply)
	session.Facts.Merge(facts)
	history.Messages = append(history.Messages, models.ConversationMessage{Role: "assistant", Content: reply, Timestamp: time.Now().UTC()})
	session.UpdatedAt = time.Now().UTC()

	if err := o.store.SaveConversationHistory(session.ConversationID, *history); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	if session.Step == models.StepAudit && o.auditComplete(session.Facts) {
		session.Step = models.StepScore
		slog.Info("Orchestrator.ContinueAssessment: audit complete, scoring", "sessionID", session.ID, "factCount", len(session.Facts))
		return o.runScoring(session, visible)
	}

	if err := o.store.SaveSession(*session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return &TurnResult{SessionID: session.ID, Step: session.Step, Message: visible}, nil
}

// auditComplete reports whether the gathered facts clear the firewall
// preconditions worth scoring against: sufficient ICI and all no-inference
// facts stated directly by the user.
func (o *Orchestrator) auditComplete(facts models.HabitFacts) bool {
	if thli.CalculateICI(facts) < o.firewall.MinICI {
		return false
	}
	for _, id := range models.NoInferenceFactIDs {
		fv, ok := facts[id]
		if !ok || fv.Uncertainty != models.UncertaintyStated {
			return false
		}
	}
	return true
}

// generateReply sends the conversation through the retry handler and
// returns the assistant text plus the retry outcome.
func (o *Orchestrator) generateReply(ctx context.Context, history models.ConversationHistory) (string, retryOutcome, error) {
	var reply string
	outcome, err := o.retries.Do(ctx, func(ctx context.Context) error {
		var callErr error
		reply, callErr = o.genAI.GenerateWithMessages(ctx, toOpenAIMessages(history))
		return callErr
	})
	return reply, retryOutcome{Attempts: outcome.Attempts, Class: outcome.Class}, err
}

// retryOutcome decouples flow's callers from the retry package types.
type retryOutcome struct {
	Attempts int
	Class    models.ErrorClass
}

func toOpenAIMessages(history models.ConversationHistory) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history.Messages))
	for _, msg := range history.Messages {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// habitContext renders the habit and its parent goal as an addendum to the
// system prompt so the model does not re-ask what it already knows.
func (o *Orchestrator) habitContext(habit *models.Habit) string {
	ctx := fmt.Sprintf("\n\n# HABIT CONTEXT\nHabit under assessment: %q.", habit.Name)
	if habit.Workload != "" {
		ctx += fmt.Sprintf(" Declared workload: %s.", habit.Workload)
	}
	if habit.GoalID != "" {
		if goal, err := o.store.GetGoal(habit.GoalID); err == nil && goal != nil {
			ctx += fmt.Sprintf(" Parent goal: %q.", goal.Name)
		}
	}
	return ctx
}

// findActiveSession returns the user's non-terminal session for a habit,
// if one exists.
func (o *Orchestrator) findActiveSession(userID, habitID string) (*models.AssessmentSession, error) {
	sessions, err := o.store.ListSessionsByUser(userID)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].HabitID == habitID && !sessions[i].Step.IsTerminal() {
			return &sessions[i], nil
		}
	}
	return nil, nil
}
