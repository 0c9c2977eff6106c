// Package models defines assessment session, result, and failure types.
package models

import (
	"errors"
	"fmt"
	"time"
)

// AssessmentStep is the state of an assessment session's state machine.
type AssessmentStep string

const (
	StepAudit         AssessmentStep = "audit"
	StepScore         AssessmentStep = "score"
	StepValidation    AssessmentStep = "validation"
	StepCompleted     AssessmentStep = "completed"
	StepNeedsMoreData AssessmentStep = "needs_more_data"
	StepFailed        AssessmentStep = "failed"
)

// IsTerminal reports whether the step ends the session's forward progress.
func (s AssessmentStep) IsTerminal() bool {
	switch s {
	case StepCompleted, StepNeedsMoreData, StepFailed:
		return true
	default:
		return false
	}
}

// AssessmentSession identifies one audit run and its accumulated facts.
type AssessmentSession struct {
	ID             string         `json:"id"`
	HabitID        string         `json:"habit_id"`
	UserID         string         `json:"user_id"`
	ConversationID string         `json:"conversation_id"`
	Step           AssessmentStep `json:"step"`
	Facts          HabitFacts     `json:"facts"`
	Language       string         `json:"language"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// LevelTier is the named classification of an expected difficulty level.
type LevelTier string

const (
	TierBeginner     LevelTier = "beginner"
	TierNovice       LevelTier = "novice"
	TierIntermediate LevelTier = "intermediate"
	TierAdvanced     LevelTier = "advanced"
	TierExpert       LevelTier = "expert"
)

// LevelBounds clamp every derived level. The sum of 24 variables at maximum
// score is 199.2, so levels live in [0, 199].
const (
	MinLevel = 0
	MaxLevel = 199
)

// VOIQuestion is one value-of-information question about a missing or
// unreliable fact, ranked by estimated impact.
type VOIQuestion struct {
	FactID   FactID  `json:"fact_id"`
	Question string  `json:"question"`
	Impact   float64 `json:"impact"`
	Priority int     `json:"priority"` // 1-5
}

// LevelEstimate is the full scoring result for one assessment.
type LevelEstimate struct {
	OptimisticLevel   float64        `json:"optimistic_level"`
	ExpectedMinLevel  float64        `json:"expected_min_level"`
	ExpectedMaxLevel  float64        `json:"expected_max_level"`
	ConservativeLevel float64        `json:"conservative_level"`
	Tier              LevelTier      `json:"tier"`
	Variables         []THLIVariable `json:"variables"`
	ICI               float64        `json:"ici"`
	AssumptionBudget  int            `json:"assumption_budget_used"`
	FirewallTriggered bool           `json:"firewall_triggered"`
	VOIQuestions      []VOIQuestion  `json:"voi_questions,omitempty"`
	Warnings          []string       `json:"warnings,omitempty"`
}

// GateStatus is the outcome of the cross-framework comparison.
type GateStatus string

const (
	GatePass GateStatus = "pass"
	GateFail GateStatus = "fail"
)

// FrameworkScore is one independently derived difficulty estimate.
type FrameworkScore struct {
	Framework string  `json:"framework"`
	Score     float64 `json:"score"`
	Computed  bool    `json:"computed"` // false when the sub-score could not be derived
}

// Discrepancy records a cross-framework difference beyond the gate threshold.
type Discrepancy struct {
	Framework  string  `json:"framework"`
	Primary    float64 `json:"primary"`
	Comparison float64 `json:"comparison"`
	Delta      float64 `json:"delta"`
}

// CrossFrameworkValidation holds the three comparison scores and the gate outcome.
type CrossFrameworkValidation struct {
	Scores        []FrameworkScore `json:"scores"`
	Gate          GateStatus       `json:"gate"`
	Discrepancies []Discrepancy    `json:"discrepancies,omitempty"`
}

// AssessmentResult is the durable record written when a session completes.
type AssessmentResult struct {
	SessionID   string                    `json:"session_id"`
	HabitID     string                    `json:"habit_id"`
	UserID      string                    `json:"user_id"`
	Facts       HabitFacts                `json:"facts"`
	Estimate    LevelEstimate             `json:"estimate"`
	Validation  *CrossFrameworkValidation `json:"validation,omitempty"`
	Warnings    []string                  `json:"warnings,omitempty"`
	CompletedAt time.Time                 `json:"completed_at"`
}

// AuditTrailEntry is one append-only row recording a level change or
// validation outcome for a habit.
type AuditTrailEntry struct {
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"`
	Level     float64   `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorClass categorizes a language-model call failure.
type ErrorClass string

const (
	ErrorClassRateLimit ErrorClass = "rate_limit"
	ErrorClassServer    ErrorClass = "server_error"
	ErrorClassTimeout   ErrorClass = "timeout"
	ErrorClassFatal     ErrorClass = "fatal"
	ErrorClassUnknown   ErrorClass = "unknown"
)

// FailedAssessmentStatus is the lifecycle of a FailedAssessmentRecord.
type FailedAssessmentStatus string

const (
	FailedStatusFailed  FailedAssessmentStatus = "failed"
	FailedStatusResumed FailedAssessmentStatus = "resumed"
	FailedStatusExpired FailedAssessmentStatus = "expired"
)

// FailedAssessmentExpiry is how long a resumption token stays valid.
const FailedAssessmentExpiry = 7 * 24 * time.Hour

// FailedAssessmentRecord is the durable snapshot taken when a language-model
// call fails irrecoverably, allowing the conversation to be resumed later.
type FailedAssessmentRecord struct {
	Token          string                 `json:"token"`
	UserID         string                 `json:"user_id"`
	HabitID        string                 `json:"habit_id"`
	SessionID      string                 `json:"session_id"`
	ConversationID string                 `json:"conversation_id"`
	Facts          HabitFacts             `json:"facts"`
	Step           AssessmentStep         `json:"step"`
	History        []ConversationMessage  `json:"history"`
	ErrorClass     ErrorClass             `json:"error_class"`
	RetryCount     int                    `json:"retry_count"`
	Language       string                 `json:"language"`
	Status         FailedAssessmentStatus `json:"status"`
	FailedAt       time.Time              `json:"failed_at"`
	ExpiresAt      time.Time              `json:"expires_at"`
}

// QuotaStatus tracks per-user assessment consumption for one calendar month.
// A limit of -1 denotes unlimited.
type QuotaStatus struct {
	UserID      string    `json:"user_id"`
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// Exhausted reports whether the quota blocks new assessments.
func (q QuotaStatus) Exhausted() bool {
	return q.Limit >= 0 && q.Used >= q.Limit
}

// ConversationMessage represents a single message in an assessment conversation.
type ConversationMessage struct {
	Role      string    `json:"role"` // "system", "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationHistory represents the full turn history for one conversation.
type ConversationHistory struct {
	Messages []ConversationMessage `json:"messages"`
}

// Habit is the read model seeded into conversational context.
type Habit struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Workload string `json:"workload,omitempty"`
	GoalID   string `json:"goal_id,omitempty"`
}

// Goal is the read model for a habit's parent goal.
type Goal struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Sentinel errors raised by the orchestrator.
var (
	ErrSessionNotFound = errors.New("assessment session not found")
	ErrSessionBusy     = errors.New("assessment session is processing another turn")
	ErrHabitNotFound   = errors.New("habit not found")
	ErrCannotResume    = errors.New("failed assessment cannot be resumed")
)

// QuotaExhaustedError blocks new assessments and carries the reset time.
type QuotaExhaustedError struct {
	Used    int
	Limit   int
	ResetAt time.Time
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("assessment quota exhausted (%d/%d), resets at %s", e.Used, e.Limit, e.ResetAt.Format(time.RFC3339))
}
