// Package flow orchestrates the assessment state machine: the conversational
// audit, the scoring transition, cross-framework validation, quota
// consumption, and the resumable-failure protocol.
package flow

import (
	"sync"
	"time"

	"github.com/BTreeMap/HabitAudit/internal/genai"
	"github.com/BTreeMap/HabitAudit/internal/models"
	"github.com/BTreeMap/HabitAudit/internal/prompts"
	"github.com/BTreeMap/HabitAudit/internal/retry"
	"github.com/BTreeMap/HabitAudit/internal/store"
	"github.com/BTreeMap/HabitAudit/internal/thli"
)

// DefaultMonthlyQuota is how many completed assessments a user gets per
// calendar month unless configured otherwise. -1 disables the limit.
const DefaultMonthlyQuota = 30

// DefaultIdleSessionTimeout is how long a session may sit without a turn
// before the janitor reclaims it.
const DefaultIdleSessionTimeout = 30 * time.Minute

// Opts holds configuration options for the Orchestrator.
type Opts struct {
	QuotaLimit       int
	FirewallPolicy   thli.FirewallPolicy
	ValidationPolicy thli.ValidationPolicy
	RetryHandler     *retry.Handler
	PromptLoader     *prompts.Loader
}

// Option configures the Orchestrator.
type Option func(*Opts)

// WithQuotaLimit sets the per-user monthly assessment limit. -1 means unlimited.
func WithQuotaLimit(limit int) Option {
	return func(o *Opts) { o.QuotaLimit = limit }
}

// WithFirewallPolicy overrides the missingness firewall thresholds.
func WithFirewallPolicy(p thli.FirewallPolicy) Option {
	return func(o *Opts) { o.FirewallPolicy = p }
}

// WithValidationPolicy overrides the cross-framework discrepancy threshold.
func WithValidationPolicy(p thli.ValidationPolicy) Option {
	return func(o *Opts) { o.ValidationPolicy = p }
}

// WithRetryHandler overrides the language-model retry policy.
func WithRetryHandler(h *retry.Handler) Option {
	return func(o *Opts) { o.RetryHandler = h }
}

// WithPromptLoader overrides the prompt template loader.
func WithPromptLoader(l *prompts.Loader) Option {
	return func(o *Opts) { o.PromptLoader = l }
}

// Orchestrator drives assessment sessions from first question to durable
// result. It holds no per-session state beyond short-lived turn locks; all
// durable state lives in the Store, so any instance can serve any session.
type Orchestrator struct {
	store      store.Store
	genAI      genai.ClientInterface
	retries    *retry.Handler
	prompts    *prompts.Loader
	quotaLimit int
	firewall   thli.FirewallPolicy
	validation thli.ValidationPolicy

	mu       sync.Mutex
	inFlight map[string]bool // session ids with a turn being processed
}

// NewOrchestrator creates an assessment orchestrator.
func NewOrchestrator(st store.Store, client genai.ClientInterface, opts ...Option) *Orchestrator {
	cfg := Opts{
		QuotaLimit:       DefaultMonthlyQuota,
		FirewallPolicy:   thli.DefaultFirewallPolicy(),
		ValidationPolicy: thli.DefaultValidationPolicy(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RetryHandler == nil {
		cfg.RetryHandler = retry.NewHandler(genai.ClassifyError, genai.IsRetryable)
	}
	if cfg.PromptLoader == nil {
		cfg.PromptLoader = prompts.NewLoader()
	}
	return &Orchestrator{
		store:      st,
		genAI:      client,
		retries:    cfg.RetryHandler,
		prompts:    cfg.PromptLoader,
		quotaLimit: cfg.QuotaLimit,
		firewall:   cfg.FirewallPolicy,
		validation: cfg.ValidationPolicy,
		inFlight:   make(map[string]bool),
	}
}

// lockSession marks a session as processing a turn. Returns false when
// another turn is already in flight.
func (o *Orchestrator) lockSession(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[sessionID] {
		return false
	}
	o.inFlight[sessionID] = true
	return true
}

func (o *Orchestrator) unlockSession(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, sessionID)
}

// quotaPeriod returns the calendar-month bounds containing now, in UTC.
func quotaPeriod(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// QuotaStatus reports a user's consumption for the current calendar month.
func (o *Orchestrator) QuotaStatus(userID string) (models.QuotaStatus, error) {
	periodStart, periodEnd := quotaPeriod(time.Now())
	used, err := o.store.GetQuotaUsed(userID, periodStart)
	if err != nil {
		return models.QuotaStatus{}, err
	}
	return models.QuotaStatus{
		UserID:      userID,
		Used:        used,
		Limit:       o.quotaLimit,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}, nil
}

// GetVOIQuestions ranks follow-up questions for an arbitrary fact set. Used
// by the standalone question endpoint; session flows call thli directly.
func (o *Orchestrator) GetVOIQuestions(facts models.HabitFacts) []models.VOIQuestion {
	return thli.GenerateVOIQuestions(facts)
}

// GetSession returns a session by id.
func (o *Orchestrator) GetSession(sessionID string) (*models.AssessmentSession, error) {
	session, err := o.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// GetResult returns the durable assessment result for a habit, or nil when
// no completed assessment exists.
func (o *Orchestrator) GetResult(habitID string) (*models.AssessmentResult, error) {
	return o.store.GetAssessmentResultByHabit(habitID)
}

// AuditTrail returns the append-only level and validation history for a habit.
func (o *Orchestrator) AuditTrail(habitID string) ([]models.AuditTrailEntry, error) {
	return o.store.GetAuditTrail(habitID)
}
