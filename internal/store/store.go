// Package store provides storage backends for HabitAudit.
//
// It defines the Store interface consumed by the assessment orchestrator
// and ships three implementations: in-memory (tests and development),
// SQLite, and PostgreSQL.
package store

import (
	"strings"
	"time"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// DetectDSNType reports whether a DSN points at PostgreSQL or a SQLite file.
// Anything that is not recognizably a PostgreSQL connection string is
// treated as a SQLite path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// Store is the persistence boundary of the assessment engine. The engine
// never assumes in-process affinity: any keyed durable backend satisfying
// this interface can serve a horizontally scaled deployment.
type Store interface {
	// Assessment sessions.
	SaveSession(session models.AssessmentSession) error
	GetSession(id string) (*models.AssessmentSession, error)
	ListSessionsByUser(userID string) ([]models.AssessmentSession, error)
	ListSessionsIdleSince(cutoff time.Time) ([]models.AssessmentSession, error)
	DeleteSession(id string) error

	// Conversation turn histories, keyed separately from sessions but with
	// the same lifetime.
	SaveConversationHistory(conversationID string, history models.ConversationHistory) error
	GetConversationHistory(conversationID string) (*models.ConversationHistory, error)
	DeleteConversationHistory(conversationID string) error

	// Failed assessments, keyed by unguessable resumption token.
	SaveFailedAssessment(record models.FailedAssessmentRecord) error
	GetFailedAssessmentByToken(token string) (*models.FailedAssessmentRecord, error)
	UpdateFailedAssessmentStatus(token string, status models.FailedAssessmentStatus) error

	// Per-user per-calendar-month quota counters. IncrementQuota must be
	// atomic so concurrent completions never lose updates.
	GetQuotaUsed(userID string, periodStart time.Time) (int, error)
	IncrementQuota(userID string, periodStart, periodEnd time.Time) error
	ResetQuota(userID string, periodStart time.Time) error

	// Durable assessment results plus the append-only audit trail.
	SaveAssessmentResult(result models.AssessmentResult) error
	GetAssessmentResultByHabit(habitID string) (*models.AssessmentResult, error)
	AddAuditTrailEntry(entry models.AuditTrailEntry) error
	GetAuditTrail(habitID string) ([]models.AuditTrailEntry, error)

	// Habit and goal read models used to seed conversational context.
	SaveHabit(habit models.Habit) error
	GetHabit(id string) (*models.Habit, error)
	SaveGoal(goal models.Goal) error
	GetGoal(id string) (*models.Goal, error)

	// Close releases backend resources.
	Close() error
}
