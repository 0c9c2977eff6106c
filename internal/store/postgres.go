// Package store provides storage backends for HabitAudit.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on top of a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN and
// applies migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(session models.AssessmentSession) error {
	factsJSON, err := json.Marshal(session.Facts)
	if err != nil {
		return fmt.Errorf("failed to marshal session facts: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO sessions (id, habit_id, user_id, conversation_id, step, facts, language, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT(id) DO UPDATE SET step=excluded.step, facts=excluded.facts, updated_at=excluded.updated_at`,
		session.ID, session.HabitID, session.UserID, session.ConversationID, string(session.Step), string(factsJSON), session.Language, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

func (s *PostgresStore) scanSession(row interface{ Scan(...interface{}) error }) (*models.AssessmentSession, error) {
	var session models.AssessmentSession
	var step, factsJSON string
	if err := row.Scan(&session.ID, &session.HabitID, &session.UserID, &session.ConversationID, &step, &factsJSON, &session.Language, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, err
	}
	session.Step = models.AssessmentStep(step)
	session.Facts = models.HabitFacts{}
	if err := json.Unmarshal([]byte(factsJSON), &session.Facts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session facts: %w", err)
	}
	return &session, nil
}

func (s *PostgresStore) GetSession(id string) (*models.AssessmentSession, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	session, err := s.scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return session, nil
}

func (s *PostgresStore) querySessions(query string, args ...interface{}) ([]models.AssessmentSession, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.AssessmentSession
	for rows.Next() {
		session, err := s.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return sessions, nil
}

func (s *PostgresStore) ListSessionsByUser(userID string) ([]models.AssessmentSession, error) {
	return s.querySessions(`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1`, userID)
}

func (s *PostgresStore) ListSessionsIdleSince(cutoff time.Time) ([]models.AssessmentSession, error) {
	return s.querySessions(`SELECT `+sessionColumns+` FROM sessions WHERE updated_at < $1`, cutoff)
}

func (s *PostgresStore) DeleteSession(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "sessionID", id)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) SaveConversationHistory(conversationID string, history models.ConversationHistory) error {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO conversations (id, history, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT(id) DO UPDATE SET history=excluded.history, updated_at=excluded.updated_at`,
		conversationID, string(historyJSON), time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveConversationHistory failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to save conversation %s: %w", conversationID, err)
	}
	return nil
}

func (s *PostgresStore) GetConversationHistory(conversationID string) (*models.ConversationHistory, error) {
	var historyJSON string
	err := s.db.QueryRow(`SELECT history FROM conversations WHERE id = $1`, conversationID).Scan(&historyJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", conversationID, err)
	}
	var history models.ConversationHistory
	if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return &history, nil
}

func (s *PostgresStore) DeleteConversationHistory(conversationID string) error {
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE id = $1`, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	return nil
}

func (s *PostgresStore) SaveFailedAssessment(record models.FailedAssessmentRecord) error {
	factsJSON, err := json.Marshal(record.Facts)
	if err != nil {
		return fmt.Errorf("failed to marshal failed assessment facts: %w", err)
	}
	historyJSON, err := json.Marshal(record.History)
	if err != nil {
		return fmt.Errorf("failed to marshal failed assessment history: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO failed_assessments
		(token, user_id, habit_id, session_id, conversation_id, facts, step, history, error_class, retry_count, language, status, failed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		record.Token, record.UserID, record.HabitID, record.SessionID, record.ConversationID,
		string(factsJSON), string(record.Step), string(historyJSON), string(record.ErrorClass),
		record.RetryCount, record.Language, string(record.Status), record.FailedAt, record.ExpiresAt)
	if err != nil {
		slog.Error("PostgresStore SaveFailedAssessment failed", "error", err, "sessionID", record.SessionID)
		return fmt.Errorf("failed to save failed assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFailedAssessmentByToken(token string) (*models.FailedAssessmentRecord, error) {
	var record models.FailedAssessmentRecord
	var factsJSON, historyJSON, step, errorClass, status string
	err := s.db.QueryRow(`SELECT token, user_id, habit_id, session_id, conversation_id, facts, step, history, error_class, retry_count, language, status, failed_at, expires_at
		FROM failed_assessments WHERE token = $1`, token).Scan(
		&record.Token, &record.UserID, &record.HabitID, &record.SessionID, &record.ConversationID,
		&factsJSON, &step, &historyJSON, &errorClass, &record.RetryCount, &record.Language, &status,
		&record.FailedAt, &record.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failed assessment: %w", err)
	}
	record.Step = models.AssessmentStep(step)
	record.ErrorClass = models.ErrorClass(errorClass)
	record.Status = models.FailedAssessmentStatus(status)
	record.Facts = models.HabitFacts{}
	if err := json.Unmarshal([]byte(factsJSON), &record.Facts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failed assessment facts: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &record.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failed assessment history: %w", err)
	}
	return &record, nil
}

func (s *PostgresStore) UpdateFailedAssessmentStatus(token string, status models.FailedAssessmentStatus) error {
	if _, err := s.db.Exec(`UPDATE failed_assessments SET status = $1 WHERE token = $2`, string(status), token); err != nil {
		return fmt.Errorf("failed to update failed assessment status: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetQuotaUsed(userID string, periodStart time.Time) (int, error) {
	var used int
	err := s.db.QueryRow(`SELECT used FROM quotas WHERE user_id = $1 AND period_start = $2`, userID, periodStart).Scan(&used)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get quota for %s: %w", userID, err)
	}
	return used, nil
}

// IncrementQuota relies on a single upsert statement so concurrent
// completions never lose an update.
func (s *PostgresStore) IncrementQuota(userID string, periodStart, periodEnd time.Time) error {
	_, err := s.db.Exec(`INSERT INTO quotas (user_id, period_start, period_end, used) VALUES ($1, $2, $3, 1)
		ON CONFLICT(user_id, period_start) DO UPDATE SET used = quotas.used + 1`,
		userID, periodStart, periodEnd)
	if err != nil {
		slog.Error("PostgresStore IncrementQuota failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to increment quota for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) ResetQuota(userID string, periodStart time.Time) error {
	if _, err := s.db.Exec(`DELETE FROM quotas WHERE user_id = $1 AND period_start = $2`, userID, periodStart); err != nil {
		return fmt.Errorf("failed to reset quota for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) SaveAssessmentResult(result models.AssessmentResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment result: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO assessment_results (habit_id, session_id, user_id, payload, completed_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT(habit_id) DO UPDATE SET session_id=excluded.session_id, user_id=excluded.user_id, payload=excluded.payload, completed_at=excluded.completed_at`,
		result.HabitID, result.SessionID, result.UserID, string(payload), result.CompletedAt)
	if err != nil {
		slog.Error("PostgresStore SaveAssessmentResult failed", "error", err, "habitID", result.HabitID)
		return fmt.Errorf("failed to save assessment result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAssessmentResultByHabit(habitID string) (*models.AssessmentResult, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM assessment_results WHERE habit_id = $1`, habitID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment result: %w", err)
	}
	var result models.AssessmentResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assessment result: %w", err)
	}
	return &result, nil
}

func (s *PostgresStore) AddAuditTrailEntry(entry models.AuditTrailEntry) error {
	_, err := s.db.Exec(`INSERT INTO audit_trail (habit_id, user_id, session_id, event, detail, level, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.HabitID, entry.UserID, entry.SessionID, entry.Event, entry.Detail, entry.Level, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit trail entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAuditTrail(habitID string) ([]models.AuditTrailEntry, error) {
	rows, err := s.db.Query(`SELECT habit_id, user_id, session_id, event, detail, level, created_at FROM audit_trail WHERE habit_id = $1 ORDER BY id`, habitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditTrailEntry
	for rows.Next() {
		var e models.AuditTrailEntry
		if err := rows.Scan(&e.HabitID, &e.UserID, &e.SessionID, &e.Event, &e.Detail, &e.Level, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit trail row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit trail rows: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) SaveHabit(habit models.Habit) error {
	_, err := s.db.Exec(`INSERT INTO habits (id, user_id, name, workload, goal_id) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, workload=excluded.workload, goal_id=excluded.goal_id`,
		habit.ID, habit.UserID, habit.Name, habit.Workload, habit.GoalID)
	if err != nil {
		return fmt.Errorf("failed to save habit %s: %w", habit.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetHabit(id string) (*models.Habit, error) {
	var habit models.Habit
	err := s.db.QueryRow(`SELECT id, user_id, name, workload, goal_id FROM habits WHERE id = $1`, id).Scan(
		&habit.ID, &habit.UserID, &habit.Name, &habit.Workload, &habit.GoalID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit %s: %w", id, err)
	}
	return &habit, nil
}

func (s *PostgresStore) SaveGoal(goal models.Goal) error {
	_, err := s.db.Exec(`INSERT INTO goals (id, user_id, name) VALUES ($1, $2, $3)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name`,
		goal.ID, goal.UserID, goal.Name)
	if err != nil {
		return fmt.Errorf("failed to save goal %s: %w", goal.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetGoal(id string) (*models.Goal, error) {
	var goal models.Goal
	err := s.db.QueryRow(`SELECT id, user_id, name FROM goals WHERE id = $1`, id).Scan(&goal.ID, &goal.UserID, &goal.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal %s: %w", id, err)
	}
	return &goal, nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
