// Package store provides storage backends for HabitAudit.
//
// This file implements the in-memory store used in tests and development.
package store

import (
	"sync"
	"time"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// InMemoryStore is a mutex-guarded map-backed Store. Values are deep-copied
// on the way in and out so callers can never alias internal state.
type InMemoryStore struct {
	mu            sync.Mutex
	sessions      map[string]models.AssessmentSession
	conversations map[string]models.ConversationHistory
	failed        map[string]models.FailedAssessmentRecord
	quotas        map[string]quotaRow
	results       map[string]models.AssessmentResult // keyed by habit id
	auditTrail    map[string][]models.AuditTrailEntry
	habits        map[string]models.Habit
	goals         map[string]models.Goal
}

type quotaRow struct {
	used        int
	periodStart time.Time
	periodEnd   time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:      make(map[string]models.AssessmentSession),
		conversations: make(map[string]models.ConversationHistory),
		failed:        make(map[string]models.FailedAssessmentRecord),
		quotas:        make(map[string]quotaRow),
		results:       make(map[string]models.AssessmentResult),
		auditTrail:    make(map[string][]models.AuditTrailEntry),
		habits:        make(map[string]models.Habit),
		goals:         make(map[string]models.Goal),
	}
}

func (s *InMemoryStore) SaveSession(session models.AssessmentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.Facts = session.Facts.Clone()
	s.sessions[session.ID] = session
	return nil
}

func (s *InMemoryStore) GetSession(id string) (*models.AssessmentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	session.Facts = session.Facts.Clone()
	return &session, nil
}

func (s *InMemoryStore) ListSessionsByUser(userID string) ([]models.AssessmentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AssessmentSession
	for _, session := range s.sessions {
		if session.UserID == userID {
			session.Facts = session.Facts.Clone()
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListSessionsIdleSince(cutoff time.Time) ([]models.AssessmentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AssessmentSession
	for _, session := range s.sessions {
		if session.UpdatedAt.Before(cutoff) {
			session.Facts = session.Facts.Clone()
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *InMemoryStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) SaveConversationHistory(conversationID string, history models.ConversationHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := models.ConversationHistory{Messages: append([]models.ConversationMessage(nil), history.Messages...)}
	s.conversations[conversationID] = copied
	return nil
}

func (s *InMemoryStore) GetConversationHistory(conversationID string) (*models.ConversationHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	copied := models.ConversationHistory{Messages: append([]models.ConversationMessage(nil), history.Messages...)}
	return &copied, nil
}

func (s *InMemoryStore) DeleteConversationHistory(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}

func (s *InMemoryStore) SaveFailedAssessment(record models.FailedAssessmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Facts = record.Facts.Clone()
	record.History = append([]models.ConversationMessage(nil), record.History...)
	s.failed[record.Token] = record
	return nil
}

func (s *InMemoryStore) GetFailedAssessmentByToken(token string) (*models.FailedAssessmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.failed[token]
	if !ok {
		return nil, nil
	}
	record.Facts = record.Facts.Clone()
	record.History = append([]models.ConversationMessage(nil), record.History...)
	return &record, nil
}

func (s *InMemoryStore) UpdateFailedAssessmentStatus(token string, status models.FailedAssessmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.failed[token]
	if !ok {
		return nil
	}
	record.Status = status
	s.failed[token] = record
	return nil
}

func quotaKey(userID string, periodStart time.Time) string {
	return userID + "|" + periodStart.UTC().Format("2006-01")
}

func (s *InMemoryStore) GetQuotaUsed(userID string, periodStart time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quotas[quotaKey(userID, periodStart)].used, nil
}

func (s *InMemoryStore) IncrementQuota(userID string, periodStart, periodEnd time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := quotaKey(userID, periodStart)
	row := s.quotas[key]
	row.used++
	row.periodStart = periodStart
	row.periodEnd = periodEnd
	s.quotas[key] = row
	return nil
}

func (s *InMemoryStore) ResetQuota(userID string, periodStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotas, quotaKey(userID, periodStart))
	return nil
}

func (s *InMemoryStore) SaveAssessmentResult(result models.AssessmentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result.Facts = result.Facts.Clone()
	s.results[result.HabitID] = result
	return nil
}

func (s *InMemoryStore) GetAssessmentResultByHabit(habitID string) (*models.AssessmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[habitID]
	if !ok {
		return nil, nil
	}
	result.Facts = result.Facts.Clone()
	return &result, nil
}

func (s *InMemoryStore) AddAuditTrailEntry(entry models.AuditTrailEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditTrail[entry.HabitID] = append(s.auditTrail[entry.HabitID], entry)
	return nil
}

func (s *InMemoryStore) GetAuditTrail(habitID string) ([]models.AuditTrailEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditTrailEntry(nil), s.auditTrail[habitID]...), nil
}

func (s *InMemoryStore) SaveHabit(habit models.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.habits[habit.ID] = habit
	return nil
}

func (s *InMemoryStore) GetHabit(id string) (*models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	habit, ok := s.habits[id]
	if !ok {
		return nil, nil
	}
	return &habit, nil
}

func (s *InMemoryStore) SaveGoal(goal models.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[goal.ID] = goal
	return nil
}

func (s *InMemoryStore) GetGoal(id string) (*models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	goal, ok := s.goals[id]
	if !ok {
		return nil, nil
	}
	return &goal, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
