package flow

import (
	"testing"
	"time"

	"github.com/BTreeMap/HabitAudit/internal/models"
	"github.com/BTreeMap/HabitAudit/internal/store"
	"github.com/BTreeMap/HabitAudit/internal/util"
)

func seedSession(t *testing.T, st store.Store, id string, step models.AssessmentStep, updatedAt time.Time) models.AssessmentSession {
	t.Helper()
	session := models.AssessmentSession{
		ID:             id,
		HabitID:        "habit-1",
		UserID:         "user-1",
		ConversationID: util.GenerateConversationID(),
		Step:           step,
		Facts:          models.HabitFacts{},
		Language:       "en",
		CreatedAt:      updatedAt,
		UpdatedAt:      updatedAt,
	}
	if err := st.SaveSession(session); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := st.SaveConversationHistory(session.ConversationID, models.ConversationHistory{}); err != nil {
		t.Fatalf("SaveConversationHistory: %v", err)
	}
	return session
}

func TestCleanupIdleSessions(t *testing.T) {
	st := store.NewInMemoryStore()
	o := NewOrchestrator(st, newMockGenAI(mockReply{text: "hello"}))

	stale := seedSession(t, st, "stale", models.StepAudit, time.Now().UTC().Add(-time.Hour))
	fresh := seedSession(t, st, "fresh", models.StepAudit, time.Now().UTC())
	done := seedSession(t, st, "done", models.StepCompleted, time.Now().UTC().Add(-time.Hour))

	removed, err := o.CleanupIdleSessions(DefaultIdleSessionTimeout)
	if err != nil {
		t.Fatalf("CleanupIdleSessions: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if s, _ := st.GetSession(stale.ID); s != nil {
		t.Error("stale audit session should be reclaimed")
	}
	if h, _ := st.GetConversationHistory(stale.ConversationID); h != nil {
		t.Error("stale conversation should be reclaimed")
	}
	if s, _ := st.GetSession(fresh.ID); s == nil {
		t.Error("fresh session must survive")
	}
	if s, _ := st.GetSession(done.ID); s == nil {
		t.Error("terminal sessions are not the janitor's business")
	}
}

func TestCleanupSkipsSessionsMidTurn(t *testing.T) {
	st := store.NewInMemoryStore()
	o := NewOrchestrator(st, newMockGenAI(mockReply{text: "hello"}))

	busy := seedSession(t, st, "busy", models.StepAudit, time.Now().UTC().Add(-time.Hour))
	if !o.lockSession(busy.ID) {
		t.Fatal("could not take the turn lock")
	}
	defer o.unlockSession(busy.ID)

	removed, err := o.CleanupIdleSessions(DefaultIdleSessionTimeout)
	if err != nil {
		t.Fatalf("CleanupIdleSessions: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if s, _ := st.GetSession(busy.ID); s == nil {
		t.Error("a session mid-turn must not be reclaimed")
	}
}
