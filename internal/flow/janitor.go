package flow

import (
	"log/slog"
	"time"
)

// CleanupIdleSessions reclaims non-terminal sessions that have gone quiet
// for longer than idleFor, along with their conversation histories.
// Terminal sessions are left alone: completed results and failure records
// are durable on their own. Returns how many sessions were removed.
func (o *Orchestrator) CleanupIdleSessions(idleFor time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-idleFor)
	sessions, err := o.store.ListSessionsIdleSince(cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, session := range sessions {
		if session.Step.IsTerminal() {
			continue
		}
		if !o.lockSession(session.ID) {
			continue // a turn is mid-flight, skip this round
		}
		if err := o.store.DeleteConversationHistory(session.ConversationID); err != nil {
			slog.Error("Orchestrator.CleanupIdleSessions: failed to delete conversation", "error", err, "conversationID", session.ConversationID)
		}
		if err := o.store.DeleteSession(session.ID); err != nil {
			slog.Error("Orchestrator.CleanupIdleSessions: failed to delete session", "error", err, "sessionID", session.ID)
			o.unlockSession(session.ID)
			continue
		}
		o.unlockSession(session.ID)
		removed++
	}

	if removed > 0 {
		slog.Info("Orchestrator.CleanupIdleSessions: reclaimed idle sessions", "count", removed, "idleFor", idleFor)
	}
	return removed, nil
}
