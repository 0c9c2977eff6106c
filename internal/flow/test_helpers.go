package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/HabitAudit/internal/models"
	"github.com/BTreeMap/HabitAudit/internal/retry"
	"github.com/BTreeMap/HabitAudit/internal/store"
)

// mockReply is one scripted model response: text on success, err otherwise.
type mockReply struct {
	text string
	err  error
}

// mockGenAI replays a scripted sequence of model responses. When the script
// runs out, the last entry repeats, which keeps retry loops deterministic.
type mockGenAI struct {
	mu      sync.Mutex
	script  []mockReply
	calls   int
	lastMsg []openai.ChatCompletionMessageParamUnion
}

func newMockGenAI(script ...mockReply) *mockGenAI {
	return &mockGenAI{script: script}
}

func (m *mockGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMsg = messages
	idx := m.calls
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	m.calls++
	if idx < 0 {
		return "", fmt.Errorf("mockGenAI: empty script")
	}
	reply := m.script[idx]
	return reply.text, reply.err
}

func (m *mockGenAI) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// factsBlock renders facts as the fenced JSON block the audit prompt asks
// the model to emit, wrapped in conversational text.
func factsBlock(facts models.HabitFacts) string {
	raw := make(map[string]rawFact, len(facts))
	for id, fv := range facts {
		raw[string(id)] = rawFact{Value: fv.Value, Uncertainty: string(fv.Uncertainty)}
	}
	blob, err := json.Marshal(raw)
	if err != nil {
		panic(err)
	}
	return "Thanks, noted.\n```facts\n" + string(blob) + "\n```\nAnything else?"
}

// fastRetries is a retry handler with the production attempt budget but no
// real delays, so exhaustion tests finish instantly.
func fastRetries(classify retry.Classifier, retryable retry.RetryDecider) *retry.Handler {
	return retry.NewHandler(classify, retryable).WithPolicy(retry.DefaultMaxAttempts, time.Millisecond, time.Millisecond)
}

// seedHabit stores a habit (and its goal) for orchestrator tests.
func seedHabit(st store.Store, userID string) models.Habit {
	goal := models.Goal{ID: "goal-1", UserID: userID, Name: "get fit"}
	habit := models.Habit{ID: "habit-1", UserID: userID, Name: "morning run", Workload: "30 min daily", GoalID: goal.ID}
	if err := st.SaveGoal(goal); err != nil {
		panic(err)
	}
	if err := st.SaveHabit(habit); err != nil {
		panic(err)
	}
	return habit
}

// fullyStatedFacts is a complete fact set that clears the firewall.
func fullyStatedFacts() models.HabitFacts {
	facts := models.HabitFacts{}
	values := map[models.FactID]interface{}{
		models.FactActionDefinition:   "train for a marathon",
		models.FactExecutionSteps:     "change, stretch, run, shower",
		models.FactTypicalDuration:    60,
		models.FactActualFrequency:    "daily",
		models.FactTimeOfDay:          "6am",
		models.FactLocation:           "riverside path",
		models.FactTravelDistance:     2,
		models.FactRequiredEquipment:  "running shoes",
		models.FactPhysicalEffort:     8,
		models.FactMentalEffort:       4,
		models.FactSocialContext:      "alone",
		models.FactMotivationSource:   "race in spring",
		models.FactVisibility:         "my family notices",
		models.FactFailureConsequence: "lose training progress",
		models.FactPastAttempts:       2,
		models.FactAvoidanceSignals:   "skip when raining",
	}
	for id, v := range values {
		facts[id] = models.FactValue{Value: v, Uncertainty: models.UncertaintyStated}
	}
	return facts
}

// overAssumedFacts carries all no-inference facts as stated and enough ICI
// to finish the audit, but blows the assumption budget (4 facts at U3).
func overAssumedFacts() models.HabitFacts {
	facts := models.HabitFacts{
		models.FactActionDefinition:   {Value: "run", Uncertainty: models.UncertaintyStated},
		models.FactExecutionSteps:     {Value: "put on shoes, run", Uncertainty: models.UncertaintyStated},
		models.FactActualFrequency:    {Value: "daily", Uncertainty: models.UncertaintyStated},
		models.FactVisibility:         {Value: "nobody notices", Uncertainty: models.UncertaintyStated},
		models.FactFailureConsequence: {Value: "none", Uncertainty: models.UncertaintyStated},
		models.FactAvoidanceSignals:   {Value: "none", Uncertainty: models.UncertaintyStated},
		models.FactTypicalDuration:    {Value: 30, Uncertainty: models.UncertaintyAssumed},
		models.FactTimeOfDay:          {Value: "morning", Uncertainty: models.UncertaintyAssumed},
		models.FactLocation:           {Value: "nearby", Uncertainty: models.UncertaintyAssumed},
		models.FactMentalEffort:       {Value: 3, Uncertainty: models.UncertaintyAssumed},
	}
	return facts
}
