package thli

import (
	"testing"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

func findVariable(t *testing.T, vars []models.THLIVariable, name string) models.THLIVariable {
	t.Helper()
	for _, v := range vars {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("variable %q not found", name)
	return models.THLIVariable{}
}

func TestScoreVariablesCountAndSet(t *testing.T) {
	vars := ScoreVariables(models.HabitFacts{})
	if len(vars) != models.VariableCount {
		t.Fatalf("expected %d variables, got %d", models.VariableCount, len(vars))
	}
	for _, v := range vars {
		if !IsDiscreteScore(v.Score) {
			t.Errorf("variable %s score %v not in discrete set", v.Name, v.Score)
		}
	}
}

func TestScoreVariablesNeutralDefault(t *testing.T) {
	vars := ScoreVariables(models.HabitFacts{})
	for _, v := range vars {
		if v.Score != models.NeutralScore {
			t.Errorf("variable %s with no facts scored %v, want neutral %v", v.Name, v.Score, models.NeutralScore)
		}
	}
}

func TestFrequencyHeuristic(t *testing.T) {
	cases := []struct {
		value interface{}
		want  float64
	}{
		{"daily", 8.3},
		{"毎日", 8.3},
		{"I do it every day", 8.3},
		{"weekdays only", 6.9},
		{"weekly", 4.1},
		{"monthly", 1.4},
		{7, 8.3},
		{5, 6.9},
		{3, 5.5},
		{1, 4.1},
		{0.5, 1.4},
	}
	for _, c := range cases {
		facts := models.HabitFacts{models.FactActualFrequency: statedFact(c.value)}
		v := findVariable(t, ScoreVariables(facts), "frequency")
		if v.Score != c.want {
			t.Errorf("frequency(%v) = %v, want %v", c.value, v.Score, c.want)
		}
	}
}

func TestDurationHeuristic(t *testing.T) {
	cases := []struct {
		minutes interface{}
		want    float64
	}{
		{90, 8.3},
		{60, 8.3},
		{45, 6.9},
		{30, 5.5},
		{"30 minutes", 5.5},
		{15, 4.1},
		{10, 2.8},
		{5, 1.4},
		{2, 0.0},
	}
	for _, c := range cases {
		facts := models.HabitFacts{models.FactTypicalDuration: statedFact(c.minutes)}
		v := findVariable(t, ScoreVariables(facts), "duration")
		if v.Score != c.want {
			t.Errorf("duration(%v) = %v, want %v", c.minutes, v.Score, c.want)
		}
	}
}

func TestTravelDistanceHeuristic(t *testing.T) {
	cases := []struct {
		km   interface{}
		want float64
	}{
		{12, 8.3},
		{5, 6.9},
		{2, 5.5},
		{1, 4.1},
		{0.3, 2.8},
		{0, 0.0},
	}
	for _, c := range cases {
		facts := models.HabitFacts{models.FactTravelDistance: statedFact(c.km)}
		v := findVariable(t, ScoreVariables(facts), "travel_distance")
		if v.Score != c.want {
			t.Errorf("travel_distance(%v) = %v, want %v", c.km, v.Score, c.want)
		}
	}
}

func TestGenericScoringConservativeUnderUncertainty(t *testing.T) {
	stated := models.HabitFacts{models.FactMentalEffort: statedFact("high")}
	assumed := models.HabitFacts{models.FactMentalEffort: {Value: "high", Uncertainty: models.UncertaintyAssumed}}

	vStated := findVariable(t, ScoreVariables(stated), "mental_effort")
	vAssumed := findVariable(t, ScoreVariables(assumed), "mental_effort")

	// U0 -> 0*2 = 0; U3 -> 3*2 = 6 -> snaps to 5.5.
	if vStated.Score != 0.0 {
		t.Errorf("stated mental_effort = %v, want 0.0", vStated.Score)
	}
	if vAssumed.Score != 5.5 {
		t.Errorf("assumed mental_effort = %v, want 5.5", vAssumed.Score)
	}
	if vAssumed.Score < vStated.Score {
		t.Error("less-certain facts must never score easier")
	}
}

func TestEnforceRangeContract(t *testing.T) {
	vars := []models.THLIVariable{
		{ID: 1, Name: "task_complexity", Score: 4.1},
		{ID: 2, Name: "decision_load", Score: 3.3}, // out of set
	}
	fixed, warnings := EnforceRangeContract(vars)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if fixed[1].Score != 2.8 {
		t.Errorf("out-of-set score corrected to %v, want 2.8", fixed[1].Score)
	}
	if fixed[0].Score != 4.1 {
		t.Errorf("in-set score changed to %v", fixed[0].Score)
	}
}
