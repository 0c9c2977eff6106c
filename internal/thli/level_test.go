package thli

import (
	"testing"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// richFacts returns a complete, fully stated fact set for a demanding habit.
func richFacts() models.HabitFacts {
	facts := models.HabitFacts{
		models.FactActionDefinition:   statedFact("train for a marathon"),
		models.FactExecutionSteps:     statedFact("change, stretch, run, shower"),
		models.FactTypicalDuration:    statedFact(60),
		models.FactActualFrequency:    statedFact("daily"),
		models.FactTimeOfDay:          statedFact("6am"),
		models.FactLocation:           statedFact("riverside path"),
		models.FactTravelDistance:     statedFact(2),
		models.FactRequiredEquipment:  statedFact("running shoes"),
		models.FactPhysicalEffort:     statedFact(8),
		models.FactMentalEffort:       statedFact(4),
		models.FactSocialContext:      statedFact("alone"),
		models.FactMotivationSource:   statedFact("race in spring"),
		models.FactVisibility:         statedFact("my family notices"),
		models.FactFailureConsequence: statedFact("lose training progress"),
		models.FactPastAttempts:       statedFact(2),
		models.FactAvoidanceSignals:   statedFact("skip when raining"),
	}
	return facts
}

func TestCalculateLevelFirewalledEstimate(t *testing.T) {
	estimate := CalculateLevel(models.HabitFacts{})
	if !estimate.FirewallTriggered {
		t.Fatal("empty facts must trigger the firewall")
	}
	if estimate.Tier != models.TierExpert {
		t.Errorf("firewalled tier = %s, want most conservative (expert)", estimate.Tier)
	}
	if len(estimate.VOIQuestions) == 0 {
		t.Error("firewalled estimate must carry VOI questions")
	}
	if len(estimate.Variables) != models.VariableCount {
		t.Errorf("firewalled estimate variables = %d, want %d", len(estimate.Variables), models.VariableCount)
	}
	for _, v := range estimate.Variables {
		if v.Score != 0.0 {
			t.Errorf("firewalled variable %s scored %v, want 0", v.Name, v.Score)
		}
	}
}

func TestCalculateLevelScoringPath(t *testing.T) {
	estimate := CalculateLevel(richFacts())
	if estimate.FirewallTriggered {
		t.Fatal("fully stated facts should not trigger the firewall")
	}
	if estimate.Tier == "" {
		t.Error("scored estimate must carry a tier")
	}
	if len(estimate.VOIQuestions) != 0 {
		t.Error("scored estimate should not carry VOI questions")
	}

	var sum float64
	for _, v := range estimate.Variables {
		sum += v.Score
	}
	if sum > 199.2 {
		t.Errorf("variable sum %v exceeds 199.2", sum)
	}

	for name, level := range map[string]float64{
		"optimistic":   estimate.OptimisticLevel,
		"expected_min": estimate.ExpectedMinLevel,
		"expected_max": estimate.ExpectedMaxLevel,
		"conservative": estimate.ConservativeLevel,
	} {
		if level < models.MinLevel || level > models.MaxLevel {
			t.Errorf("%s level %v outside [0,199]", name, level)
		}
	}

	if estimate.OptimisticLevel > estimate.ExpectedMinLevel ||
		estimate.ExpectedMinLevel > estimate.ExpectedMaxLevel ||
		estimate.ExpectedMaxLevel > estimate.ConservativeLevel {
		t.Errorf("level ordering broken: %v <= %v <= %v <= %v expected",
			estimate.OptimisticLevel, estimate.ExpectedMinLevel, estimate.ExpectedMaxLevel, estimate.ConservativeLevel)
	}
}

func TestCalculateLevelIdempotent(t *testing.T) {
	facts := richFacts()
	first := CalculateLevel(facts)
	second := CalculateLevel(facts)
	if first.ExpectedMinLevel != second.ExpectedMinLevel || first.ICI != second.ICI || first.Tier != second.Tier {
		t.Error("CalculateLevel is not idempotent for identical facts")
	}
	for i := range first.Variables {
		if first.Variables[i].Score != second.Variables[i].Score {
			t.Errorf("variable %s scored differently across runs", first.Variables[i].Name)
		}
	}
}

func TestCalculateLevelSpreadGrowsWithAssumptions(t *testing.T) {
	certain := richFacts()
	shaky := richFacts()
	// Keep no-inference facts at U0 but degrade several others.
	shaky[models.FactLocation] = models.FactValue{Value: "riverside path", Uncertainty: models.UncertaintyInferred}
	shaky[models.FactTimeOfDay] = models.FactValue{Value: "6am", Uncertainty: models.UncertaintyInferred}

	certainEstimate := CalculateLevel(certain)
	shakyEstimate := CalculateLevel(shaky)
	if shakyEstimate.FirewallTriggered {
		t.Fatal("shaky facts unexpectedly firewalled")
	}

	certainSpread := certainEstimate.ConservativeLevel - certainEstimate.OptimisticLevel
	shakySpread := shakyEstimate.ConservativeLevel - shakyEstimate.OptimisticLevel
	if shakySpread <= certainSpread {
		t.Errorf("spread should widen with assumptions: certain=%v shaky=%v", certainSpread, shakySpread)
	}
}

func TestCalculateLevelTier(t *testing.T) {
	cases := []struct {
		level float64
		want  models.LevelTier
	}{
		{0, models.TierBeginner},
		{39.9, models.TierBeginner},
		{40, models.TierNovice},
		{79.9, models.TierNovice},
		{80, models.TierIntermediate},
		{119.9, models.TierIntermediate},
		{120, models.TierAdvanced},
		{159.9, models.TierAdvanced},
		{160, models.TierExpert},
		{199, models.TierExpert},
	}
	for _, c := range cases {
		if got := CalculateLevelTier(c.level); got != c.want {
			t.Errorf("CalculateLevelTier(%v) = %s, want %s", c.level, got, c.want)
		}
	}
}
