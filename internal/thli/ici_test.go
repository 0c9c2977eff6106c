package thli

import (
	"testing"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

func statedFact(value interface{}) models.FactValue {
	return models.FactValue{Value: value, Uncertainty: models.UncertaintyStated}
}

// fourNoInferenceFacts returns the no-inference facts all directly stated.
func fourNoInferenceFacts() models.HabitFacts {
	return models.HabitFacts{
		models.FactActualFrequency:    statedFact("daily"),
		models.FactVisibility:         statedFact("my partner sees it"),
		models.FactFailureConsequence: statedFact("nothing happens"),
		models.FactAvoidanceSignals:   statedFact("none"),
	}
}

func TestCalculateICIEmpty(t *testing.T) {
	if got := CalculateICI(models.HabitFacts{}); got != 0 {
		t.Errorf("CalculateICI(empty) = %v, want 0", got)
	}
}

func TestCalculateICIBounds(t *testing.T) {
	full := models.HabitFacts{}
	for _, id := range models.AllFactIDs {
		full[id] = statedFact("x")
	}
	if got := CalculateICI(full); got != 1.0 {
		t.Errorf("CalculateICI(all stated) = %v, want 1.0", got)
	}
}

func TestCalculateICIMoreFactsIncreaseIndex(t *testing.T) {
	few := fourNoInferenceFacts()
	more := few.Clone()
	more[models.FactActionDefinition] = statedFact("run")
	more[models.FactTypicalDuration] = statedFact(30)

	if CalculateICI(more) <= CalculateICI(few) {
		t.Errorf("ICI should increase with more facts: few=%v more=%v", CalculateICI(few), CalculateICI(more))
	}
}

func TestCalculateICILowerUncertaintyIncreasesIndex(t *testing.T) {
	stated := models.HabitFacts{models.FactActionDefinition: statedFact("run")}
	assumed := models.HabitFacts{models.FactActionDefinition: {Value: "run", Uncertainty: models.UncertaintyAssumed}}
	if CalculateICI(stated) <= CalculateICI(assumed) {
		t.Errorf("ICI should reward lower uncertainty: stated=%v assumed=%v", CalculateICI(stated), CalculateICI(assumed))
	}
}

func TestCalculateICIIdempotent(t *testing.T) {
	facts := fourNoInferenceFacts()
	first := CalculateICI(facts)
	second := CalculateICI(facts)
	if first != second {
		t.Errorf("CalculateICI not idempotent: %v then %v", first, second)
	}
}

func TestAssumptionBudgetUsed(t *testing.T) {
	facts := models.HabitFacts{
		models.FactActionDefinition: {Value: "run", Uncertainty: models.UncertaintyImplied},  // 0.5
		models.FactTypicalDuration:  {Value: 30, Uncertainty: models.UncertaintyInferred},    // 1.0
		models.FactLocation:         {Value: "park", Uncertainty: models.UncertaintyAssumed}, // 2.0
		models.FactActualFrequency:  statedFact("daily"),                                     // 0
	}
	if got := AssumptionBudgetUsed(facts); got != 4 {
		t.Errorf("AssumptionBudgetUsed = %d, want 4 (0.5+1+2 rounded)", got)
	}
	if got := AssumptionBudgetUsed(models.HabitFacts{}); got != 0 {
		t.Errorf("AssumptionBudgetUsed(empty) = %d, want 0", got)
	}
}

func TestShouldTriggerFirewallNoInferenceFacts(t *testing.T) {
	// Missing F04 entirely must trigger, no matter how complete the rest is.
	facts := models.HabitFacts{}
	for _, id := range models.AllFactIDs {
		if id == models.FactActualFrequency {
			continue
		}
		facts[id] = statedFact("x")
	}
	if !ShouldTriggerFirewall(facts, 0) {
		t.Error("firewall should trigger when F04 is missing")
	}

	facts[models.FactActualFrequency] = models.FactValue{Value: "daily", Uncertainty: models.UncertaintyInferred}
	if !ShouldTriggerFirewall(facts, 0) {
		t.Error("firewall should trigger when a no-inference fact is above U0")
	}

	facts[models.FactActualFrequency] = statedFact("daily")
	if ShouldTriggerFirewall(facts, 0) {
		t.Error("firewall should not trigger with all no-inference facts at U0 and high ICI")
	}
}

func TestShouldTriggerFirewallU4Fact(t *testing.T) {
	facts := models.HabitFacts{}
	for _, id := range models.AllFactIDs {
		facts[id] = statedFact("x")
	}
	facts[models.FactLocation] = models.FactValue{Value: "?", Uncertainty: models.UncertaintyUnknown}
	if !ShouldTriggerFirewall(facts, 0) {
		t.Error("firewall should trigger when any fact is U4")
	}
}

func TestShouldTriggerFirewallAssumptionBudget(t *testing.T) {
	facts := models.HabitFacts{}
	for _, id := range models.AllFactIDs {
		facts[id] = statedFact("x")
	}
	if ShouldTriggerFirewall(facts, 6) {
		t.Error("firewall should not trigger at budget == 6")
	}
	if !ShouldTriggerFirewall(facts, 7) {
		t.Error("firewall should trigger at budget > 6")
	}
}

func TestShouldTriggerFirewallLowICI(t *testing.T) {
	// Four stated facts alone: ICI = 0.5*(4/16) + 0.5*1.0 = 0.625 >= 0.60.
	facts := fourNoInferenceFacts()
	if ShouldTriggerFirewall(facts, 0) {
		t.Errorf("firewall should not trigger: ICI=%v, budget=0, no-inference facts all U0", CalculateICI(facts))
	}

	// Two stated facts: ICI = 0.5*(2/16) + 0.5*1.0 = 0.5625 < 0.60.
	sparse := models.HabitFacts{
		models.FactActualFrequency: statedFact("daily"),
		models.FactVisibility:      statedFact("visible"),
	}
	if !ShouldTriggerFirewall(sparse, 0) {
		t.Errorf("firewall should trigger below the ICI threshold: ICI=%v", CalculateICI(sparse))
	}
}

func TestFirewallPolicyConfigurable(t *testing.T) {
	facts := fourNoInferenceFacts()
	strict := FirewallPolicy{MinICI: 0.9, MaxAssumptionBudget: 6}
	if !strict.ShouldTriggerFirewall(facts, 0) {
		t.Error("stricter ICI threshold should trigger the firewall")
	}
}
