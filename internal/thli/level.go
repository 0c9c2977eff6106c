package thli

import (
	"log/slog"
	"math"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// CalculateLevel produces the complete difficulty estimate for a fact set.
// When the missingness firewall fires, the returned estimate carries neutral
// variables, the most conservative tier, and the VOI question list; that is
// a regular outcome, not an error.
func CalculateLevel(facts models.HabitFacts) models.LevelEstimate {
	return CalculateLevelWithPolicy(facts, DefaultFirewallPolicy())
}

// CalculateLevelWithPolicy is CalculateLevel with explicit firewall thresholds.
func CalculateLevelWithPolicy(facts models.HabitFacts, policy FirewallPolicy) models.LevelEstimate {
	ici := CalculateICI(facts)
	budget := AssumptionBudgetUsed(facts)

	if policy.ShouldTriggerFirewall(facts, budget) {
		slog.Debug("thli.CalculateLevel: firewall triggered", "ici", ici, "assumptionBudget", budget, "factCount", len(facts))
		return models.LevelEstimate{
			Tier:              models.TierExpert,
			Variables:         neutralVariables(),
			ICI:               ici,
			AssumptionBudget:  budget,
			FirewallTriggered: true,
			VOIQuestions:      GenerateVOIQuestions(facts),
		}
	}

	vars := ScoreVariables(facts)
	vars, warnings := EnforceRangeContract(vars)

	var sum float64
	for _, v := range vars {
		sum += v.Score
	}
	base := math.Min(sum, models.MaxLevel)

	// Wider spread when information is thin or heavily inferred.
	spread := (1-ici)*20 + float64(budget)*3

	optimistic := clampLevel(base - spread)
	conservative := clampLevel(base + spread)
	expectedMin := clampLevel(base - spread/2)
	expectedMax := clampLevel(base + spread/2)

	estimate := models.LevelEstimate{
		OptimisticLevel:   optimistic,
		ExpectedMinLevel:  expectedMin,
		ExpectedMaxLevel:  expectedMax,
		ConservativeLevel: conservative,
		Tier:              CalculateLevelTier(expectedMin),
		Variables:         vars,
		ICI:               ici,
		AssumptionBudget:  budget,
		Warnings:          warnings,
	}

	slog.Debug("thli.CalculateLevel: scored", "base", base, "spread", spread, "tier", estimate.Tier, "ici", ici, "assumptionBudget", budget)
	return estimate
}

// neutralVariables returns all 24 variables zeroed for a firewalled estimate.
func neutralVariables() []models.THLIVariable {
	vars := make([]models.THLIVariable, 0, models.VariableCount)
	for _, def := range models.VariableDefinitions {
		vars = append(vars, models.THLIVariable{
			ID:        def.ID,
			Name:      def.Name,
			Domain:    def.Domain,
			Score:     0.0,
			Stoplight: StoplightFor(0.0),
			Rationale: "firewall active; not scored",
		})
	}
	return vars
}

func clampLevel(v float64) float64 {
	if v < models.MinLevel {
		return models.MinLevel
	}
	if v > models.MaxLevel {
		return models.MaxLevel
	}
	return v
}
