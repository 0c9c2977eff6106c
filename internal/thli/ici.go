package thli

import (
	"math"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// certaintyWeight maps an uncertainty type to its contribution to the ICI.
// Directly stated facts count fully; guessed facts count for nothing.
func certaintyWeight(u models.UncertaintyType) float64 {
	switch u {
	case models.UncertaintyStated:
		return 1.0
	case models.UncertaintyImplied:
		return 0.8
	case models.UncertaintyInferred:
		return 0.6
	case models.UncertaintyAssumed:
		return 0.3
	default:
		return 0.0
	}
}

// CalculateICI computes the Information Completeness Index in [0,1].
// It blends how many of the 16 facts are present with how reliable the
// present facts are: 0.5*presence ratio + 0.5*mean certainty weight.
// The result is independent of map iteration order and re-entrant.
func CalculateICI(facts models.HabitFacts) float64 {
	if len(facts) == 0 {
		return 0
	}
	var certaintySum float64
	for _, fv := range facts {
		certaintySum += certaintyWeight(fv.Uncertainty)
	}
	presence := float64(len(facts)) / float64(len(models.AllFactIDs))
	meanCertainty := certaintySum / float64(len(facts))
	ici := 0.5*presence + 0.5*meanCertainty
	return math.Min(1.0, math.Max(0.0, ici))
}

// assumptionWeight is the per-fact cost charged against the assumption budget.
// Only inferential provenance is charged; stated (U0) and unknown (U4) facts
// contribute nothing (U4 facts trip the firewall outright).
func assumptionWeight(u models.UncertaintyType) float64 {
	switch u {
	case models.UncertaintyImplied:
		return 0.5
	case models.UncertaintyInferred:
		return 1.0
	case models.UncertaintyAssumed:
		return 2.0
	default:
		return 0.0
	}
}

// AssumptionBudgetUsed sums the inferential weight of all present facts,
// rounded to the nearest integer.
func AssumptionBudgetUsed(facts models.HabitFacts) int {
	var total float64
	for _, fv := range facts {
		total += assumptionWeight(fv.Uncertainty)
	}
	return int(math.Round(total))
}
