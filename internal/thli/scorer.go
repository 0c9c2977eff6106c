package thli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// ScoreVariables maps a partial fact set to the 24 discrete variable scores.
// Variables with no supporting facts receive the neutral default (4.1).
// Every score is snapped to the discrete set before being returned.
func ScoreVariables(facts models.HabitFacts) []models.THLIVariable {
	vars := make([]models.THLIVariable, 0, models.VariableCount)
	for _, def := range models.VariableDefinitions {
		vars = append(vars, scoreVariable(def, facts))
	}
	return vars
}

func scoreVariable(def models.VariableDefinition, facts models.HabitFacts) models.THLIVariable {
	present := make([]models.FactID, 0, len(def.RelatedFacts))
	for _, id := range def.RelatedFacts {
		if _, ok := facts[id]; ok {
			present = append(present, id)
		}
	}

	v := models.THLIVariable{
		ID:                def.ID,
		Name:              def.Name,
		Domain:            def.Domain,
		ContributingFacts: present,
	}

	if len(present) == 0 {
		v.Score = models.NeutralScore
		v.Rationale = "no supporting facts; neutral default applied"
		v.Stoplight = StoplightFor(v.Score)
		return v
	}

	var raw float64
	switch def.Name {
	case "frequency":
		raw = scoreFrequency(facts[models.FactActualFrequency])
		v.Rationale = "frequency heuristic over stated cadence"
	case "duration":
		raw = scoreDuration(facts[models.FactTypicalDuration])
		v.Rationale = "duration bucket over typical minutes"
	case "travel_distance":
		raw = scoreTravelDistance(facts[models.FactTravelDistance])
		v.Rationale = "travel distance bucket over stated km"
	default:
		raw = scoreGeneric(present, facts)
		v.Rationale = fmt.Sprintf("uncertainty-weighted fallback over %d fact(s)", len(present))
	}

	v.Score = RoundToDiscreteScore(raw)
	v.Stoplight = StoplightFor(v.Score)
	return v
}

// scoreFrequency applies the coarse cadence table. Literal phrases take
// precedence; numeric values are read as times per week.
func scoreFrequency(fv models.FactValue) float64 {
	s := strings.ToLower(strings.TrimSpace(fv.AsString()))
	switch {
	case strings.Contains(s, "daily"), strings.Contains(s, "every day"), strings.Contains(s, "毎日"):
		return 8.3
	case strings.Contains(s, "weekday"), strings.Contains(s, "平日"):
		return 6.9
	case strings.Contains(s, "weekly"), strings.Contains(s, "every week"), strings.Contains(s, "毎週"):
		return 4.1
	case strings.Contains(s, "monthly"), strings.Contains(s, "毎月"):
		return 1.4
	}
	if n, ok := fv.AsFloat(); ok {
		switch {
		case n >= 7:
			return 8.3
		case n >= 5:
			return 6.9
		case n >= 3:
			return 5.5
		case n >= 1:
			return 4.1
		default:
			return 1.4
		}
	}
	return models.NeutralScore
}

// scoreDuration buckets the typical duration in minutes.
func scoreDuration(fv models.FactValue) float64 {
	minutes, ok := fv.AsFloat()
	if !ok {
		return models.NeutralScore
	}
	switch {
	case minutes >= 60:
		return 8.3
	case minutes >= 45:
		return 6.9
	case minutes >= 30:
		return 5.5
	case minutes >= 15:
		return 4.1
	case minutes >= 10:
		return 2.8
	case minutes >= 5:
		return 1.4
	default:
		return 0.0
	}
}

// scoreTravelDistance buckets the travel distance in kilometers.
func scoreTravelDistance(fv models.FactValue) float64 {
	km, ok := fv.AsFloat()
	if !ok {
		return models.NeutralScore
	}
	switch {
	case km >= 10:
		return 8.3
	case km >= 5:
		return 6.9
	case km >= 2:
		return 5.5
	case km >= 1:
		return 4.1
	case km > 0:
		return 2.8
	default:
		return 0.0
	}
}

// scoreGeneric averages the uncertainty level of the supporting facts and
// scales it by 2, so less-certain facts score harder, never easier.
func scoreGeneric(present []models.FactID, facts models.HabitFacts) float64 {
	var sum float64
	for _, id := range present {
		sum += float64(facts[id].Uncertainty.Level())
	}
	avg := sum / float64(len(present))
	return avg * 2
}

// EnforceRangeContract re-validates that every stored variable score is a
// member of the discrete set, correcting any that are not. It returns the
// corrected slice plus a warning per correction.
func EnforceRangeContract(vars []models.THLIVariable) ([]models.THLIVariable, []string) {
	var warnings []string
	for i := range vars {
		if IsDiscreteScore(vars[i].Score) {
			continue
		}
		corrected := RoundToDiscreteScore(vars[i].Score)
		w := fmt.Sprintf("variable %d (%s) had out-of-set score %.3f, corrected to %.1f", vars[i].ID, vars[i].Name, vars[i].Score, corrected)
		slog.Warn("thli.EnforceRangeContract: correcting out-of-set score", "variableID", vars[i].ID, "name", vars[i].Name, "score", vars[i].Score, "corrected", corrected)
		vars[i].Score = corrected
		vars[i].Stoplight = StoplightFor(corrected)
		warnings = append(warnings, w)
	}
	return vars, warnings
}
