package thli

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// Framework names used in validation results.
const (
	FrameworkWorkload     = "workload_composite"
	FrameworkAutomaticity = "automaticity_composite"
	FrameworkCOMB         = "com_b_composite"
)

// ValidationPolicy holds the cross-framework gate threshold. Treated as a
// configurable policy parameter, defaulting to the reference 20 points.
type ValidationPolicy struct {
	DiscrepancyThreshold float64
}

// DefaultValidationPolicy carries the reference threshold.
func DefaultValidationPolicy() ValidationPolicy {
	return ValidationPolicy{DiscrepancyThreshold: 20}
}

// ValidateCrossFramework derives three independent 0-199 difficulty
// estimates from the same facts and compares each to the primary
/// expected-min level. It never fails: a sub-score that cannot be computed
// is logged and reported as not computed, without aborting the others.
func ValidateCrossFramework(primary float64, facts models.HabitFacts) models.CrossFrameworkValidation {
	return DefaultValidationPolicy().ValidateCrossFramework(primary, facts)
}

// ValidateCrossFramework applies the policy's discrepancy threshold.
func (p ValidationPolicy) ValidateCrossFramework(primary float64, facts models.HabitFacts) models.CrossFrameworkValidation {
	type derivation struct {
		name string
		fn   func(models.HabitFacts) (float64, error)
	}
	derivations := []derivation{
		{FrameworkWorkload, workloadComposite},
		{FrameworkAutomaticity, automaticityComposite},
		{FrameworkCOMB, comBComposite},
	}

	validation := models.CrossFrameworkValidation{Gate: models.GatePass}
	for _, d := range derivations {
		score, err := d.fn(facts)
		if err != nil {
			slog.Warn("thli.ValidateCrossFramework: sub-score failed, continuing with partial results", "framework", d.name, "error", err)
			validation.Scores = append(validation.Scores, models.FrameworkScore{Framework: d.name, Computed: false})
			continue
		}
		score = clampLevel(score)
		validation.Scores = append(validation.Scores, models.FrameworkScore{Framework: d.name, Score: score, Computed: true})

		if delta := math.Abs(primary - score); delta > p.DiscrepancyThreshold {
			validation.Gate = models.GateFail
			validation.Discrepancies = append(validation.Discrepancies, models.Discrepancy{
				Framework:  d.name,
				Primary:    primary,
				Comparison: score,
				Delta:      delta,
			})
		}
	}
	return validation
}

// workloadComposite estimates difficulty from six demand subscales
// (mental, physical, temporal, effort, frustration, performance), each on
// a 0-10 scale, averaged and stretched onto 0-199.
func workloadComposite(facts models.HabitFacts) (float64, error) {
	subscales := []float64{
		demandSubscale(facts, models.FactMentalEffort),
		demandSubscale(facts, models.FactPhysicalEffort),
		temporalDemand(facts),
		(demandSubscale(facts, models.FactMentalEffort) + demandSubscale(facts, models.FactPhysicalEffort)) / 2,
		demandSubscale(facts, models.FactFailureConsequence),
		demandSubscale(facts, models.FactPastAttempts),
	}
	var sum float64
	for _, s := range subscales {
		if s < 0 || s > 10 || math.IsNaN(s) {
			return 0, fmt.Errorf("workload subscale out of range: %f", s)
		}
		sum += s
	}
	mean := sum / float64(len(subscales))
	return mean / 10 * models.MaxLevel, nil
}

// demandSubscale turns one fact into a 0-10 demand rating. A numeric value
// is read on a 0-10 scale; otherwise the uncertainty rung stands in, so
// shakier information reads as more demanding.
func demandSubscale(facts models.HabitFacts, id models.FactID) float64 {
	fv, ok := facts[id]
	if !ok {
		return 5 // unknown demand reads as middling
	}
	if n, nok := fv.AsFloat(); nok {
		return math.Min(10, math.Max(0, n))
	}
	return math.Min(10, float64(fv.Uncertainty.Level())*2+3)
}

// temporalDemand rates time pressure from duration and frequency together.
func temporalDemand(facts models.HabitFacts) float64 {
	d := scoreDuration(factOrZero(facts, models.FactTypicalDuration))
	f := scoreFrequency(factOrZero(facts, models.FactActualFrequency))
	// Discrete 0-8.3 scores mapped onto the 0-10 subscale.
	return math.Min(10, (d+f)/2/models.MaxVariableScore*10)
}

func factOrZero(facts models.HabitFacts, id models.FactID) models.FactValue {
	if fv, ok := facts[id]; ok {
		return fv
	}
	return models.FactValue{}
}

// automaticityComposite estimates difficulty inversely from habit strength:
// a habit already performed frequently, at a fixed time, with successful
// past attempts is largely automatic and therefore easy to keep.
func automaticityComposite(facts models.HabitFacts) (float64, error) {
	frequency := scoreFrequency(factOrZero(facts, models.FactActualFrequency)) / models.MaxVariableScore

	regularity := 0.0
	if fv, ok := facts[models.FactTimeOfDay]; ok && fv.Uncertainty == models.UncertaintyStated {
		regularity = 1.0
	}

	track := 0.5
	if fv, ok := facts[models.FactPastAttempts]; ok {
		if n, nok := fv.AsFloat(); nok && n > 0 {
			track = 1.0
		} else {
			track = 0.25
		}
	}

	automaticity := 0.5*frequency + 0.3*regularity + 0.2*track
	if automaticity < 0 || automaticity > 1 || math.IsNaN(automaticity) {
		return 0, fmt.Errorf("automaticity out of range: %f", automaticity)
	}
	return (1 - automaticity) * models.MaxLevel, nil
}

// comBComposite estimates difficulty from capability, opportunity, and
// motivation barriers, equally weighted.
func comBComposite(facts models.HabitFacts) (float64, error) {
	capability := (demandSubscale(facts, models.FactPhysicalEffort) +
		demandSubscale(facts, models.FactMentalEffort) +
		equipmentBarrier(facts)) / 3

	opportunity := (demandSubscale(facts, models.FactTravelDistance) +
		contextBarrier(facts, models.FactTimeOfDay) +
		contextBarrier(facts, models.FactLocation) +
		contextBarrier(facts, models.FactSocialContext)) / 4

	motivation := (demandSubscale(facts, models.FactFailureConsequence) +
		motivationBarrier(facts) +
		avoidanceBarrier(facts)) / 3

	composite := (capability + opportunity + motivation) / 3
	if composite < 0 || composite > 10 || math.IsNaN(composite) {
		return 0, fmt.Errorf("COM-B composite out of range: %f", composite)
	}
	return composite / 10 * models.MaxLevel, nil
}

func equipmentBarrier(facts models.HabitFacts) float64 {
	fv, ok := facts[models.FactRequiredEquipment]
	if !ok {
		return 5
	}
	s := fv.AsString()
	if s == "" || s == "none" || s == "nothing" {
		return 1
	}
	return 6
}

func contextBarrier(facts models.HabitFacts, id models.FactID) float64 {
	fv, ok := facts[id]
	if !ok {
		return 5
	}
	if fv.Uncertainty == models.UncertaintyStated {
		return 2 // a known, settled context is a low barrier
	}
	return float64(fv.Uncertainty.Level()) * 2
}

func motivationBarrier(facts models.HabitFacts) float64 {
	fv, ok := facts[models.FactMotivationSource]
	if !ok {
		return 6
	}
	if fv.Uncertainty == models.UncertaintyStated {
		return 3
	}
	return 5
}

func avoidanceBarrier(facts models.HabitFacts) float64 {
	fv, ok := facts[models.FactAvoidanceSignals]
	if !ok {
		return 5
	}
	s := fv.AsString()
	if s == "" || s == "none" || s == "no" {
		return 2
	}
	return 7
}
