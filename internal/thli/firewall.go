package thli

import (
	"github.com/BTreeMap/HabitAudit/internal/models"
)

// FirewallPolicy holds the missingness-firewall thresholds, kept as
// configurable policy parameters rather than hard-coded invariants.
type FirewallPolicy struct {
	MinICI              float64 // scoring is blocked below this ICI
	MaxAssumptionBudget int     // scoring is blocked above this budget
}

// DefaultFirewallPolicy carries the reference thresholds.
func DefaultFirewallPolicy() FirewallPolicy {
	return FirewallPolicy{MinICI: 0.60, MaxAssumptionBudget: 6}
}

// ShouldTriggerFirewall reports whether scoring must be blocked in favor of
// gathering more information. It fires when any of the following hold:
// ICI below the policy minimum, assumption budget above the policy maximum,
// any fact recorded at U4, or any no-inference fact not directly stated.
func (p FirewallPolicy) ShouldTriggerFirewall(facts models.HabitFacts, assumptionBudgetUsed int) bool {
	if CalculateICI(facts) < p.MinICI {
		return true
	}
	if assumptionBudgetUsed > p.MaxAssumptionBudget {
		return true
	}
	for _, fv := range facts {
		if fv.Uncertainty == models.UncertaintyUnknown {
			return true
		}
	}
	for _, id := range models.NoInferenceFactIDs {
		fv, ok := facts[id]
		if !ok || fv.Uncertainty != models.UncertaintyStated {
			return true
		}
	}
	return false
}

// ShouldTriggerFirewall evaluates the firewall under the default policy.
func ShouldTriggerFirewall(facts models.HabitFacts, assumptionBudgetUsed int) bool {
	return DefaultFirewallPolicy().ShouldTriggerFirewall(facts, assumptionBudgetUsed)
}
