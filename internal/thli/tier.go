package thli

import "github.com/BTreeMap/HabitAudit/internal/models"

// CalculateLevelTier maps an expected-min level onto a named tier using
// fixed breakpoints spanning the 0-199 level range.
func CalculateLevelTier(expectedMinLevel float64) models.LevelTier {
	switch {
	case expectedMinLevel < 40:
		return models.TierBeginner
	case expectedMinLevel < 80:
		return models.TierNovice
	case expectedMinLevel < 120:
		return models.TierIntermediate
	case expectedMinLevel < 160:
		return models.TierAdvanced
	default:
		return models.TierExpert
	}
}
