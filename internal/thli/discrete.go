// Package thli implements the Tiny Habit Level Index scoring library:
// pure, deterministic functions that turn a partial habit fact set into a
// 24-variable difficulty estimate.
//
// Nothing in this package performs I/O. Data-quality problems never raise
// errors here; they degrade to defaults, neutral scores, or warnings.
package thli

import (
	"math"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// RoundToDiscreteScore snaps a raw value to the nearest member of the fixed
// 7-value discrete score set. Ties resolve toward the lower member: the scan
// is ascending and the first minimal-distance match wins.
func RoundToDiscreteScore(raw float64) float64 {
	best := models.DiscreteScores[0]
	bestDist := math.Abs(raw - best)
	for _, s := range models.DiscreteScores[1:] {
		d := math.Abs(raw - s)
		if d < bestDist {
			best = s
			bestDist = d
		}
	}
	return best
}

// IsDiscreteScore reports whether v is a member of the discrete score set.
func IsDiscreteScore(v float64) bool {
	for _, s := range models.DiscreteScores {
		if v == s {
			return true
		}
	}
	return false
}

// StoplightFor classifies a discrete score into green/yellow/red.
func StoplightFor(score float64) models.Stoplight {
	switch {
	case score <= 2.8:
		return models.StoplightGreen
	case score <= 5.5:
		return models.StoplightYellow
	default:
		return models.StoplightRed
	}
}
