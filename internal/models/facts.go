// Package models defines the core data structures for HabitAudit.
//
// It includes the habit fact model, the 24-variable THLI rubric, and the
// assessment session types shared across modules.
package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FactID identifies one of the 16 fixed habit facts gathered during an audit.
type FactID string

// Fact identifiers F01-F16.
const (
	FactActionDefinition   FactID = "F01" // what the habit action actually is
	FactExecutionSteps     FactID = "F02" // concrete steps to perform it
	FactTypicalDuration    FactID = "F03" // typical duration in minutes
	FactActualFrequency    FactID = "F04" // how often it is actually performed
	FactTimeOfDay          FactID = "F05" // when during the day it happens
	FactLocation           FactID = "F06" // where it happens
	FactTravelDistance     FactID = "F07" // travel distance in km, if any
	FactRequiredEquipment  FactID = "F08" // equipment or tools needed
	FactPhysicalEffort     FactID = "F09" // physical exertion involved
	FactMentalEffort       FactID = "F10" // mental exertion involved
	FactSocialContext      FactID = "F11" // alone or with others
	FactMotivationSource   FactID = "F12" // what drives the habit
	FactVisibility         FactID = "F13" // whether others can see the habit
	FactFailureConsequence FactID = "F14" // what happens when it is skipped
	FactPastAttempts       FactID = "F15" // history of prior attempts
	FactAvoidanceSignals   FactID = "F16" // signs the user avoids the habit
)

// AllFactIDs lists every fact identifier in ascending order.
var AllFactIDs = []FactID{
	FactActionDefinition, FactExecutionSteps, FactTypicalDuration, FactActualFrequency,
	FactTimeOfDay, FactLocation, FactTravelDistance, FactRequiredEquipment,
	FactPhysicalEffort, FactMentalEffort, FactSocialContext, FactMotivationSource,
	FactVisibility, FactFailureConsequence, FactPastAttempts, FactAvoidanceSignals,
}

// NoInferenceFactIDs are the facts that must be directly stated by the user
// (uncertainty U0) before scoring may proceed.
var NoInferenceFactIDs = []FactID{
	FactActualFrequency, FactVisibility, FactFailureConsequence, FactAvoidanceSignals,
}

// CoreFactIDs are the facts most central to defining the habit itself.
var CoreFactIDs = []FactID{
	FactActionDefinition, FactExecutionSteps, FactTypicalDuration,
}

// IsNoInferenceFact reports whether the fact must be directly stated before scoring.
func IsNoInferenceFact(id FactID) bool {
	for _, f := range NoInferenceFactIDs {
		if f == id {
			return true
		}
	}
	return false
}

// IsCoreFact reports whether the fact is part of the designated core set.
func IsCoreFact(id FactID) bool {
	for _, f := range CoreFactIDs {
		if f == id {
			return true
		}
	}
	return false
}

// IsValidFactID checks whether the given identifier is one of F01-F16.
func IsValidFactID(id FactID) bool {
	for _, f := range AllFactIDs {
		if f == id {
			return true
		}
	}
	return false
}

// UncertaintyType is the provenance ladder for a fact value, from directly
// stated (U0) through increasing degrees of inference to unknown/guessed (U4).
type UncertaintyType string

const (
	UncertaintyStated    UncertaintyType = "U0" // directly stated by the user
	UncertaintyImplied   UncertaintyType = "U1" // lightly inferred from context
	UncertaintyInferred  UncertaintyType = "U2" // inferred across turns
	UncertaintyAssumed   UncertaintyType = "U3" // assumed from typical behavior
	UncertaintyUnknown   UncertaintyType = "U4" // unknown or guessed
	uncertaintyLevelSpan                 = 4
)

// IsValidUncertainty checks whether the given type is one of U0-U4.
func IsValidUncertainty(u UncertaintyType) bool {
	switch u {
	case UncertaintyStated, UncertaintyImplied, UncertaintyInferred, UncertaintyAssumed, UncertaintyUnknown:
		return true
	default:
		return false
	}
}

// Level returns the numeric rung of the uncertainty ladder (U0=0 ... U4=4).
// Unknown types map to the most pessimistic rung.
func (u UncertaintyType) Level() int {
	switch u {
	case UncertaintyStated:
		return 0
	case UncertaintyImplied:
		return 1
	case UncertaintyInferred:
		return 2
	case UncertaintyAssumed:
		return 3
	default:
		return uncertaintyLevelSpan
	}
}

// FactValue is a single gathered fact: a scalar or string value plus the
// uncertainty type describing how it was obtained.
type FactValue struct {
	Value       interface{}     `json:"value"`
	Uncertainty UncertaintyType `json:"uncertainty_type"`
}

// AsFloat attempts to interpret the fact value as a number. String values
// are parsed leniently: a leading numeric token is enough ("30 minutes" -> 30).
func (fv FactValue) AsFloat() (float64, bool) {
	switch v := fv.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		// Accept a leading numeric token such as "30 minutes" or "5km".
		end := 0
		for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || s[end] == '-') {
			end++
		}
		if end == 0 {
			return 0, false
		}
		f, err := strconv.ParseFloat(s[:end], 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// AsString returns the fact value rendered as a string.
func (fv FactValue) AsString() string {
	switch v := fv.Value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// HabitFacts is a sparse mapping from fact identifiers to gathered values.
// Facts accumulate monotonically: Merge may overwrite but never delete.
type HabitFacts map[FactID]FactValue

// Merge folds the incoming facts into the receiver. Existing facts are
// overwritten by incoming ones; nothing is ever removed. Invalid fact
// identifiers and uncertainty types are skipped.
func (hf HabitFacts) Merge(incoming HabitFacts) {
	for id, fv := range incoming {
		if !IsValidFactID(id) || !IsValidUncertainty(fv.Uncertainty) {
			continue
		}
		hf[id] = fv
	}
}

// Clone returns an independent copy of the fact map.
func (hf HabitFacts) Clone() HabitFacts {
	out := make(HabitFacts, len(hf))
	for id, fv := range hf {
		out[id] = fv
	}
	return out
}

// SortedIDs returns the present fact identifiers in ascending order, so
// iteration-dependent computations stay deterministic.
func (hf HabitFacts) SortedIDs() []FactID {
	ids := make([]FactID, 0, len(hf))
	for id := range hf {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
