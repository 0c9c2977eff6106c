// Package models defines the 24-variable THLI rubric shared across modules.
package models

// VariableDomain groups rubric variables into the four THLI domains.
type VariableDomain string

const (
	DomainCognitive VariableDomain = "cognitive"
	DomainPhysical  VariableDomain = "physical"
	DomainTemporal  VariableDomain = "temporal"
	DomainSocial    VariableDomain = "social"
)

// Stoplight is the green/yellow/red classification of a variable score.
type Stoplight string

const (
	StoplightGreen  Stoplight = "green"
	StoplightYellow Stoplight = "yellow"
	StoplightRed    Stoplight = "red"
)

// DiscreteScores is the fixed 7-value scale every variable score is snapped to.
// The sum of all 24 variables at maximum is 199.2.
var DiscreteScores = []float64{0.0, 1.4, 2.8, 4.1, 5.5, 6.9, 8.3}

// NeutralScore is the middle of the discrete set, assigned when a variable
// has no supporting facts at all.
const NeutralScore = 4.1

// MaxVariableScore is the top of the discrete set.
const MaxVariableScore = 8.3

// VariableCount is the fixed size of the THLI rubric.
const VariableCount = 24

// VariableDefinition describes one rubric entry: its identifier, human
// name, domain, and the facts that feed its score.
type VariableDefinition struct {
	ID           int            `json:"id"`
	Name         string         `json:"name"`
	Domain       VariableDomain `json:"domain"`
	RelatedFacts []FactID       `json:"related_facts"`
}

// VariableDefinitions is the fixed THLI rubric, six variables per domain.
var VariableDefinitions = []VariableDefinition{
	{ID: 1, Name: "task_complexity", Domain: DomainCognitive, RelatedFacts: []FactID{FactActionDefinition, FactExecutionSteps}},
	{ID: 2, Name: "decision_load", Domain: DomainCognitive, RelatedFacts: []FactID{FactExecutionSteps, FactMotivationSource}},
	{ID: 3, Name: "mental_effort", Domain: DomainCognitive, RelatedFacts: []FactID{FactMentalEffort}},
	{ID: 4, Name: "focus_requirement", Domain: DomainCognitive, RelatedFacts: []FactID{FactMentalEffort, FactTimeOfDay}},
	{ID: 5, Name: "planning_burden", Domain: DomainCognitive, RelatedFacts: []FactID{FactExecutionSteps, FactPastAttempts}},
	{ID: 6, Name: "memory_demand", Domain: DomainCognitive, RelatedFacts: []FactID{FactExecutionSteps, FactAvoidanceSignals}},
	{ID: 7, Name: "physical_effort", Domain: DomainPhysical, RelatedFacts: []FactID{FactPhysicalEffort}},
	{ID: 8, Name: "equipment_dependency", Domain: DomainPhysical, RelatedFacts: []FactID{FactRequiredEquipment}},
	{ID: 9, Name: "travel_distance", Domain: DomainPhysical, RelatedFacts: []FactID{FactTravelDistance}},
	{ID: 10, Name: "environmental_constraint", Domain: DomainPhysical, RelatedFacts: []FactID{FactLocation}},
	{ID: 11, Name: "energy_cost", Domain: DomainPhysical, RelatedFacts: []FactID{FactPhysicalEffort, FactTypicalDuration}},
	{ID: 12, Name: "physical_skill", Domain: DomainPhysical, RelatedFacts: []FactID{FactActionDefinition, FactPhysicalEffort}},
	{ID: 13, Name: "duration", Domain: DomainTemporal, RelatedFacts: []FactID{FactTypicalDuration}},
	{ID: 14, Name: "frequency", Domain: DomainTemporal, RelatedFacts: []FactID{FactActualFrequency}},
	{ID: 15, Name: "schedule_rigidity", Domain: DomainTemporal, RelatedFacts: []FactID{FactTimeOfDay}},
	{ID: 16, Name: "time_window_constraint", Domain: DomainTemporal, RelatedFacts: []FactID{FactTimeOfDay, FactLocation}},
	{ID: 17, Name: "consistency_demand", Domain: DomainTemporal, RelatedFacts: []FactID{FactActualFrequency, FactPastAttempts}},
	{ID: 18, Name: "preparation_time", Domain: DomainTemporal, RelatedFacts: []FactID{FactExecutionSteps, FactRequiredEquipment}},
	{ID: 19, Name: "visibility_pressure", Domain: DomainSocial, RelatedFacts: []FactID{FactVisibility}},
	{ID: 20, Name: "social_dependency", Domain: DomainSocial, RelatedFacts: []FactID{FactSocialContext}},
	{ID: 21, Name: "accountability", Domain: DomainSocial, RelatedFacts: []FactID{FactVisibility, FactFailureConsequence}},
	{ID: 22, Name: "failure_stakes", Domain: DomainSocial, RelatedFacts: []FactID{FactFailureConsequence}},
	{ID: 23, Name: "motivation_fragility", Domain: DomainSocial, RelatedFacts: []FactID{FactMotivationSource, FactAvoidanceSignals}},
	{ID: 24, Name: "relapse_risk", Domain: DomainSocial, RelatedFacts: []FactID{FactPastAttempts, FactAvoidanceSignals}},
}

// THLIVariable is one scored rubric entry.
type THLIVariable struct {
	ID                int            `json:"id"`
	Name              string         `json:"name"`
	Domain            VariableDomain `json:"domain"`
	Score             float64        `json:"score"`
	Stoplight         Stoplight      `json:"stoplight"`
	Rationale         string         `json:"rationale"`
	ContributingFacts []FactID       `json:"contributing_facts,omitempty"`
}
