package thli

import (
	"math"
	"sort"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// MaxVOIQuestions caps how many questions a single VOI ranking returns.
const MaxVOIQuestions = 5

// voiTemplate pairs a canned question with a base impact weight for one fact.
type voiTemplate struct {
	question string
	impact   float64
}

// voiTemplates holds the per-fact question templates. Impact reflects how
// much a reliable answer is expected to move the estimate.
var voiTemplates = map[models.FactID]voiTemplate{
	models.FactActionDefinition:   {question: "What exactly does doing this habit look like, step by step?", impact: 8},
	models.FactExecutionSteps:     {question: "What do you actually do, in order, when you perform it?", impact: 7},
	models.FactTypicalDuration:    {question: "How many minutes does one session usually take?", impact: 8},
	models.FactActualFrequency:    {question: "How often do you actually do it right now, not how often you intend to?", impact: 9},
	models.FactTimeOfDay:          {question: "At what time of day do you usually do it?", impact: 5},
	models.FactLocation:           {question: "Where do you usually do it?", impact: 5},
	models.FactTravelDistance:     {question: "Do you need to travel to do it, and how far?", impact: 6},
	models.FactRequiredEquipment:  {question: "Is there any equipment or preparation you need first?", impact: 5},
	models.FactPhysicalEffort:     {question: "How physically demanding does a session feel?", impact: 6},
	models.FactMentalEffort:       {question: "How much concentration or willpower does it take?", impact: 6},
	models.FactSocialContext:      {question: "Do you do it alone or does it involve other people?", impact: 4},
	models.FactMotivationSource:   {question: "What keeps you coming back to it?", impact: 6},
	models.FactVisibility:         {question: "Can other people see whether you did it or skipped it?", impact: 7},
	models.FactFailureConsequence: {question: "What actually happens when you skip it?", impact: 8},
	models.FactPastAttempts:       {question: "Have you tried to build this habit before? How did it go?", impact: 5},
	models.FactAvoidanceSignals:   {question: "Do you notice yourself putting it off or finding excuses?", impact: 7},
}

// Impact boost multipliers. Both compose multiplicatively when a fact is in
// both designated sets.
const (
	noInferenceBoost = 1.5
	coreFactBoost    = 1.2
)

// GenerateVOIQuestions ranks missing or unreliable facts by estimated value
// of information. Every fact that is absent or not directly stated (U0)
// yields its canned question; the top 5 by descending impact are returned.
// Pure: callable without a live session.
func GenerateVOIQuestions(facts models.HabitFacts) []models.VOIQuestion {
	var questions []models.VOIQuestion
	for _, id := range models.AllFactIDs {
		if fv, ok := facts[id]; ok && fv.Uncertainty == models.UncertaintyStated {
			continue
		}
		tpl, ok := voiTemplates[id]
		if !ok {
			continue
		}
		impact := tpl.impact
		if models.IsNoInferenceFact(id) {
			impact *= noInferenceBoost
		}
		if models.IsCoreFact(id) {
			impact *= coreFactBoost
		}
		priority := int(math.Ceil(impact / 2))
		if priority > 5 {
			priority = 5
		}
		if priority < 1 {
			priority = 1
		}
		questions = append(questions, models.VOIQuestion{
			FactID:   id,
			Question: tpl.question,
			Impact:   impact,
			Priority: priority,
		})
	}

	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].Impact != questions[j].Impact {
			return questions[i].Impact > questions[j].Impact
		}
		return questions[i].FactID < questions[j].FactID
	})

	if len(questions) > MaxVOIQuestions {
		questions = questions[:MaxVOIQuestions]
	}
	return questions
}
