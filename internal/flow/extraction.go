package flow

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

const factBlockFence = "```facts"

// rawFact mirrors the JSON shape the audit prompt asks the model to emit
// for each fact id.
type rawFact struct {
	Value       interface{} `json:"value"`
	Uncertainty string      `json:"uncertainty_type"`
}

// ExtractFactBlock pulls the fenced facts block out of an assistant reply.
// It returns the parsed facts and the reply with the block removed, which
// is what the user should actually see. Extraction never fails the turn:
// a malformed or absent block yields empty facts and the reply untouched
// apart from fence removal.
func ExtractFactBlock(response string) (models.HabitFacts, string) {
	start := strings.Index(response, factBlockFence)
	if start < 0 {
		return models.HabitFacts{}, strings.TrimSpace(response)
	}

	bodyStart := start + len(factBlockFence)
	end := strings.Index(response[bodyStart:], "```")
	if end < 0 {
		// Unterminated fence. Drop everything from the fence onward so the
		// user never sees half a JSON object.
		slog.Warn("flow.ExtractFactBlock: unterminated facts fence")
		return models.HabitFacts{}, strings.TrimSpace(response[:start])
	}

	blockJSON := response[bodyStart : bodyStart+end]
	visible := strings.TrimSpace(response[:start] + response[bodyStart+end+3:])

	facts := parseFactJSON(blockJSON)
	return facts, visible
}

// parseFactJSON decodes the fact block, repairing near-JSON output when the
// first decode fails. Invalid fact ids and uncertainty labels are dropped
// by HabitFacts.Merge, not here.
func parseFactJSON(blockJSON string) models.HabitFacts {
	var raw map[string]rawFact
	if err := json.Unmarshal([]byte(blockJSON), &raw); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(blockJSON)
		if repairErr != nil {
			slog.Warn("flow.parseFactJSON: fact block unparseable", "error", err, "repairError", repairErr)
			return models.HabitFacts{}
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			slog.Warn("flow.parseFactJSON: repaired fact block still unparseable", "error", err)
			return models.HabitFacts{}
		}
		slog.Debug("flow.parseFactJSON: fact block recovered via repair")
	}

	facts := models.HabitFacts{}
	incoming := models.HabitFacts{}
	for id, rf := range raw {
		incoming[models.FactID(id)] = models.FactValue{
			Value:       rf.Value,
			Uncertainty: models.UncertaintyType(rf.Uncertainty),
		}
	}
	facts.Merge(incoming)
	return facts
}
