package engine

import "strings"

var resistanceKeywords = []string{
	"no", "not interested", "don't want", "can't afford", "too expensive",
	"not sure", "maybe later", "need to think", "will come back",
	"let me think", "not today", "maybe next time", "not ready",
}

var negativeEmotions = []string{"worried", "anxious", "skeptical", "frustrated", "confused"}

var resistanceSituations = map[string]bool{
	"price_shock_in_store":       true,
	"walking_away_pause":         true,
	"urgency_without_commitment": true,
	"budget_boundary":            true,
	"fear_of_wrong_choice":       true,
	"return_policy_anxiety":      true,
}

var positiveKeywords = []string{
	"yes", "sounds good", "i'll take it", "let's do it", "i want",
	"ready to buy", "when can i get", "how do i pay", "i'll buy",
}

var positiveEmotions = []string{"excited", "happy", "hopeful"}

var positiveSituations = map[string]bool{
	"second_visit_return":       true,
	"stock_availability_check":  true,
	"delivery_timeline_concern": true,
}

// hasResistanceSignals reports whether the turn shows pushback: resistance
// wording, a captured objection, a negative emotional state, or a situation
// that is itself a form of resistance.
func hasResistanceSignals(message, situation string, ctx Context) bool {
	lower := strings.ToLower(message)
	for _, kw := range resistanceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	if ctx.Truthy("objection") {
		return true
	}

	emotional := strings.ToLower(ctx["emotional_state"].String())
	for _, emotion := range negativeEmotions {
		if strings.Contains(emotional, emotion) {
			return true
		}
	}

	return resistanceSituations[situation]
}

// hasPositiveSignals reports whether the turn shows buying intent.
func hasPositiveSignals(message, situation string, ctx Context) bool {
	lower := strings.ToLower(message)
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	if ctx.Truthy("commitment_signal") {
		return true
	}

	emotional := strings.ToLower(ctx["emotional_state"].String())
	for _, emotion := range positiveEmotions {
		if strings.Contains(emotional, emotion) {
			return true
		}
	}

	return positiveSituations[situation]
}
