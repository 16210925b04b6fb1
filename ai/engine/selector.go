package engine

import (
	"log/slog"
)

// Selection is a chosen principle plus the reason it was chosen.
type Selection struct {
	Principle Principle
	Reason    string
}

// situationAliases maps the shorthand situation names used in selector
// rules to the canonical situation keys.
var situationAliases = map[string]string{
	"price_objection":         "price_shock_in_store",
	"comparing_online":        "online_price_checking",
	"need_to_ask_spouse":      "need_to_check_with_family",
	"warranty_concern":        "warranty_and_service_concern",
	"past_bad_experience":     "past_purchase_regret",
	"wants_discount":          "discount_expectation",
	"will_come_back_later":    "walking_away_pause",
	"let_me_think":            "urgency_without_commitment",
	"ready_to_buy":            "second_visit_return",
	"asking_about_stock":      "stock_availability_check",
	"asking_about_delivery":   "delivery_timeline_concern",
	"saw_bad_reviews":         "authenticity_genuineness_doubt",
	"skeptical_about_quality": "quality_doubt",
	"looking_for_cheaper":     "budget_boundary",
	"asking_about_emi":        "cash_vs_card_decision",
	"comparing_models":        "upgrade_value_uncertainty",
	"doing_research":          "want_to_research_more",
	"service_concern":         "after_sales_support_worry",
	"return_policy_question":  "return_policy_anxiety",
	"friend_had_issues":       "conflicting_peer_recommendation",
	"confused_about_features": "feature_overload_paralysis",
	"just_browsing":           "just_browsing",
}

var canonicalSituations = func() map[string]bool {
	set := make(map[string]bool, len(situationAliases))
	for _, canonical := range situationAliases {
		set[canonical] = true
	}
	return set
}()

// recentUseWindow is how many recent turns are checked when avoiding
// principle repetition.
const recentUseWindow = 3

// PrincipleSelector picks the persuasion principle for a turn from the
// rule table. Selection is deterministic, no LLM involved.
type PrincipleSelector struct {
	rules      []SelectorRule
	fallback   map[string]string
	principles map[string]Principle
}

// NewPrincipleSelector creates a selector over the loaded rule tables.
func NewPrincipleSelector(rules *RuleSet) *PrincipleSelector {
	return &PrincipleSelector{
		rules:      rules.Selector.Rules,
		fallback:   rules.Selector.Fallback,
		principles: rules.Principles,
	}
}

// normalizeSituation resolves a rule shorthand to its canonical key.
// Already-canonical and unknown keys pass through unchanged.
func normalizeSituation(situation string) string {
	if canonicalSituations[situation] {
		return situation
	}
	if canonical, ok := situationAliases[situation]; ok {
		return canonical
	}
	return situation
}

// Select picks a principle. Resistance fallbacks and the empty-context
// fallback take precedence over rule matching, and a rule is skipped when
// its principle was already used twice in the recent window.
func (s *PrincipleSelector) Select(situation string, ctx Context, principleHistory []string, resistanceCount int) Selection {
	normalized := normalizeSituation(situation)

	switch {
	case resistanceCount >= 2:
		return Selection{
			Principle: s.fallbackPrinciple("after_failed_attempt_2"),
			Reason:    "fallback_after_resistance_2",
		}
	case resistanceCount >= 1:
		return Selection{
			Principle: s.fallbackPrinciple("after_failed_attempt_1"),
			Reason:    "fallback_after_resistance_1",
		}
	}

	if ctx.Richness() == 0 {
		return Selection{
			Principle: s.fallbackPrinciple("when_no_context"),
			Reason:    "fallback_no_context",
		}
	}

	for _, rule := range s.rules {
		if normalizeSituation(rule.Situation) != normalized {
			continue
		}
		if !ruleConditionsMet(rule, ctx) {
			continue
		}

		principle, ok := s.principles[rule.Use]
		if !ok {
			slog.Warn("selector rule references unknown principle, skipping", "principle_id", rule.Use)
			continue
		}

		if countRecentUses(rule.Use, principleHistory) >= 2 {
			continue
		}

		reason := "rule_match: direct match"
		if rule.Note != "" {
			reason = "rule_match: " + rule.Note
		}
		return Selection{Principle: principle, Reason: reason}
	}

	return Selection{
		Principle: s.fallbackPrinciple("default"),
		Reason:    "no_rule_match",
	}
}

// Fallback returns the backup principle for the current session state,
// surfaced on the dashboard so the human agent always has a plan B.
func (s *PrincipleSelector) Fallback(resistanceCount int, ctx Context) Principle {
	switch {
	case resistanceCount >= 2:
		return s.fallbackPrinciple("after_failed_attempt_2")
	case resistanceCount >= 1:
		return s.fallbackPrinciple("after_failed_attempt_1")
	case ctx.Richness() == 0:
		return s.fallbackPrinciple("when_no_context")
	default:
		return s.fallbackPrinciple("default")
	}
}

// fallbackPrinciple resolves a fallback slot, degrading to the default
// slot and finally to any known principle.
func (s *PrincipleSelector) fallbackPrinciple(slot string) Principle {
	id, ok := s.fallback[slot]
	if !ok || id == "" {
		id = s.fallback["default"]
	}

	if principle, ok := s.principles[id]; ok {
		return principle
	}

	slog.Error("fallback principle not found, using first available", "principle_id", id)
	for _, principle := range s.principles {
		return principle
	}
	return Principle{}
}

func ruleConditionsMet(rule SelectorRule, ctx Context) bool {
	for _, required := range rule.WhenContextHas {
		if !ctx.Truthy(required) {
			return false
		}
	}
	for _, forbidden := range rule.WhenContextMissing {
		if ctx.Truthy(forbidden) {
			return false
		}
	}
	return true
}

func countRecentUses(principleID string, history []string) int {
	start := len(history) - recentUseWindow
	if start < 0 {
		start = 0
	}

	count := 0
	for _, used := range history[start:] {
		if used == principleID {
			count++
		}
	}
	return count
}
