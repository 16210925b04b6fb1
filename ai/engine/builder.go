package engine

import (
	"fmt"
	"strings"
)

// persona signal keyword lists. Persona detection is pure heuristics over
// the message, the detected situation, and the captured context.
var (
	priceSignals = []string{
		"expensive", "too much", "cost", "price", "afford", "budget",
		"cheaper", "discount", "deal", "sale", "emi", "installment",
	}
	priceSituations = map[string]bool{
		"price_shock_in_store": true, "budget_boundary": true, "discount_expectation": true,
		"online_price_checking": true, "cash_vs_card_decision": true,
	}

	researchSignals = []string{
		"research", "compare", "check", "review", "read about", "learn more",
		"information", "specs", "features", "options",
	}
	researchSituations = map[string]bool{
		"want_to_research_more": true, "feature_overload_paralysis": true, "upgrade_value_uncertainty": true,
	}

	riskSignals = []string{
		"warranty", "return", "guarantee", "what if", "worried", "concerned",
		"risk", "safe", "reliable", "trust", "service", "repair",
	}
	riskSituations = map[string]bool{
		"warranty_and_service_concern": true, "return_policy_anxiety": true,
		"after_sales_support_worry": true, "past_purchase_regret": true,
	}

	readySignals = []string{
		"ready", "buy", "take it", "purchase", "order", "delivery",
		"when can i", "how do i pay", "let's do it",
	}
	readySituations = map[string]bool{
		"second_visit_return": true, "stock_availability_check": true, "delivery_timeline_concern": true,
	}
)

// probe questions by target, in priority order.
var probePriority = []NextProbe{
	{Target: "pain", Question: "What problem are you trying to solve?"},
	{Target: "timeline", Question: "When were you hoping to get this sorted?"},
	{Target: "budget", Question: "What's your budget range for this?"},
	{Target: "decision_maker", Question: "Are you the one making the decision, or do you need to check with someone?"},
	{Target: "product_interest", Question: "What features are most important to you?"},
}

var checklistToProbe = []struct {
	checklistKey string
	probeTarget  string
}{
	{"pain_expressed", "pain"},
	{"timeline_known", "timeline"},
	{"budget_discussed", "budget"},
	{"decision_maker_known", "decision_maker"},
	{"product_interest", "product_interest"},
}

// DashboardBuilder assembles the final result structure.
type DashboardBuilder struct{}

// NewDashboardBuilder creates a builder.
func NewDashboardBuilder() *DashboardBuilder {
	return &DashboardBuilder{}
}

// BuildInput carries everything the builder needs for one turn.
type BuildInput struct {
	CustomerMessage string
	Response        string
	Detection       Detection
	Context         Context
	Quotes          []string
	Selected        Selection
	FallbackPlay    Principle
	SessionID       string
	TurnCount       int
	ResistanceCount int
	PrinciplesUsed  []string
	LatencyMs       int64
	StepLatencies   StepLatencies
}

// Build produces the full result for one turn.
func (b *DashboardBuilder) Build(in BuildInput) Result {
	persona, personaConfidence := detectPersona(in.CustomerMessage, in.Detection.Situation, in.Context)
	checklist := buildQualificationChecklist(in.Context)

	return Result{
		CustomerFacing: CustomerFacing{Response: in.Response},
		AgentDashboard: AgentDashboard{
			Detection: DetectionSummary{
				CustomerSaid:        in.CustomerMessage,
				DetectedSituation:   in.Detection.Situation,
				SituationConfidence: in.Detection.Confidence,
				MicroStage:          in.Detection.Stage,
				DetectedPersona:     persona,
				PersonaConfidence:   personaConfidence,
			},
			CapturedContext:        in.Context.Strings(),
			CapturedQuotes:         append([]string(nil), in.Quotes...),
			QualificationChecklist: checklist,
			Recommendation:         formatRecommendation(in.Selected, in.Response),
			Fallback:               formatFallback(in.FallbackPlay, in.Quotes),
			NextProbe:              determineNextProbe(in.Context, checklist),
			Session: SessionSummary{
				SessionID:       in.SessionID,
				TurnCount:       in.TurnCount,
				ResistanceCount: in.ResistanceCount,
				PrinciplesUsed:  append([]string(nil), in.PrinciplesUsed...),
			},
			System: SystemInfo{
				LatencyMs:     in.LatencyMs,
				StepLatencies: in.StepLatencies,
			},
		},
	}
}

// detectPersona classifies the customer into one of five personas.
// Confidence is higher when keyword and situation evidence agree.
func detectPersona(message, situation string, ctx Context) (string, float64) {
	lower := strings.ToLower(message)

	hasSignal := func(signals []string) bool {
		for _, s := range signals {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}

	hasPrice := hasSignal(priceSignals)
	if hasPrice || priceSituations[situation] || ctx.Truthy("budget_signal") {
		if hasPrice && priceSituations[situation] {
			return "price_conscious", 0.85
		}
		return "price_conscious", 0.70
	}

	hasResearch := hasSignal(researchSignals)
	if hasResearch || researchSituations[situation] {
		if hasResearch && researchSituations[situation] {
			return "research_oriented", 0.80
		}
		return "research_oriented", 0.65
	}

	hasRisk := hasSignal(riskSignals)
	if hasRisk || riskSituations[situation] {
		if hasRisk && riskSituations[situation] {
			return "risk_averse", 0.80
		}
		return "risk_averse", 0.65
	}

	hasReady := hasSignal(readySignals)
	if hasReady || readySituations[situation] {
		if hasReady && readySituations[situation] {
			return "ready_to_buy", 0.85
		}
		return "ready_to_buy", 0.70
	}

	return "exploratory", 0.60
}

// buildQualificationChecklist maps captured context onto the standard
// qualification questions.
func buildQualificationChecklist(ctx Context) map[string]bool {
	return map[string]bool{
		"need_identified":  ctx.Truthy("pain") || ctx.Truthy("trigger_event") || ctx.Truthy("current_state"),
		"pain_expressed":   ctx.Truthy("pain"),
		"product_interest": ctx.Truthy("product_interest") || ctx.Truthy("product_model"),
		"budget_discussed": ctx.Truthy("budget_signal") || ctx.Truthy("budget_range") || ctx.Truthy("payment_preference"),
		"timeline_known":   ctx.Truthy("timeline") || ctx.Truthy("urgency") || ctx.Truthy("trigger_event"),
		"decision_maker_known": ctx.Truthy("decision_maker") || ctx.Truthy("buying_authority") ||
			!ctx.Truthy("need_to_check_with_family"),
	}
}

// determineNextProbe finds the highest-priority unanswered qualification
// question, then deeper context probes, then the closing question.
func determineNextProbe(ctx Context, checklist map[string]bool) NextProbe {
	for _, mapping := range checklistToProbe {
		if checklist[mapping.checklistKey] {
			continue
		}
		for _, probe := range probePriority {
			if probe.Target == mapping.probeTarget {
				return probe
			}
		}
	}

	if !ctx.Truthy("duration") {
		return NextProbe{Target: "duration", Question: "How long have you been dealing with this?"}
	}
	if !ctx.Truthy("current_state") {
		return NextProbe{Target: "current_state", Question: "What are you currently using?"}
	}

	return NextProbe{
		Target:   "commitment",
		Question: "What would it take for you to feel confident about this purchase?",
	}
}

func formatRecommendation(selected Selection, response string) Recommendation {
	return Recommendation{
		Principle:   selected.Principle.Name,
		PrincipleID: selected.Principle.ID,
		Source:      formatSource(selected.Principle.Source),
		Approach:    selected.Principle.Intervention,
		Response:    response,
		WhyItWorks:  selected.Principle.Mechanism,
	}
}

func formatFallback(principle Principle, quotes []string) Fallback {
	return Fallback{
		Principle:   principle.Name,
		PrincipleID: principle.ID,
		Response:    fallbackResponse(quotes),
	}
}

func formatSource(s Source) string {
	if s.Author == "" || s.Book == "" {
		return "Unknown"
	}

	formatted := fmt.Sprintf("%s, %s", s.Author, s.Book)
	if s.Chapter != "" {
		formatted += fmt.Sprintf(", Ch.%s", s.Chapter)
	}
	if s.Page != "" {
		formatted += fmt.Sprintf(", p.%s", s.Page)
	}
	return formatted
}
