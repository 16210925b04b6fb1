package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPersona(t *testing.T) {
	tests := []struct {
		name           string
		message        string
		situation      string
		ctx            Context
		wantPersona    string
		wantConfidence float64
	}{
		{
			name:           "price keyword and price situation agree",
			message:        "That's way too expensive",
			situation:      "price_shock_in_store",
			wantPersona:    "price_conscious",
			wantConfidence: 0.85,
		},
		{
			name:           "budget slot alone flags price conscious",
			message:        "Let me see that one",
			situation:      "just_browsing",
			ctx:            Context{"budget_signal": StringValue("tight budget")},
			wantPersona:    "price_conscious",
			wantConfidence: 0.70,
		},
		{
			name:           "research keyword without matching situation",
			message:        "I want to read some reviews first",
			situation:      "just_browsing",
			wantPersona:    "research_oriented",
			wantConfidence: 0.65,
		},
		{
			name:           "risk keyword and risk situation agree",
			message:        "What if it breaks, is there warranty?",
			situation:      "warranty_and_service_concern",
			wantPersona:    "risk_averse",
			wantConfidence: 0.80,
		},
		{
			name:           "ready signal and situation agree",
			message:        "When can I get delivery?",
			situation:      "delivery_timeline_concern",
			wantPersona:    "ready_to_buy",
			wantConfidence: 0.85,
		},
		{
			name:           "no signals defaults to exploratory",
			message:        "Hello there",
			situation:      "just_browsing",
			wantPersona:    "exploratory",
			wantConfidence: 0.60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.ctx
			if ctx == nil {
				ctx = Context{}
			}
			persona, confidence := detectPersona(tt.message, tt.situation, ctx)
			assert.Equal(t, tt.wantPersona, persona)
			assert.InDelta(t, tt.wantConfidence, confidence, 1e-9)
		})
	}
}

func TestQualificationChecklist(t *testing.T) {
	ctx := Context{
		"pain":          StringValue("slow laptop"),
		"budget_signal": StringValue("under 50k"),
		"timeline":      StringValue("this week"),
	}

	checklist := buildQualificationChecklist(ctx)
	assert.True(t, checklist["need_identified"])
	assert.True(t, checklist["pain_expressed"])
	assert.True(t, checklist["budget_discussed"])
	assert.True(t, checklist["timeline_known"])
	assert.False(t, checklist["product_interest"])
	// No family blocker captured means the visitor is treated as the decider.
	assert.True(t, checklist["decision_maker_known"])
}

func TestNextProbe_PriorityOrder(t *testing.T) {
	// Nothing known: pain comes first.
	probe := determineNextProbe(Context{}, buildQualificationChecklist(Context{}))
	assert.Equal(t, "pain", probe.Target)

	// Pain known, timeline missing.
	ctx := Context{"pain": StringValue("slow laptop")}
	probe = determineNextProbe(ctx, buildQualificationChecklist(ctx))
	assert.Equal(t, "timeline", probe.Target)

	// All checklist slots filled: probe deeper context.
	full := Context{
		"pain":             StringValue("slow laptop"),
		"timeline":         StringValue("this week"),
		"budget_signal":    StringValue("under 50k"),
		"decision_maker":   StringValue("self"),
		"product_interest": StringValue("ultrabook"),
	}
	probe = determineNextProbe(full, buildQualificationChecklist(full))
	assert.Equal(t, "duration", probe.Target)

	full["duration"] = StringValue("six months")
	full["current_state"] = StringValue("2017 laptop")
	probe = determineNextProbe(full, buildQualificationChecklist(full))
	assert.Equal(t, "commitment", probe.Target)
}

func TestFormatSource(t *testing.T) {
	assert.Equal(t, "Robert Cialdini, Influence, Ch.6", formatSource(Source{
		Author: "Robert Cialdini", Book: "Influence", Chapter: "6",
	}))
	assert.Equal(t, "Chris Voss, Never Split the Difference, Ch.2, p.37", formatSource(Source{
		Author: "Chris Voss", Book: "Never Split the Difference", Chapter: "2", Page: "37",
	}))
	assert.Equal(t, "Unknown", formatSource(Source{Author: "Someone"}))
}

func TestFallbackResponse(t *testing.T) {
	assert.Equal(t,
		"I understand you mentioned 'it keeps freezing'. Can you tell me more about what you're looking for?",
		fallbackResponse([]string{"too pricey", "it keeps freezing"}))
	assert.Equal(t,
		"I'd like to help you find the right product. What brings you in today?",
		fallbackResponse(nil))
}

func TestClampSentences(t *testing.T) {
	assert.Equal(t, "One. Two.", clampSentences("One. Two. Three. Four.", 2))
	assert.Equal(t, "Only one here.", clampSentences("Only one here.", 2))
	assert.Equal(t, "no terminator at all", clampSentences("no terminator at all", 2))
}

func TestDashboardBuilder_Build(t *testing.T) {
	builder := NewDashboardBuilder()
	ctx := Context{"pain": StringValue("slow laptop"), "budget_signal": StringValue("tight")}

	result := builder.Build(BuildInput{
		CustomerMessage: "That's too expensive",
		Response:        "I hear you on the price. What's your budget?",
		Detection:       Detection{Situation: "price_shock_in_store", Confidence: 0.9, Stage: "objection_handling"},
		Context:         ctx,
		Quotes:          []string{"too expensive"},
		Selected: Selection{
			Principle: Principle{
				ID: "anchoring", Name: "Anchoring", Intervention: "reframe the anchor",
				Mechanism: "first number dominates",
				Source:    Source{Author: "Daniel Kahneman", Book: "Thinking, Fast and Slow", Chapter: "11"},
			},
			Reason: "rule_match: test",
		},
		FallbackPlay:    Principle{ID: "tactical_empathy", Name: "Tactical Empathy"},
		SessionID:       "s-1",
		TurnCount:       3,
		ResistanceCount: 1,
		PrinciplesUsed:  []string{"spin_discovery", "anchoring"},
		LatencyMs:       840,
		StepLatencies:   StepLatencies{CaptureMs: 300, GenerateMs: 400},
	})

	assert.Equal(t, "I hear you on the price. What's your budget?", result.CustomerFacing.Response)

	dash := result.AgentDashboard
	assert.Equal(t, "price_shock_in_store", dash.Detection.DetectedSituation)
	assert.Equal(t, "price_conscious", dash.Detection.DetectedPersona)
	assert.Equal(t, map[string]string{"pain": "slow laptop", "budget_signal": "tight"}, dash.CapturedContext)
	assert.Equal(t, "Anchoring", dash.Recommendation.Principle)
	assert.Equal(t, "Daniel Kahneman, Thinking, Fast and Slow, Ch.11", dash.Recommendation.Source)
	assert.Equal(t, "I hear you on the price. What's your budget?", dash.Recommendation.Response)
	assert.Equal(t, "Tactical Empathy", dash.Fallback.Principle)
	assert.Contains(t, dash.Fallback.Response, "too expensive")
	assert.Equal(t, 3, dash.Session.TurnCount)
	assert.Equal(t, int64(840), dash.System.LatencyMs)
	assert.False(t, dash.CacheHit)
	assert.Empty(t, dash.CacheType)
}
