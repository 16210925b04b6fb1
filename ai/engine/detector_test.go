package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/salesense/ai/router"
)

func testDetectorDefaults() DetectorDefaults {
	return DetectorDefaults{Situation: "just_browsing", Confidence: 0.3, Stage: "discovery"}
}

func TestSituationDetector_Detect(t *testing.T) {
	llm := &fakeLLM{text: `{"situation": "price_shock_in_store", "confidence": 0.9, "stage": "objection_handling"}`}
	d := NewSituationDetector(llm, testRuleSet(t), testDetectorDefaults(), 200, fastRetry())

	detection := d.Detect(context.Background(), "that is way too expensive", Context{}, router.ComplexityMedium)

	assert.Equal(t, "price_shock_in_store", detection.Situation)
	assert.InDelta(t, 0.9, detection.Confidence, 1e-9)
	assert.Equal(t, "objection_handling", detection.Stage)
}

func TestSituationDetector_UnknownSituationRemapped(t *testing.T) {
	llm := &fakeLLM{text: `{"situation": "alien_invasion", "confidence": 0.95, "stage": "closing"}`}
	d := NewSituationDetector(llm, testRuleSet(t), testDetectorDefaults(), 200, fastRetry())

	detection := d.Detect(context.Background(), "hello", Context{}, router.ComplexityMedium)

	assert.Equal(t, "just_browsing", detection.Situation)
	assert.InDelta(t, 0.3, detection.Confidence, 1e-9)
	// The stage survives the remap, only the situation was unusable.
	assert.Equal(t, "closing", detection.Stage)
}

func TestSituationDetector_DegradesOnFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("provider down")}
	d := NewSituationDetector(llm, testRuleSet(t), testDetectorDefaults(), 200, fastRetry())

	detection := d.Detect(context.Background(), "hello", Context{}, router.ComplexityMedium)

	assert.Equal(t, "just_browsing", detection.Situation)
	assert.InDelta(t, 0.3, detection.Confidence, 1e-9)
	assert.Equal(t, "discovery", detection.Stage)
}

func TestSituationDetector_EmptyStageDefaulted(t *testing.T) {
	llm := &fakeLLM{text: `{"situation": "budget_boundary", "confidence": 0.8}`}
	d := NewSituationDetector(llm, testRuleSet(t), testDetectorDefaults(), 200, fastRetry())

	detection := d.Detect(context.Background(), "my budget is 500", Context{}, router.ComplexityMedium)

	assert.Equal(t, "budget_boundary", detection.Situation)
	assert.Equal(t, "discovery", detection.Stage)
}

func TestSituationDetector_PromptListsSituations(t *testing.T) {
	llm := &fakeLLM{text: `{"situation": "just_browsing", "confidence": 0.5, "stage": "discovery"}`}
	rules := testRuleSet(t)
	d := NewSituationDetector(llm, rules, testDetectorDefaults(), 200, fastRetry())

	d.Detect(context.Background(), "just looking around", Context{}, router.ComplexitySimple)

	for _, key := range rules.SituationKeys {
		assert.Contains(t, llm.lastPrompt, key)
	}
}
