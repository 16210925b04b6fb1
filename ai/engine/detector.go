package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/hrygo/salesense/ai/retry"
	"github.com/hrygo/salesense/ai/router"
)

// Detection is the classified customer situation for one turn.
type Detection struct {
	Situation  string  `json:"situation"`
	Confidence float64 `json:"confidence"`
	Stage      string  `json:"stage"`
}

// DetectorDefaults is the fallback detection used when classification
// fails or returns an unknown situation.
type DetectorDefaults struct {
	Situation  string
	Confidence float64
	Stage      string
}

// SituationDetector classifies a customer message into one of the
// configured situations.
type SituationDetector struct {
	llm           LLMCaller
	situations    map[string]Situation
	situationKeys []string
	defaults      DetectorDefaults
	maxTokens     int
	retryCfg      retry.Config
}

// NewSituationDetector creates a detector over the configured situations.
func NewSituationDetector(llm LLMCaller, rules *RuleSet, defaults DetectorDefaults, maxTokens int, retryCfg retry.Config) *SituationDetector {
	return &SituationDetector{
		llm:           llm,
		situations:    rules.Situations,
		situationKeys: rules.SituationKeys,
		defaults:      defaults,
		maxTokens:     maxTokens,
		retryCfg:      retryCfg,
	}
}

// Detect classifies the message. An unknown situation key is remapped to
// the default situation with the default confidence, and any failure
// degrades to the full default detection.
func (d *SituationDetector) Detect(ctx context.Context, message string, conversationCtx Context, complexity router.Complexity) Detection {
	prompt := d.buildPrompt(message, conversationCtx)

	text, err := retry.DoValue(ctx, d.retryCfg, func(ctx context.Context) (string, error) {
		text, provider, err := d.llm.Call(ctx, prompt, d.maxTokens, nil, complexity)
		if err != nil {
			return "", err
		}
		slog.Debug("situation detection completed", "provider", provider, "complexity", complexity)
		return text, nil
	})
	if err != nil {
		slog.Error("situation detection failed", "error", err)
		return d.defaultDetection()
	}

	var result Detection
	if err := json.Unmarshal(extractJSON(text), &result); err != nil {
		slog.Error("failed to parse situation detection response", "error", err)
		return d.defaultDetection()
	}

	if _, ok := d.situations[result.Situation]; !ok {
		slog.Warn("unknown situation detected, using default", "situation", result.Situation)
		result.Situation = d.defaults.Situation
		result.Confidence = d.defaults.Confidence
	}
	if result.Stage == "" {
		result.Stage = d.defaults.Stage
	}
	return result
}

func (d *SituationDetector) defaultDetection() Detection {
	return Detection{
		Situation:  d.defaults.Situation,
		Confidence: d.defaults.Confidence,
		Stage:      d.defaults.Stage,
	}
}

func (d *SituationDetector) buildPrompt(message string, conversationCtx Context) string {
	var b strings.Builder
	b.WriteString("Detect situation from message. Return JSON only.\n")
	b.WriteString("Situations: ")
	b.WriteString(strings.Join(d.situationKeys, ", "))
	b.WriteString("\nContext: ")
	b.WriteString(formatContext(conversationCtx))
	b.WriteString("\nMessage: \"")
	b.WriteString(message)
	b.WriteString("\"\nFormat: {\"situation\": \"key\", \"confidence\": 0.0-1.0, \"stage\": \"discovery|qualification|presentation|objection_handling|closing\"}\n")
	b.WriteString("Return ONLY valid JSON.")
	return b.String()
}
