package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/hrygo/salesense/ai/retry"
	"github.com/hrygo/salesense/ai/router"
)

// LLMCaller is the completion backend for the pipeline stages. Implemented
// by router.Router, stubbed in tests.
type LLMCaller interface {
	Call(ctx context.Context, prompt string, maxTokens int, override map[string]string, complexity router.Complexity) (text string, provider string, err error)
}

// CaptureResult is what one extraction pass yields.
type CaptureResult struct {
	Slots  Context  `json:"slots"`
	Quotes []string `json:"new_quotes"`
}

// CaptureEngine extracts structured slots and verbatim quotes from a
// customer message.
type CaptureEngine struct {
	llm       LLMCaller
	slotNames []string
	maxTokens int
	retryCfg  retry.Config
}

// NewCaptureEngine creates a capture engine over the schema's slots.
func NewCaptureEngine(llm LLMCaller, rules *RuleSet, maxTokens int, retryCfg retry.Config) *CaptureEngine {
	return &CaptureEngine{
		llm:       llm,
		slotNames: rules.SlotNames,
		maxTokens: maxTokens,
		retryCfg:  retryCfg,
	}
}

// Extract runs slot extraction. Failures degrade to an empty result so a
// broken extraction never fails the whole turn.
func (e *CaptureEngine) Extract(ctx context.Context, message string, existing Context, complexity router.Complexity) CaptureResult {
	prompt := e.buildPrompt(message, existing)

	text, err := retry.DoValue(ctx, e.retryCfg, func(ctx context.Context) (string, error) {
		text, provider, err := e.llm.Call(ctx, prompt, e.maxTokens, nil, complexity)
		if err != nil {
			return "", err
		}
		slog.Debug("capture extraction completed", "provider", provider, "complexity", complexity)
		return text, nil
	})
	if err != nil {
		slog.Error("capture extraction failed", "error", err)
		return CaptureResult{Slots: Context{}}
	}

	var result CaptureResult
	if err := json.Unmarshal(extractJSON(text), &result); err != nil {
		slog.Error("failed to parse capture response", "error", err)
		return CaptureResult{Slots: Context{}}
	}

	// Drop empty and falsy slots so they never pollute the session context.
	filtered := make(Context, len(result.Slots))
	for name, value := range result.Slots {
		if value.IsTruthy() {
			filtered[name] = value
		}
	}
	result.Slots = filtered
	return result
}

func (e *CaptureEngine) buildPrompt(message string, existing Context) string {
	var b strings.Builder
	b.WriteString("Extract slots from message. Return JSON only.\n")
	b.WriteString("Slots: ")
	b.WriteString(strings.Join(e.slotNames, ", "))
	b.WriteString("\nContext: ")
	b.WriteString(formatContext(existing))
	b.WriteString("\nMessage: \"")
	b.WriteString(message)
	b.WriteString("\"\nFormat: {\"slots\": {\"slot\": \"value\"}, \"new_quotes\": [\"quote\"]}\n")
	b.WriteString("Extract verbatim quotes. Return ONLY valid JSON.")
	return b.String()
}

// formatContext renders truthy slots as "k:v, k:v" in sorted key order,
// or "none" when the context is empty.
func formatContext(ctx Context) string {
	flat := ctx.Strings()
	if len(flat) == 0 {
		return "none"
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+":"+flat[k])
	}
	return strings.Join(pairs, ", ")
}

// extractJSON trims markdown fences and any prose around the outermost
// JSON object. Some models wrap JSON despite instructions.
func extractJSON(text string) []byte {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		return []byte(text[start : end+1])
	}
	return []byte(text)
}
