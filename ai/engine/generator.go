package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/hrygo/salesense/ai/retry"
	"github.com/hrygo/salesense/ai/router"
)

// Generation is the produced customer-facing reply.
type Generation struct {
	Response      string
	PrincipleUsed string
}

// ResponseGenerator turns a selected principle plus captured quotes into a
// short customer-facing reply.
type ResponseGenerator struct {
	llm            LLMCaller
	maxTokens      int
	maxSentences   int
	quotesInPrompt int
	retryCfg       retry.Config
}

// NewResponseGenerator creates a generator.
func NewResponseGenerator(llm LLMCaller, maxTokens, maxSentences, quotesInPrompt int, retryCfg retry.Config) *ResponseGenerator {
	return &ResponseGenerator{
		llm:            llm,
		maxTokens:      maxTokens,
		maxSentences:   maxSentences,
		quotesInPrompt: quotesInPrompt,
		retryCfg:       retryCfg,
	}
}

// Generate produces the reply. On any failure it degrades to a templated
// response built from the last captured quote.
func (g *ResponseGenerator) Generate(
	ctx context.Context,
	principle Principle,
	quotes []string,
	situation string,
	conversationCtx Context,
	productContext map[string]string,
	complexity router.Complexity,
) Generation {
	prompt := g.buildPrompt(principle, quotes, situation, conversationCtx, productContext)

	text, err := retry.DoValue(ctx, g.retryCfg, func(ctx context.Context) (string, error) {
		text, provider, err := g.llm.Call(ctx, prompt, g.maxTokens, nil, complexity)
		if err != nil {
			return "", err
		}
		slog.Debug("response generation completed", "provider", provider, "complexity", complexity)
		return text, nil
	})
	if err != nil {
		slog.Error("response generation failed", "error", err)
		return Generation{
			Response:      fallbackResponse(quotes),
			PrincipleUsed: principle.Name,
		}
	}

	return Generation{
		Response:      clampSentences(strings.TrimSpace(text), g.maxSentences),
		PrincipleUsed: principle.Name,
	}
}

func (g *ResponseGenerator) buildPrompt(
	principle Principle,
	quotes []string,
	situation string,
	conversationCtx Context,
	productContext map[string]string,
) string {
	quotesStr := "none"
	if len(quotes) > 0 {
		start := len(quotes) - g.quotesInPrompt
		if start < 0 {
			start = 0
		}
		quotesStr = strings.Join(quotes[start:], " | ")
	}

	pain := conversationCtx["pain"].String()
	if pain == "" {
		pain = "none"
	}

	productInfo := "none"
	if len(productContext) > 0 {
		productInfo = formatStringMap(productContext)
	}

	return fmt.Sprintf(`Generate natural sales response. MAX %d sentences.
Principle: %s - %s
Quotes: %s
Situation: %s | Pain: %s | Product: %s
Rules: Use exact words back, acknowledge concern first, sound casual, no bullets, no jargon.
Response:`, g.maxSentences, principle.Name, principle.Intervention, quotesStr, situation, pain, productInfo)
}

// fallbackResponse is the templated reply used when generation fails. It
// echoes the most recent captured quote when one exists.
func fallbackResponse(quotes []string) string {
	if len(quotes) > 0 {
		return fmt.Sprintf("I understand you mentioned '%s'. Can you tell me more about what you're looking for?", quotes[len(quotes)-1])
	}
	return "I'd like to help you find the right product. What brings you in today?"
}

var sentencePattern = regexp.MustCompile(`[^.!?]*[.!?]+`)

// clampSentences truncates text to at most max sentences. Text without any
// sentence terminator passes through untouched.
func clampSentences(text string, max int) string {
	matches := sentencePattern.FindAllString(text, -1)

	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		if trimmed := strings.TrimSpace(m); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}

	if len(sentences) == 0 {
		return text
	}
	if len(sentences) > max {
		slog.Warn("response exceeded sentence limit, truncating", "sentences", len(sentences), "max", max)
		return strings.Join(sentences[:max], " ")
	}
	return text
}

func formatStringMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+":"+m[k])
	}
	return strings.Join(pairs, ", ")
}
