package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/salesense/ai/router"
)

func testPrinciple() Principle {
	return Principle{
		ID:           "tactical_empathy",
		Name:         "Tactical Empathy",
		Intervention: "Label the customer's emotion before addressing it.",
	}
}

func TestResponseGenerator_Generate(t *testing.T) {
	llm := &fakeLLM{text: "  That slow boot sounds really frustrating. What do you mostly use it for?  "}
	g := NewResponseGenerator(llm, 150, 2, 3, fastRetry())

	gen := g.Generate(context.Background(), testPrinciple(), []string{"it takes forever to boot"},
		"quality_doubt", Context{}, nil, router.ComplexityMedium)

	assert.Equal(t, "That slow boot sounds really frustrating. What do you mostly use it for?", gen.Response)
	assert.Equal(t, "Tactical Empathy", gen.PrincipleUsed)
}

func TestResponseGenerator_ClampsLongReplies(t *testing.T) {
	llm := &fakeLLM{text: "One. Two. Three. Four."}
	g := NewResponseGenerator(llm, 150, 2, 3, fastRetry())

	gen := g.Generate(context.Background(), testPrinciple(), nil, "just_browsing", Context{}, nil, router.ComplexityMedium)

	assert.Equal(t, "One. Two.", gen.Response)
}

func TestResponseGenerator_FallbackEchoesLastQuote(t *testing.T) {
	llm := &fakeLLM{err: errors.New("provider down")}
	g := NewResponseGenerator(llm, 150, 2, 3, fastRetry())

	gen := g.Generate(context.Background(), testPrinciple(), []string{"first quote", "too pricey for me"},
		"price_shock_in_store", Context{}, nil, router.ComplexityMedium)

	assert.Contains(t, gen.Response, "'too pricey for me'")
	assert.Equal(t, "Tactical Empathy", gen.PrincipleUsed)
}

func TestResponseGenerator_FallbackWithoutQuotes(t *testing.T) {
	llm := &fakeLLM{err: errors.New("provider down")}
	g := NewResponseGenerator(llm, 150, 2, 3, fastRetry())

	gen := g.Generate(context.Background(), testPrinciple(), nil, "just_browsing", Context{}, nil, router.ComplexityMedium)

	assert.Equal(t, "I'd like to help you find the right product. What brings you in today?", gen.Response)
}

func TestResponseGenerator_PromptUsesRecentQuotesAndProduct(t *testing.T) {
	llm := &fakeLLM{text: "Sure."}
	g := NewResponseGenerator(llm, 150, 2, 2, fastRetry())

	quotes := []string{"quote one", "quote two", "quote three"}
	ctx := Context{"pain": StringValue("battery dies fast")}
	product := map[string]string{"name": "UltraBook 14", "price": "999"}

	g.Generate(context.Background(), testPrinciple(), quotes, "quality_doubt", ctx, product, router.ComplexityMedium)

	assert.Contains(t, llm.lastPrompt, "quote two | quote three")
	assert.NotContains(t, llm.lastPrompt, "quote one")
	assert.Contains(t, llm.lastPrompt, "Pain: battery dies fast")
	assert.Contains(t, llm.lastPrompt, "name:UltraBook 14, price:999")
	assert.Contains(t, llm.lastPrompt, "MAX 2 sentences")
}
