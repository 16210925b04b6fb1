package engine

import (
	"strings"

	"github.com/hrygo/salesense/ai/router"
)

// ComplexityThresholds tune the heuristic routing between fast and
// high-quality models.
type ComplexityThresholds struct {
	WordCountSimple        int
	WordCountComplex       int
	ContextRichnessSimple  int
	ContextRichnessComplex int
}

// DefaultComplexityThresholds returns the standard tuning.
func DefaultComplexityThresholds() ComplexityThresholds {
	return ComplexityThresholds{
		WordCountSimple:        15,
		WordCountComplex:       60,
		ContextRichnessSimple:  2,
		ContextRichnessComplex: 8,
	}
}

type taskType string

const (
	taskCapture  taskType = "capture"
	taskDetect   taskType = "detect"
	taskGenerate taskType = "generate"
)

var complexVocabulary = []string{
	"compare", "difference", "between", "versus", "alternative",
	"detailed", "explain", "how does", "why does", "what makes",
	"specific", "particular", "requirements", "specifications",
}

// estimateComplexity classifies a request without any LLM call. Short
// messages over thin context are simple, long or multi-question messages
// over rich context are complex, everything else falls back to a
// per-task baseline.
func estimateComplexity(message string, ctx Context, task taskType, t ComplexityThresholds) router.Complexity {
	wordCount := len(strings.Fields(message))
	richness := ctx.Richness()

	multipleQuestions := strings.Count(message, "?") > 1

	lower := strings.ToLower(message)
	complexVocab := false
	for _, indicator := range complexVocabulary {
		if strings.Contains(lower, indicator) {
			complexVocab = true
			break
		}
	}

	var baseline router.Complexity
	switch task {
	case taskGenerate:
		baseline = router.ComplexityMedium
	case taskCapture:
		if richness < t.ContextRichnessSimple {
			baseline = router.ComplexitySimple
		} else {
			baseline = router.ComplexityMedium
		}
	default:
		baseline = router.ComplexityMedium
	}

	switch {
	case wordCount < t.WordCountSimple && richness < t.ContextRichnessSimple && !multipleQuestions:
		return router.ComplexitySimple
	case wordCount > t.WordCountComplex || multipleQuestions || complexVocab || richness > t.ContextRichnessComplex:
		return router.ComplexityComplex
	default:
		return baseline
	}
}
