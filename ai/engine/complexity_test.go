package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/salesense/ai/router"
)

func TestEstimateComplexity(t *testing.T) {
	th := DefaultComplexityThresholds()

	richContext := Context{}
	for _, slot := range []string{"pain", "budget_signal", "timeline", "urgency", "product_interest", "product_model", "duration", "current_state", "emotional_state"} {
		richContext[slot] = StringValue("x")
	}

	mediumContext := Context{
		"pain":     StringValue("slow laptop"),
		"timeline": StringValue("this week"),
		"urgency":  StringValue("high"),
	}

	tests := []struct {
		name    string
		message string
		ctx     Context
		task    taskType
		want    router.Complexity
	}{
		{
			name:    "short message over thin context is simple",
			message: "Does it have warranty?",
			ctx:     Context{},
			task:    taskDetect,
			want:    router.ComplexitySimple,
		},
		{
			name:    "comparison vocabulary is complex",
			message: "How does this compare to the older model?",
			ctx:     Context{},
			task:    taskDetect,
			want:    router.ComplexityComplex,
		},
		{
			name:    "multiple questions are complex",
			message: "Is it fast? Does it last all day?",
			ctx:     Context{},
			task:    taskDetect,
			want:    router.ComplexityComplex,
		},
		{
			name:    "very long message is complex",
			message: strings.Repeat("word ", 61),
			ctx:     Context{},
			task:    taskDetect,
			want:    router.ComplexityComplex,
		},
		{
			name:    "rich context is complex",
			message: "I will think about the options available here today okay thanks a lot bye",
			ctx:     richContext,
			task:    taskDetect,
			want:    router.ComplexityComplex,
		},
		{
			name:    "mid-length detection defaults to medium",
			message: "I was here yesterday and wanted another look at that fridge we discussed earlier today",
			ctx:     mediumContext,
			task:    taskDetect,
			want:    router.ComplexityMedium,
		},
		{
			name:    "capture over thin context stays simple",
			message: "I was here yesterday and wanted another look at that fridge we discussed earlier today",
			ctx:     Context{},
			task:    taskCapture,
			want:    router.ComplexitySimple,
		},
		{
			name:    "generation baseline is medium",
			message: "I was here yesterday and wanted another look at that fridge we discussed earlier today",
			ctx:     mediumContext,
			task:    taskGenerate,
			want:    router.ComplexityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimateComplexity(tt.message, tt.ctx, tt.task, th))
		})
	}
}
