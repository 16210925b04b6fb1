package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResistanceSignals(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		situation string
		ctx       Context
		want      bool
	}{
		{
			name:      "resistance keyword",
			message:   "That's too expensive for me",
			situation: "just_browsing",
			want:      true,
		},
		{
			name:      "captured objection",
			message:   "Hmm okay",
			situation: "just_browsing",
			ctx:       Context{"objection": StringValue("worried about durability")},
			want:      true,
		},
		{
			name:      "negative emotional state",
			message:   "Tell me about this one",
			situation: "just_browsing",
			ctx:       Context{"emotional_state": StringValue("skeptical")},
			want:      true,
		},
		{
			name:      "resistance situation",
			message:   "Okay",
			situation: "walking_away_pause",
			want:      true,
		},
		{
			name:      "neutral turn",
			message:   "Does it come in silver?",
			situation: "feature_overload_paralysis",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.ctx
			if ctx == nil {
				ctx = Context{}
			}
			assert.Equal(t, tt.want, hasResistanceSignals(tt.message, tt.situation, ctx))
		})
	}
}

func TestPositiveSignals(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		situation string
		ctx       Context
		want      bool
	}{
		{
			name:      "buying keyword",
			message:   "Sounds good, I'll take it",
			situation: "just_browsing",
			want:      true,
		},
		{
			name:      "commitment slot",
			message:   "Hmm",
			situation: "just_browsing",
			ctx:       Context{"commitment_signal": StringValue("asked about payment")},
			want:      true,
		},
		{
			name:      "positive emotion",
			message:   "Show me",
			situation: "just_browsing",
			ctx:       Context{"emotional_state": StringValue("excited")},
			want:      true,
		},
		{
			name:      "positive situation",
			message:   "Is this in stock?",
			situation: "stock_availability_check",
			want:      true,
		},
		{
			name:      "neutral turn",
			message:   "What colors do you have?",
			situation: "just_browsing",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.ctx
			if ctx == nil {
				ctx = Context{}
			}
			assert.Equal(t, tt.want, hasPositiveSignals(tt.message, tt.situation, ctx))
		})
	}
}
