package aiproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantKey    string
		wantValue  any
		wantRecs   []string
		confidence float64
	}{
		{
			name:       "fenced json block",
			text:       "Here you go:\n```json\n{\"summary\": \"Wells are deepening\", \"recommendations\": [\"recharge\", \"recharge\"], \"confidence\": 0.9}\n```",
			wantKey:    "summary",
			wantValue:  "Wells are deepening",
			wantRecs:   []string{"recharge"},
			confidence: 0.9,
		},
		{
			name:       "bare object with prose",
			text:       `Sure. {"reply": "Use drip {irrigation}", "confidence": "85%"} Hope it helps.`,
			wantKey:    "reply",
			wantValue:  "Use drip {irrigation}",
			wantRecs:   []string{},
			confidence: 0.85,
		},
		{
			name:       "missing primary key falls back to answer",
			text:       `{"answer": "Rabi wheat dominates"}`,
			wantKey:    "summary",
			wantValue:  "Rabi wheat dominates",
			wantRecs:   []string{},
			confidence: DefaultConfidence,
		},
		{
			name:       "missing primary key keeps surrounding prose only",
			text:       "Groundwater is falling.\n```json\n{\"trend\": \"down\", \"confidence\": 0.6}\n```",
			wantKey:    "summary",
			wantValue:  "Groundwater is falling.",
			wantRecs:   []string{},
			confidence: 0.6,
		},
		{
			name:       "missing primary key without prose",
			text:       `{"trend": "down"}`,
			wantKey:    "summary",
			wantValue:  "",
			wantRecs:   []string{},
			confidence: DefaultConfidence,
		},
		{
			name:       "unparsable text",
			text:       "  Groundwater is falling in most districts.  ",
			wantKey:    "summary",
			wantValue:  "Groundwater is falling in most districts.",
			wantRecs:   []string{},
			confidence: DefaultConfidence,
		},
		{
			name:       "out of range confidence",
			text:       `{"summary": "ok", "confidence": 250}`,
			wantKey:    "summary",
			wantValue:  "ok",
			wantRecs:   []string{},
			confidence: DefaultConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOrDefault(tt.text, tt.wantKey)
			assert.Equal(t, tt.wantValue, got[tt.wantKey])
			assert.Equal(t, tt.wantRecs, got["recommendations"])
			assert.InDelta(t, tt.confidence, got["confidence"], 1e-9)
		})
	}
}

func TestParseOrDefault_ArrayIsNotAnObject(t *testing.T) {
	got := ParseOrDefault(`[1, 2, 3]`, "reply")
	assert.Equal(t, "[1, 2, 3]", got["reply"])
}
