package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessaro/memopipe/internal/models"
)

func TestParseClaudeClassificationValid(t *testing.T) {
	raw := `{"classification": "CONFIDENTIAL", "confidence": 0.92, "reasoning": "medical detail", "tags": ["health"], "security_level": 3}`
	c, err := parseClaudeClassification(raw)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryConfidential, c.Category)
	assert.InDelta(t, 0.92, c.Confidence, 1e-9)
	assert.Equal(t, []string{"health"}, c.Tags)
	assert.Equal(t, 3, c.SecurityLevel)
}

func TestParseClaudeClassificationRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "sure, here is the classification"},
		{"unknown field", `{"classification": "general", "confidence": 0.8, "reasoning": "", "tags": [], "security_level": 1, "extra": true}`},
		{"unknown category", `{"classification": "mystery", "confidence": 0.8, "reasoning": "", "tags": [], "security_level": 1}`},
		{"action_items is not a classifier output", `{"classification": "action_items", "confidence": 0.8, "reasoning": "", "tags": [], "security_level": 1}`},
		{"confidence out of range", `{"classification": "general", "confidence": 1.4, "reasoning": "", "tags": [], "security_level": 1}`},
		{"security level out of range", `{"classification": "general", "confidence": 0.8, "reasoning": "", "tags": [], "security_level": 7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseClaudeClassification(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestContextHint(t *testing.T) {
	assert.Equal(t, "", contextHint(nil))

	hint := contextHint(&models.ConversationContext{
		MeetingType:  "standup",
		Participants: []string{"ana", "ben"},
		Project:      "migration",
	})
	assert.Contains(t, hint, "meeting_type=standup")
	assert.Contains(t, hint, "participants=ana,ben")
	assert.Contains(t, hint, "project=migration")
}
