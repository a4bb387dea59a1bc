package mcp

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/rogerHuntGauntlet/outreach/internal/agents"
	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

func TestCompactOutcome(t *testing.T) {
	o := agents.OutreachOutcome{
		MessageID: uuid.New(),
		TicketID:  uuid.New(),
		GenerationResult: model.GenerationResult{
			Message: "Hello",
			Metadata: model.GenerationMetadata{
				RunID:        uuid.New(),
				MessageType:  "initial_outreach",
				Tone:         model.ToneProfessional,
				Relationship: model.RelationshipStage{Stage: model.StageNew},
				ExamplesUsed: 1,
				Analysis: model.Analysis{
					OverallScore: 0.91,
					Scores:       model.Scores{Personalization: 0.8},
					Improvements: []string{"shorter subject"},
				},
			},
		},
	}

	m := compactOutcome(o)
	assert.Equal(t, o.MessageID, m["message_id"])
	assert.Equal(t, model.StageNew, m["stage"])
	assert.Equal(t, []string{"shorter subject"}, m["improvements"])
	assert.NotContains(t, m, "fallback")
	assert.NotContains(t, m, "review_note")
	assert.NotContains(t, m, "task_tracking")
}

func TestGenerateReviewNote(t *testing.T) {
	good := model.Analysis{OverallScore: 0.9, Scores: model.Scores{Personalization: 0.9}}

	tests := []struct {
		name string
		meta model.GenerationMetadata
		want string
	}{
		{"good draft", model.GenerationMetadata{Analysis: good, ExamplesUsed: 3}, ""},
		{"fallback wins", model.GenerationMetadata{Analysis: model.Analysis{Fallback: true, OverallScore: 0.1}}, "default values"},
		{"low overall", model.GenerationMetadata{Analysis: model.Analysis{OverallScore: 0.4}, ExamplesUsed: 1}, "Low overall score"},
		{"weak personalization", model.GenerationMetadata{Analysis: model.Analysis{OverallScore: 0.7, Scores: model.Scores{Personalization: 0.3}}, ExamplesUsed: 1}, "Weak personalization"},
		{"no examples", model.GenerationMetadata{Analysis: good}, "No proven examples"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generateReviewNote(tt.meta)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestCompactBatch_TruncatesMessages(t *testing.T) {
	id := uuid.New()
	r := model.BatchGenerationResult{
		Successful: []model.BatchItem{{TicketID: uuid.New(), MessageID: &id, Message: strings.Repeat("word ", 100)}},
	}
	m := compactBatch(r)
	items := m["successful"].([]map[string]any)
	assert.Len(t, items, 1)
	assert.Equal(t, id, items[0]["message_id"])
	msg := items[0]["message"].(string)
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.LessOrEqual(t, len([]rune(msg)), maxCompactMessage+3)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "hello...", truncate("hello world", 7))
	assert.Equal(t, "abcdefgh...", truncate("abcdefghijkl", 8))
	assert.Equal(t, "héllo wör...", truncate("héllo wörld again", 9))
}

func TestRound3(t *testing.T) {
	assert.InDelta(t, 0.123, round3(0.12345), 1e-12)
	assert.InDelta(t, 1.0, round3(0.99951), 1e-12)
}
