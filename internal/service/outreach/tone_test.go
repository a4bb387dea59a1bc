package outreach

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

func TestSelectTone_NoHistoryIsFormal(t *testing.T) {
	c := janeContext()
	assert.Equal(t, model.ToneFormal, SelectTone(c))
	assert.Equal(t, model.StageNew, AnalyzeRelationship(c.Interactions).Stage)
}

func TestSelectTone_Rules(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	tests := []struct {
		name     string
		msgs     []model.Message
		acts     []model.Activity
		priority string
		want     model.Tone
	}{
		{
			name: "effective recent message",
			msgs: []model.Message{{CreatedAt: at(1), EffectivenessScore: ptr(0.9)}},
			acts: []model.Activity{{Type: model.ActivityMeetingScheduled, CreatedAt: at(2)}},
			want: model.ToneFriendly,
		},
		{
			name: "effective message outside the three most recent",
			msgs: []model.Message{
				{CreatedAt: at(1), EffectivenessScore: ptr(0.95)},
				{CreatedAt: at(2)}, {CreatedAt: at(3)}, {CreatedAt: at(4)},
			},
			want: model.ToneProfessional,
		},
		{
			name: "score at threshold is not friendly",
			msgs: []model.Message{{CreatedAt: at(1), EffectivenessScore: ptr(0.7)}},
			want: model.ToneProfessional,
		},
		{
			name: "meeting scheduled",
			acts: []model.Activity{{Type: model.ActivityEmailOpen, CreatedAt: at(1)}, {Type: model.ActivityMeetingScheduled, CreatedAt: at(2)}},
			want: model.ToneCollaborative,
		},
		{
			name: "meeting outside five most recent activities",
			acts: []model.Activity{
				{Type: model.ActivityMeetingScheduled, CreatedAt: at(0)},
				{Type: model.ActivityEmailOpen, CreatedAt: at(1)}, {Type: model.ActivityEmailOpen, CreatedAt: at(2)},
				{Type: model.ActivityEmailOpen, CreatedAt: at(3)}, {Type: model.ActivityEmailOpen, CreatedAt: at(4)},
				{Type: model.ActivityEmailOpen, CreatedAt: at(5)},
			},
			priority: model.PriorityHigh,
			want:     model.ToneUrgent,
		},
		{
			name:     "high priority",
			msgs:     []model.Message{{CreatedAt: at(1)}},
			priority: model.PriorityHigh,
			want:     model.ToneUrgent,
		},
		{
			name: "default",
			msgs: []model.Message{{CreatedAt: at(1)}},
			want: model.ToneProfessional,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := janeContext()
			c.Ticket.Priority = tt.priority
			c.Interactions = model.Interactions{Messages: tt.msgs, Activities: tt.acts}
			assert.Equal(t, tt.want, SelectTone(c))
		})
	}
}

func TestEngagementScore(t *testing.T) {
	acts := []model.Activity{
		{Type: model.ActivityMeetingScheduled},
		{Type: model.ActivityEmailReply},
		{Type: model.ActivityEmailOpen},
	}
	assert.InDelta(t, 0.45, EngagementScore(acts), 1e-9)
	assert.Zero(t, EngagementScore(nil))
	assert.Zero(t, EngagementScore([]model.Activity{{Type: "note"}}))

	many := make([]model.Activity, 5)
	for i := range many {
		many[i] = model.Activity{Type: model.ActivityMeetingScheduled}
	}
	assert.Equal(t, 1.0, EngagementScore(many))
}

func TestContextualFactors(t *testing.T) {
	at := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	c := janeContext()
	c.Interactions = model.Interactions{Activities: []model.Activity{
		{Type: model.ActivityLinkClick, Description: "Clicked pricing page", CreatedAt: at},
		{Type: "note", Description: "internal note", CreatedAt: at.Add(time.Hour)},
		{Type: model.ActivityCall, CreatedAt: at.Add(2 * time.Hour)},
	}}
	rel := AnalyzeRelationship(c.Interactions)
	f := ContextualFactorsFor(c, rel)
	assert.InDelta(t, 0.1, f.EngagementScore, 1e-9)
	assert.Equal(t, 3, f.InteractionCount)
	assert.Equal(t, []string{"call", "Clicked pricing page"}, f.RelevantActivities)
	assert.Equal(t, rel.Metrics.LastInteractionDate, f.LastInteractionDate)
}
