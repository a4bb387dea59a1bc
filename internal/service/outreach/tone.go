package outreach

import (
	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

const (
	toneMessageWindow       = 3
	toneActivityWindow      = 5
	friendlyEffectiveness   = 0.7
	engagementNormalization = 20.0
)

var engagementWeights = map[string]float64{
	model.ActivityMeetingScheduled: 5,
	model.ActivityEmailReply:       3,
	model.ActivityLinkClick:        2,
	model.ActivityEmailOpen:        1,
}

// keyActivityTypes are the activities worth showing the model.
var keyActivityTypes = map[string]bool{
	model.ActivityMeeting:   true,
	model.ActivityCall:      true,
	model.ActivityEmailOpen: true,
	model.ActivityLinkClick: true,
}

// SelectTone picks the message tone. The first matching rule wins: no
// history is formal; an effective recent message is friendly; a recently
// scheduled meeting is collaborative; a high priority ticket is urgent;
// anything else is professional.
func SelectTone(c model.OutreachContext) model.Tone {
	if c.Interactions.Empty() {
		return model.ToneFormal
	}
	for _, m := range recentMessages(c.Interactions.Messages, toneMessageWindow) {
		if m.EffectivenessScore != nil && *m.EffectivenessScore > friendlyEffectiveness {
			return model.ToneFriendly
		}
	}
	for _, a := range recentActivities(c.Interactions.Activities, toneActivityWindow) {
		if a.Type == model.ActivityMeetingScheduled {
			return model.ToneCollaborative
		}
	}
	if c.Ticket.Priority == model.PriorityHigh {
		return model.ToneUrgent
	}
	return model.ToneProfessional
}

// EngagementScore weighs engagement activities and normalizes the sum into
// [0,1].
func EngagementScore(acts []model.Activity) float64 {
	var sum float64
	for _, a := range acts {
		sum += engagementWeights[a.Type]
	}
	score := sum / engagementNormalization
	if score > 1 {
		return 1
	}
	return score
}

// ContextualFactorsFor summarizes the engagement signals of a context.
func ContextualFactorsFor(c model.OutreachContext, rel model.RelationshipStage) model.ContextualFactors {
	relevant := []string{}
	for _, a := range recentActivities(c.Interactions.Activities, len(c.Interactions.Activities)) {
		if _, weighted := engagementWeights[a.Type]; weighted || keyActivityTypes[a.Type] {
			desc := a.Description
			if desc == "" {
				desc = a.Type
			}
			relevant = append(relevant, desc)
		}
	}
	return model.ContextualFactors{
		EngagementScore:     EngagementScore(c.Interactions.Activities),
		InteractionCount:    rel.Metrics.TotalInteractions,
		LastInteractionDate: rel.Metrics.LastInteractionDate,
		RelevantActivities:  relevant,
	}
}
