package outreach

import (
	"sort"
	"time"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

const (
	establishedMinInteractions = 5
	establishedMinResponseRate = 0.3
	neutralSentiment           = 0.5
)

// AnalyzeRelationship classifies the relationship from interaction history.
// Interactions are messages plus activities; responses are inbound messages
// plus email replies. With no history the stage is new; with fewer than five
// interactions or a response rate under 0.3 it is developing; otherwise it
// is established.
func AnalyzeRelationship(in model.Interactions) model.RelationshipStage {
	total := len(in.Messages) + len(in.Activities)
	metrics := model.RelationshipMetrics{
		TotalInteractions: total,
		AverageSentiment:  averageSentiment(in.Messages),
	}
	if total == 0 {
		return model.RelationshipStage{Stage: model.StageNew, Metrics: metrics}
	}

	responses := 0
	var last time.Time
	for _, m := range in.Messages {
		if m.Direction == model.DirectionInbound {
			responses++
		}
		if m.CreatedAt.After(last) {
			last = m.CreatedAt
		}
	}
	for _, a := range in.Activities {
		if a.Type == model.ActivityEmailReply {
			responses++
		}
		if a.CreatedAt.After(last) {
			last = a.CreatedAt
		}
	}
	metrics.ResponseRate = float64(responses) / float64(total)
	if !last.IsZero() {
		metrics.LastInteractionDate = &last
	}

	stage := model.StageEstablished
	if total < establishedMinInteractions || metrics.ResponseRate < establishedMinResponseRate {
		stage = model.StageDeveloping
	}
	return model.RelationshipStage{Stage: stage, Metrics: metrics}
}

// averageSentiment is the mean of the scored messages, neutral when none
// carry a score.
func averageSentiment(msgs []model.Message) float64 {
	var sum float64
	n := 0
	for _, m := range msgs {
		if m.SentimentScore != nil {
			sum += clamp01(*m.SentimentScore)
			n++
		}
	}
	if n == 0 {
		return neutralSentiment
	}
	return sum / float64(n)
}

func recentMessages(msgs []model.Message, n int) []model.Message {
	sorted := make([]model.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func recentActivities(acts []model.Activity, n int) []model.Activity {
	sorted := make([]model.Activity, len(acts))
	copy(sorted, acts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
