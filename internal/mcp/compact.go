package mcp

import (
	"math"
	"strings"

	"github.com/rogerHuntGauntlet/outreach/internal/agents"
	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

const maxCompactMessage = 200

// compactOutcome returns a minimal representation of a generation for MCP
// responses. It keeps the draft and the few scores an assistant acts on and
// drops the task timeline, NLP analysis and contextual factors.
func compactOutcome(o agents.OutreachOutcome) map[string]any {
	meta := o.Metadata
	m := map[string]any{
		"message_id":    o.MessageID,
		"ticket_id":     o.TicketID,
		"run_id":        meta.RunID,
		"message":       o.Message,
		"message_type":  meta.MessageType,
		"tone":          meta.Tone,
		"stage":         meta.Relationship.Stage,
		"overall_score": round3(meta.Analysis.OverallScore),
		"examples_used": meta.ExamplesUsed,
	}
	if len(meta.Analysis.Improvements) > 0 {
		m["improvements"] = meta.Analysis.Improvements
	}
	if meta.Analysis.Fallback {
		m["fallback"] = true
	}
	if note := generateReviewNote(meta); note != "" {
		m["review_note"] = note
	}
	return m
}

// generateReviewNote produces a short hint about whether a draft needs a
// human pass. Rules are evaluated in order; first match wins.
func generateReviewNote(meta model.GenerationMetadata) string {
	a := meta.Analysis
	switch {
	case a.Fallback:
		return "Scored with default values because analysis failed; review before sending."
	case a.OverallScore < 0.5:
		return "Low overall score; consider regenerating with a prompt."
	case a.Scores.Personalization < 0.5:
		return "Weak personalization; research the prospect before sending."
	case meta.ExamplesUsed == 0:
		return "No proven examples were available for this draft."
	}
	return ""
}

// compactBatch shortens every draft of a batch run.
func compactBatch(r model.BatchGenerationResult) map[string]any {
	items := make([]map[string]any, 0, len(r.Successful))
	for _, it := range r.Successful {
		item := map[string]any{
			"ticket_id":     it.TicketID,
			"message":       truncate(it.Message, maxCompactMessage),
			"overall_score": round3(it.Metadata.Analysis.OverallScore),
		}
		if it.MessageID != nil {
			item["message_id"] = *it.MessageID
		}
		items = append(items, item)
	}
	return map[string]any{
		"successful": items,
		"failed":     r.Failed,
		"summary":    r.Summary,
	}
}

// compactResearch drops the raw research documents from a report.
func compactResearch(r model.ResearchReport) map[string]any {
	out := make([]map[string]any, 0, len(r.Researched))
	for _, p := range r.Researched {
		entry := map[string]any{
			"ticket_id":           p.TicketID,
			"session_id":          p.SessionID,
			"qualification_score": round3(p.QualificationScore),
			"priority":            p.Priority,
		}
		if p.Research != nil && p.Research.Company.Industry != "" {
			entry["industry"] = p.Research.Company.Industry
		}
		out = append(out, entry)
	}
	return map[string]any{
		"researched": out,
		"failed":     r.Failed,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// truncate shortens s to at most n runes, cutting at the last space when
// one is close to the limit.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndex(cut, " "); i >= len(cut)*3/4 {
		cut = cut[:i]
	}
	return cut + "..."
}
