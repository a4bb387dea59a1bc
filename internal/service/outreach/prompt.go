package outreach

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// NoExamplesMarker stands in for the examples section when none were found.
const NoExamplesMarker = "No examples available."

const (
	historyMessageLimit = 10
	historyTimeLayout   = "2006-01-02 15:04"
)

const generationSystem = `You are an experienced business development representative writing personalized outreach.
Write only the message body, ready to send. Do not add a subject line unless the message type is an email.
Be specific to the prospect and their company, keep it concise and end with one clear call to action.`

// PromptInput is everything the generation prompt is built from.
type PromptInput struct {
	Context      model.OutreachContext
	MessageType  string
	Relationship model.RelationshipStage
	Tone         model.Tone
	Insights     model.Insights
	Examples     []model.Example
}

// BuildPrompt renders the generation prompt.
func BuildPrompt(in PromptInput) string {
	c := in.Context
	var b strings.Builder

	fmt.Fprintf(&b, "Write a %s outreach message.\n\n", messageTypeOr(in.MessageType))

	b.WriteString("## Ticket\n")
	fmt.Fprintf(&b, "Title: %s\nDescription: %s\nStatus: %s\nPriority: %s\nCategory: %s\n\n",
		c.Ticket.Title, c.Ticket.Description, c.Ticket.Status, c.Ticket.Priority, c.Ticket.Category)

	if c.ProjectContext != nil {
		fmt.Fprintf(&b, "## Project\n%s: %s (%s)\n\n", c.ProjectContext.Name, c.ProjectContext.Description, c.ProjectContext.Status)
	}

	b.WriteString("## Prospect\n")
	b.WriteString(toJSON(c.Prospect))
	b.WriteString("\n\n")

	if c.ResearchData != nil {
		b.WriteString("## Company research\n")
		b.WriteString(toJSON(c.ResearchData.Company))
		b.WriteString("\n\n## Person research\n")
		b.WriteString(toJSON(c.ResearchData.Person))
		b.WriteString("\n\n")
	}

	b.WriteString("## Interaction history\n")
	b.WriteString(FormatHistory(c.Interactions))
	b.WriteString("\n")

	m := in.Relationship.Metrics
	fmt.Fprintf(&b, "## Relationship\nStage: %s\nTotal interactions: %d\nResponse rate: %.2f\nAverage sentiment: %.2f\n",
		in.Relationship.Stage, m.TotalInteractions, m.ResponseRate, m.AverageSentiment)
	if m.LastInteractionDate != nil {
		fmt.Fprintf(&b, "Last interaction: %s\n", m.LastInteractionDate.UTC().Format(historyTimeLayout))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Tone\nUse a %s tone.\n\n", in.Tone)

	b.WriteString("## Insights\n")
	for _, h := range in.Insights.CompanyHighlights {
		fmt.Fprintf(&b, "- Company: %s\n", h)
	}
	for _, h := range in.Insights.PersonHighlights {
		fmt.Fprintf(&b, "- Person: %s\n", h)
	}
	for _, tp := range in.Insights.TalkingPoints {
		fmt.Fprintf(&b, "- Talking point: %s\n", tp)
	}
	if in.Insights.RelationshipNote != "" {
		fmt.Fprintf(&b, "- Relationship: %s\n", in.Insights.RelationshipNote)
	}
	b.WriteString("\n")

	b.WriteString("## Examples of effective messages\n")
	if len(in.Examples) == 0 {
		b.WriteString(NoExamplesMarker)
		b.WriteString("\n")
	}
	for i, ex := range in.Examples {
		fmt.Fprintf(&b, "Example %d (effectiveness %.2f):\n%s\n\n", i+1, ex.EffectivenessScore, ex.Body)
	}

	if instr := strings.TrimSpace(c.Instructions); instr != "" {
		fmt.Fprintf(&b, "\n## Additional instructions\n%s\n", instr)
	}
	return b.String()
}

// FormatHistory renders the conversation newest first, followed by the key
// activities and the latest summary.
func FormatHistory(in model.Interactions) string {
	var b strings.Builder

	msgs := recentMessages(in.Messages, historyMessageLimit)
	if len(msgs) == 0 {
		b.WriteString("No previous messages.\n")
	}
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.UTC().Format(historyTimeLayout), speaker(m.Direction), m.Content)
	}

	var key []model.Activity
	for _, a := range recentActivities(in.Activities, len(in.Activities)) {
		if keyActivityTypes[a.Type] {
			key = append(key, a)
		}
	}
	if len(key) > 0 {
		b.WriteString("\nKey activities:\n")
		for _, a := range key {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", a.CreatedAt.UTC().Format(historyTimeLayout), a.Type, a.Description)
		}
	}

	if s, ok := latestSummary(in.Summaries); ok {
		fmt.Fprintf(&b, "\nLatest summary:\n%s\n", s.Content)
	}
	return b.String()
}

func latestSummary(sums []model.Summary) (model.Summary, bool) {
	var (
		latest model.Summary
		found  bool
		at     time.Time
	)
	for _, s := range sums {
		if !found || s.CreatedAt.After(at) {
			latest, at, found = s, s.CreatedAt, true
		}
	}
	return latest, found
}

func speaker(d model.MessageDirection) string {
	switch d {
	case model.DirectionInbound:
		return "Prospect"
	case model.DirectionInternal:
		return "Internal note"
	default:
		return "Us"
	}
}

func messageTypeOr(t string) string {
	if strings.TrimSpace(t) == "" {
		return "initial_outreach"
	}
	return t
}

func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
