package outreach

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

const maxTalkingPoints = 5

var errNoResearch = errors.New("research data missing")

// DeriveInsights turns research and relationship state into talking points.
func DeriveInsights(p model.Prospect, research *model.ResearchData, rel model.RelationshipStage) (model.Insights, error) {
	if research == nil {
		return model.Insights{}, errNoResearch
	}
	c, person := research.Company, research.Person

	ins := model.Insights{
		CompanyHighlights: nonEmpty(c.Overview, c.RecentDevelopments, c.MarketPosition),
		PersonHighlights:  nonEmpty(roleLine(p, person), person.Background),
		TalkingPoints:     []string{},
	}
	if len(person.Interests) > 0 {
		ins.PersonHighlights = append(ins.PersonHighlights, "Interested in "+strings.Join(person.Interests, ", "))
	}

	for _, pain := range person.PainPoints {
		ins.TalkingPoints = append(ins.TalkingPoints, "Address "+pain)
	}
	for i, tech := range c.Technology {
		if i == 2 {
			break
		}
		ins.TalkingPoints = append(ins.TalkingPoints, "Fit with their "+tech+" stack")
	}
	if len(c.Competitors) > 0 {
		ins.TalkingPoints = append(ins.TalkingPoints, "Differentiate from "+c.Competitors[0])
	}
	if len(ins.TalkingPoints) > maxTalkingPoints {
		ins.TalkingPoints = ins.TalkingPoints[:maxTalkingPoints]
	}

	switch rel.Stage {
	case model.StageNew:
		ins.RelationshipNote = "First contact: introduce the value proposition and earn a reply."
	case model.StageDeveloping:
		ins.RelationshipNote = fmt.Sprintf("Early relationship (%d interactions, %.0f%% response rate): build on prior touchpoints.",
			rel.Metrics.TotalInteractions, rel.Metrics.ResponseRate*100)
	default:
		ins.RelationshipNote = fmt.Sprintf("Established relationship (%d interactions): be specific and move toward a next step.",
			rel.Metrics.TotalInteractions)
	}
	return ins, nil
}

func roleLine(p model.Prospect, person model.PersonResearch) string {
	role := person.Role
	if role == "" {
		role = p.Role
	}
	return fmt.Sprintf("%s is %s at %s", p.Name, role, p.Company)
}

func nonEmpty(vals ...string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
