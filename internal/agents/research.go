package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/service/outreach"
)

func (a *BizDevAgent) researchProspects(ctx context.Context, raw json.RawMessage, _ execConfig) (any, error) {
	p, err := decodeParams[ResearchParams](raw)
	if err != nil {
		return nil, err
	}

	report := model.ResearchReport{
		Researched: []model.ProspectResearchOutcome{},
		Failed:     []model.BatchFailure{},
	}

	if p.TicketID != nil {
		ticket, err := a.deps.Tickets.GetTicket(ctx, *p.TicketID)
		if err != nil {
			return nil, fmt.Errorf("load ticket %s: %w", *p.TicketID, err)
		}
		out, err := a.researchOne(ctx, ticket)
		if err != nil {
			return nil, err
		}
		report.Researched = append(report.Researched, out)
		return report, nil
	}

	if p.ProjectID == uuid.Nil {
		return nil, &model.ValidationError{Field: "project_id"}
	}
	tickets, err := a.deps.Tickets.ListProspectTickets(ctx, p.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list prospects for project %s: %w", p.ProjectID, err)
	}
	for _, t := range tickets {
		if ctx.Err() != nil {
			report.Failed = append(report.Failed, model.BatchFailure{TicketID: t.ID, Error: ctx.Err().Error()})
			continue
		}
		out, err := a.researchOne(ctx, t)
		if err != nil {
			a.logger.Warn("agents: prospect research failed", "ticket_id", t.ID, "error", err)
			report.Failed = append(report.Failed, model.BatchFailure{TicketID: t.ID, Error: err.Error()})
			continue
		}
		report.Researched = append(report.Researched, out)
	}
	a.logger.Info("agents: prospect research finished",
		"project_id", p.ProjectID,
		"researched", len(report.Researched),
		"failed", len(report.Failed))
	return report, nil
}

// researchOne researches one prospect inside a research session. Any failure
// after the session has started marks the session failed.
func (a *BizDevAgent) researchOne(ctx context.Context, ticket model.Ticket) (model.ProspectResearchOutcome, error) {
	session, err := a.deps.Tickets.StartResearchSession(ctx, a.record.ID, ticket.ID)
	if err != nil {
		return model.ProspectResearchOutcome{}, fmt.Errorf("start research session: %w", err)
	}

	out, err := a.qualify(ctx, session.ID, ticket)
	if err != nil {
		if ferr := a.deps.Tickets.FailResearchSession(context.WithoutCancel(ctx), session.ID, err.Error()); ferr != nil {
			a.logger.Warn("agents: fail research session", "session_id", session.ID, "error", ferr)
		}
		return model.ProspectResearchOutcome{}, err
	}
	return out, nil
}

func (a *BizDevAgent) qualify(ctx context.Context, sessionID uuid.UUID, ticket model.Ticket) (model.ProspectResearchOutcome, error) {
	data, err := outreach.Enrich(ctx, a.deps.Researcher, ticket.Prospect)
	if err != nil {
		return model.ProspectResearchOutcome{}, fmt.Errorf("research prospect: %w", err)
	}

	factors := Qualify(data)
	score := factors.Score()
	priority := PriorityFor(score)
	summary := FormatResearchSummary(ticket.Prospect, data, factors)

	if err := a.deps.Tickets.UpdateTicketResearch(ctx, ticket.ID, priority, summary); err != nil {
		return model.ProspectResearchOutcome{}, fmt.Errorf("update ticket: %w", err)
	}
	if _, err := a.deps.Tickets.InsertMessage(ctx, model.Message{
		TicketID:    ticket.ID,
		SenderID:    &a.userID,
		Direction:   model.DirectionInternal,
		Content:     summary,
		MessageType: MessageTypeResearchSummary,
		Metadata: map[string]any{
			"session_id":          sessionID,
			"qualification_score": score,
			"factors":             factors,
		},
	}); err != nil {
		return model.ProspectResearchOutcome{}, fmt.Errorf("record research message: %w", err)
	}
	if _, err := a.deps.Tickets.InsertSummary(ctx, model.Summary{
		TicketID:  ticket.ID,
		Content:   sessionSummary(ticket.Prospect, score, priority),
		CreatedBy: &a.userID,
	}); err != nil {
		return model.ProspectResearchOutcome{}, fmt.Errorf("record research summary: %w", err)
	}
	if err := a.deps.Tickets.CompleteResearchSession(ctx, sessionID, score, summary); err != nil {
		return model.ProspectResearchOutcome{}, fmt.Errorf("complete research session: %w", err)
	}

	return model.ProspectResearchOutcome{
		TicketID:           ticket.ID,
		SessionID:          sessionID,
		QualificationScore: score,
		Priority:           priority,
		Research:           &data,
	}, nil
}

// FormatResearchSummary renders research as the ticket description.
func FormatResearchSummary(p model.Prospect, data model.ResearchData, f QualificationFactors) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prospect Research: %s (%s at %s)\n\n", p.Name, orDash(data.Person.Role), p.Company)

	b.WriteString("Company\n")
	fmt.Fprintf(&b, "- Overview: %s\n", orDash(data.Company.Overview))
	fmt.Fprintf(&b, "- Industry: %s\n", orDash(data.Company.Industry))
	fmt.Fprintf(&b, "- Size: %s\n", orDash(data.Company.Size))
	fmt.Fprintf(&b, "- Market position: %s\n", orDash(data.Company.MarketPosition))
	fmt.Fprintf(&b, "- Recent developments: %s\n", orDash(data.Company.RecentDevelopments))
	fmt.Fprintf(&b, "- Technology: %s\n", joinOrDash(data.Company.Technology))
	fmt.Fprintf(&b, "- Competitors: %s\n\n", joinOrDash(data.Company.Competitors))

	b.WriteString("Person\n")
	fmt.Fprintf(&b, "- Background: %s\n", orDash(data.Person.Background))
	fmt.Fprintf(&b, "- Interests: %s\n", joinOrDash(data.Person.Interests))
	fmt.Fprintf(&b, "- Pain points: %s\n\n", joinOrDash(data.Person.PainPoints))

	score := f.Score()
	fmt.Fprintf(&b, "Qualification: %.0f/100 (%s priority)\n", score, PriorityFor(score))
	fmt.Fprintf(&b, "- Company size %.2f, industry fit %.2f, tech stack %.2f\n", f.CompanySize, f.IndustryFit, f.TechStack)
	fmt.Fprintf(&b, "- Growth %.2f, role %.2f, engagement %.2f\n", f.Growth, f.PersonRole, f.Engagement)
	return b.String()
}

func sessionSummary(p model.Prospect, score float64, priority string) string {
	return fmt.Sprintf("Researched %s at %s: qualification %.0f/100, priority %s.", p.Name, p.Company, score, priority)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
