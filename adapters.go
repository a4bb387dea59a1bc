package outreach

import (
	"context"
	"log/slog"

	"github.com/pgvector/pgvector-go"

	"github.com/rogerHuntGauntlet/outreach/internal/agents"
	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// generatorAdapter wraps a TextGenerator to satisfy llm.Generator.
type generatorAdapter struct {
	g TextGenerator
}

func (a *generatorAdapter) GenerateResponse(ctx context.Context, system, query string) (string, error) {
	return a.g.GenerateResponse(ctx, system, query)
}

// embeddingAdapter wraps an EmbeddingProvider to satisfy embedding.Provider.
type embeddingAdapter struct {
	p EmbeddingProvider
}

func (a *embeddingAdapter) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	v, err := a.p.Embed(ctx, text)
	if err != nil {
		return pgvector.Vector{}, err
	}
	return pgvector.NewVector(v), nil
}

func (a *embeddingAdapter) Dimensions() int { return a.p.Dimensions() }

// researcherAdapter wraps a Researcher to satisfy the pipeline's researcher.
type researcherAdapter struct {
	r Researcher
}

func (a *researcherAdapter) AnalyzeCompany(ctx context.Context, name string) (model.CompanyResearch, error) {
	p, err := a.r.AnalyzeCompany(ctx, name)
	if err != nil {
		return model.CompanyResearch{}, err
	}
	return toInternalCompany(p), nil
}

func (a *researcherAdapter) AnalyzePerson(ctx context.Context, name, email, company string) (model.PersonResearch, error) {
	p, err := a.r.AnalyzePerson(ctx, name, email, company)
	if err != nil {
		return model.PersonResearch{}, err
	}
	return toInternalPerson(p), nil
}

// generatedHook fans a notification out to every registered hook. It runs on
// the goroutine the agent starts for it, so hooks are called in order.
func generatedHook(hooks []EventHook, logger *slog.Logger) agents.GeneratedHook {
	if len(hooks) == 0 {
		return nil
	}
	return func(ctx context.Context, n model.GeneratedNotification) {
		hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
		defer cancel()
		o := toPublicOutreach(n)
		for _, h := range hooks {
			if err := h.OnOutreachGenerated(hookCtx, o); err != nil {
				logger.Warn("event hook OnOutreachGenerated failed", "error", err, "message_id", n.MessageID)
			}
		}
	}
}

func toInternalCompany(p CompanyProfile) model.CompanyResearch {
	return model.CompanyResearch{
		Overview:           p.Overview,
		RecentDevelopments: p.RecentDevelopments,
		MarketPosition:     p.MarketPosition,
		Competitors:        p.Competitors,
		Technology:         p.Technology,
		Size:               p.Size,
		Industry:           p.Industry,
		GrowthTrend:        p.GrowthTrend,
	}
}

func toInternalPerson(p PersonProfile) model.PersonResearch {
	return model.PersonResearch{
		Role:            p.Role,
		Background:      p.Background,
		Interests:       p.Interests,
		PainPoints:      p.PainPoints,
		LinkedInActive:  p.LinkedInActive,
		RecentJobChange: p.RecentJobChange,
	}
}

func toPublicOutreach(n model.GeneratedNotification) GeneratedOutreach {
	return GeneratedOutreach{
		MessageID:    n.MessageID,
		TicketID:     n.TicketID,
		AgentID:      n.AgentID,
		RunID:        n.RunID,
		MessageType:  n.MessageType,
		OverallScore: n.OverallScore,
		CreatedAt:    n.CreatedAt,
	}
}
