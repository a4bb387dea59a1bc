package outreach

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/service/embedding"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func ptr[T any](v T) *T { return &v }

// fakeClock advances by step on every call so durations are deterministic.
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func janeContext() model.OutreachContext {
	return model.OutreachContext{
		Prospect: model.Prospect{Name: "Jane Doe", Company: "Acme", Role: "CTO", Email: "jane@acme.test"},
		Ticket: model.Ticket{
			ID:       uuid.MustParse("6f1c2f64-0a39-4d2b-9d7e-1f1f4f5b0c11"),
			Title:    "Acme platform expansion",
			Status:   model.StatusNew,
			Priority: model.PriorityMedium,
			Category: model.CategoryProspect,
		},
	}
}

type fakeResearcher struct {
	companyErr error
	personErr  error
	calls      atomic.Int32
}

func (f *fakeResearcher) AnalyzeCompany(_ context.Context, name string) (model.CompanyResearch, error) {
	f.calls.Add(1)
	if f.companyErr != nil {
		return model.CompanyResearch{}, f.companyErr
	}
	return model.CompanyResearch{
		Overview:    name + " builds developer tooling",
		Technology:  []string{"aws", "kubernetes"},
		Competitors: []string{"Globex"},
		Size:        "large",
		Industry:    "saas",
		GrowthTrend: "up",
	}, nil
}

func (f *fakeResearcher) AnalyzePerson(_ context.Context, _, _, _ string) (model.PersonResearch, error) {
	f.calls.Add(1)
	if f.personErr != nil {
		return model.PersonResearch{}, f.personErr
	}
	return model.PersonResearch{Role: "CTO", Background: "Platform leader", PainPoints: []string{"slow releases"}}, nil
}

// fakeGenerator answers generation and scoring prompts differently.
type fakeGenerator struct {
	message    string
	scoring    string
	genErr     error
	scoringErr error
	prompts    []string
	mu         sync.Mutex
}

func (g *fakeGenerator) GenerateResponse(_ context.Context, system, query string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, query)
	g.mu.Unlock()
	if system == scoringSystem {
		if g.scoringErr != nil {
			return "", g.scoringErr
		}
		return g.scoring, nil
	}
	if g.genErr != nil {
		return "", g.genErr
	}
	return g.message, nil
}

func (g *fakeGenerator) generationPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.prompts {
		if strings.HasPrefix(p, "Write a ") {
			return p
		}
	}
	return ""
}

type fakeNLP struct {
	err error
}

func (f fakeNLP) AnalyzeSentiment(context.Context, string) (string, error) {
	return model.SentimentPositive, f.err
}

func (f fakeNLP) ClassifyIntent(context.Context, string) (string, error) { return "introduce", f.err }

func (f fakeNLP) ExtractKeywords(context.Context, string) ([]string, error) {
	return []string{"platform", "releases"}, f.err
}

type fakeExampleStore struct {
	examples []model.Example
	err      error
}

func (s fakeExampleStore) HighScoringExamples(context.Context, pgvector.Vector, float64, int) ([]model.Example, error) {
	return s.examples, s.err
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) (pgvector.Vector, error) {
	return pgvector.Vector{}, errors.New("embedding service down")
}

func (failingEmbedder) Dimensions() int { return 3 }

type staticEmbedder struct{ vec []float32 }

func (e staticEmbedder) Embed(context.Context, string) (pgvector.Vector, error) {
	return pgvector.NewVector(e.vec), nil
}

func (e staticEmbedder) Dimensions() int { return len(e.vec) }

var _ embedding.Provider = staticEmbedder{}

type fakeProber struct{ err error }

func (p fakeProber) Probe(context.Context) error { return p.err }

const validScoring = `{"scores":{"personalization":0.9,"relevance":0.8,"engagement":0.7,"tone":0.95,"call_to_action":0.6},
"overall_score":0.79,"key_metrics":{"readability":0.8,"business_context":0.7,"value_proposition":0.75},
"strengths":["specific"],"improvements":["shorter"]}`
