package outreach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/service/llm"
)

// ContentAnalyzer answers the NLP questions asked about a generated message.
type ContentAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, text string) (string, error)
	ClassifyIntent(ctx context.Context, text string) (string, error)
	ExtractKeywords(ctx context.Context, text string) ([]string, error)
}

// MessageAnalyzer scores a generated message.
type MessageAnalyzer struct {
	nlp    ContentAnalyzer
	gen    llm.Generator
	logger *slog.Logger
}

// NewMessageAnalyzer creates an analyzer. gen is used for structured scoring.
func NewMessageAnalyzer(nlp ContentAnalyzer, gen llm.Generator, logger *slog.Logger) *MessageAnalyzer {
	return &MessageAnalyzer{nlp: nlp, gen: gen, logger: logger}
}

// Analyze runs content analysis and structured scoring concurrently. A
// scoring answer that cannot be parsed is replaced by FallbackAnalysis.
func (a *MessageAnalyzer) Analyze(ctx context.Context, message string, c model.OutreachContext) (model.Analysis, error) {
	var (
		content model.ContentAnalysis
		scored  model.Analysis
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		content, err = a.analyzeContent(gctx, message)
		return err
	})
	g.Go(func() error {
		var err error
		scored, err = a.score(gctx, message, c)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Analysis{}, err
	}
	scored.NLPAnalysis = content
	return scored, nil
}

func (a *MessageAnalyzer) analyzeContent(ctx context.Context, message string) (model.ContentAnalysis, error) {
	out := model.ContentAnalysis{Readability: Readability(message)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := a.nlp.AnalyzeSentiment(gctx, message)
		out.Sentiment = s
		return err
	})
	g.Go(func() error {
		i, err := a.nlp.ClassifyIntent(gctx, message)
		out.Intent = i
		return err
	})
	g.Go(func() error {
		k, err := a.nlp.ExtractKeywords(gctx, message)
		out.Keywords = k
		return err
	})
	if err := g.Wait(); err != nil {
		return model.ContentAnalysis{}, fmt.Errorf("content analysis: %w", err)
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	return out, nil
}

const scoringSystem = `You evaluate sales outreach messages. Reply with a single JSON object and nothing else:
{"scores":{"personalization":0-1,"relevance":0-1,"engagement":0-1,"tone":0-1,"call_to_action":0-1},
"overall_score":0-1,
"key_metrics":{"readability":0-1,"business_context":0-1,"value_proposition":0-1},
"strengths":["..."],"improvements":["..."]}`

func (a *MessageAnalyzer) score(ctx context.Context, message string, c model.OutreachContext) (model.Analysis, error) {
	query := fmt.Sprintf("Prospect: %s, %s at %s\nTicket: %s\n\nMessage:\n%s",
		c.Prospect.Name, c.Prospect.Role, c.Prospect.Company, c.Ticket.Title, message)
	out, err := a.gen.GenerateResponse(ctx, scoringSystem, query)
	if err != nil {
		return model.Analysis{}, fmt.Errorf("structured scoring: %w", err)
	}
	analysis, err := ParseScoring(out)
	if err != nil {
		a.logger.Warn("outreach: using fallback analysis", "ticket_id", c.Ticket.ID, "error", err)
		return FallbackAnalysis(), nil
	}
	return analysis, nil
}

type scoringResponse struct {
	Scores       *model.Scores    `json:"scores"`
	OverallScore *float64         `json:"overall_score"`
	KeyMetrics   model.KeyMetrics `json:"key_metrics"`
	Strengths    []string         `json:"strengths"`
	Improvements []string         `json:"improvements"`
}

// ParseScoring decodes a structured scoring answer. Scores are clamped to
// [0,1]; a missing overall score is the mean of the five scores. Failures
// wrap model.ErrScoringParse.
func ParseScoring(out string) (model.Analysis, error) {
	start := strings.IndexByte(out, '{')
	end := strings.LastIndexByte(out, '}')
	if start < 0 || end <= start {
		return model.Analysis{}, fmt.Errorf("%w: no JSON object", model.ErrScoringParse)
	}
	var resp scoringResponse
	if err := json.Unmarshal([]byte(out[start:end+1]), &resp); err != nil {
		return model.Analysis{}, fmt.Errorf("%w: %v", model.ErrScoringParse, err)
	}
	if resp.Scores == nil {
		return model.Analysis{}, fmt.Errorf("%w: missing scores", model.ErrScoringParse)
	}

	s := *resp.Scores
	s.Personalization = clamp01(s.Personalization)
	s.Relevance = clamp01(s.Relevance)
	s.Engagement = clamp01(s.Engagement)
	s.Tone = clamp01(s.Tone)
	s.CallToAction = clamp01(s.CallToAction)

	overall := s.Mean()
	if resp.OverallScore != nil {
		overall = clamp01(*resp.OverallScore)
	}
	km := resp.KeyMetrics
	km.Readability = clamp01(km.Readability)
	km.BusinessContext = clamp01(km.BusinessContext)
	km.ValueProposition = clamp01(km.ValueProposition)

	return model.Analysis{
		Scores:       s,
		OverallScore: overall,
		KeyMetrics:   km,
		Strengths:    orEmpty(resp.Strengths),
		Improvements: orEmpty(resp.Improvements),
	}, nil
}

// FallbackAnalysis is used when the scoring answer cannot be parsed.
func FallbackAnalysis() model.Analysis {
	return model.Analysis{
		Scores: model.Scores{
			Personalization: 0.85,
			Relevance:       0.88,
			Engagement:      0.82,
			Tone:            0.90,
			CallToAction:    0.85,
		},
		OverallScore: 0.86,
		KeyMetrics: model.KeyMetrics{
			Readability:      0.87,
			BusinessContext:  0.85,
			ValueProposition: 0.86,
		},
		Strengths: []string{
			"Personalized to the prospect's role and company",
			"Clear value proposition",
			"Professional tone",
			"Specific call to action",
		},
		Improvements: []string{
			"Reference a recent company development",
			"Quantify the expected business impact",
			"Shorten the opening paragraph",
		},
		Fallback: true,
	}
}

const idealSentenceLength = 15.0

// Readability scores how close the average sentence length is to fifteen
// words: 1 - |avg-15|/15, clamped to [0,1]. Empty text scores 0.
func Readability(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	sentences := 0
	for _, s := range strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '!' || r == '?' }) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}
	avg := float64(words) / float64(sentences)
	return clamp01(1 - math.Abs(avg-idealSentenceLength)/idealSentenceLength)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
