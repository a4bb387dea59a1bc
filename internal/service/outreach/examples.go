package outreach

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/service/embedding"
)

// ExampleStore returns previously sent messages whose effectiveness score is
// at least minScore, nearest to query first.
type ExampleStore interface {
	HighScoringExamples(ctx context.Context, query pgvector.Vector, minScore float64, limit int) ([]model.Example, error)
}

// Example retrieval defaults.
const (
	DefaultExampleLimit    = 3
	DefaultExampleMinScore = 0.8
	candidateMultiplier    = 4
)

// ExampleRetriever finds well-performing past messages similar to a prospect.
type ExampleRetriever struct {
	embedder embedding.Provider
	store    ExampleStore
	limit    int
	minScore float64
	logger   *slog.Logger
}

// NewExampleRetriever creates a retriever. A nil store makes every lookup
// return no examples.
func NewExampleRetriever(embedder embedding.Provider, store ExampleStore, limit int, minScore float64, logger *slog.Logger) *ExampleRetriever {
	if limit <= 0 {
		limit = DefaultExampleLimit
	}
	if minScore <= 0 {
		minScore = DefaultExampleMinScore
	}
	return &ExampleRetriever{embedder: embedder, store: store, limit: limit, minScore: minScore, logger: logger}
}

// ExampleQuery is the text examples are matched against.
func ExampleQuery(p model.Prospect) string {
	return strings.TrimSpace(p.Role + " at " + p.Company)
}

// Retrieve returns up to limit examples ranked by cosine similarity to the
// prospect. An unavailable store yields an empty result, not an error.
func (r *ExampleRetriever) Retrieve(ctx context.Context, p model.Prospect) ([]model.Example, error) {
	if r == nil || r.store == nil {
		return []model.Example{}, nil
	}
	query, err := r.embedder.Embed(ctx, ExampleQuery(p))
	if err != nil {
		return nil, fmt.Errorf("embed example query: %w", err)
	}

	candidates, err := r.store.HighScoringExamples(ctx, query, r.minScore, r.limit*candidateMultiplier)
	if err != nil {
		r.logger.Warn("outreach: example store unavailable", "error", err)
		return []model.Example{}, nil
	}

	qv := query.Slice()
	ranked := make([]model.Example, 0, len(candidates))
	for _, c := range candidates {
		if c.EffectivenessScore < r.minScore || strings.TrimSpace(c.Body) == "" {
			continue
		}
		if len(c.Embedding) > 0 {
			c.Similarity = embedding.Cosine(qv, c.Embedding)
		}
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Similarity > ranked[j].Similarity })
	if len(ranked) > r.limit {
		ranked = ranked[:r.limit]
	}
	return ranked, nil
}
