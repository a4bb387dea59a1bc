// Package embedding turns text into vectors for example retrieval.
package embedding

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// Provider generates vector embeddings from text.
type Provider interface {
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
	Dimensions() int
}

// ErrEmptyText is returned when asked to embed blank input.
var ErrEmptyText = errors.New("embedding: empty text")

// Config selects and configures a provider.
type Config struct {
	Provider     string // "auto", "openai", "ollama" or "noop"
	OpenAIAPIKey string
	OpenAIModel  string
	OpenAIURL    string
	OllamaURL    string
	OllamaModel  string
	Dimensions   int
}

// New picks a provider. In "auto" mode OpenAI is used when a key is present,
// then Ollama, then the noop provider.
func New(cfg Config, logger *slog.Logger) Provider {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg.OpenAIURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.Dimensions)
	case "ollama":
		return NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.Dimensions)
	case "noop":
		return NewNoopProvider(cfg.Dimensions)
	}
	if cfg.OpenAIAPIKey != "" {
		logger.Info("embedding: using openai", "model", cfg.OpenAIModel)
		return NewOpenAIProvider(cfg.OpenAIURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.Dimensions)
	}
	if cfg.OllamaURL != "" && cfg.OllamaModel != "" {
		logger.Info("embedding: using ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel, cfg.Dimensions)
	}
	logger.Warn("embedding: no provider configured, example similarity will be flat")
	return NewNoopProvider(cfg.Dimensions)
}

// Cosine returns the cosine similarity of a and b. Mismatched lengths and
// zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// NoopProvider returns zero vectors. Used when no model is configured.
type NoopProvider struct {
	dims int
}

// NewNoopProvider creates a provider that returns zero vectors.
func NewNoopProvider(dims int) *NoopProvider {
	return &NoopProvider{dims: dims}
}

// Dimensions returns the embedding vector size.
func (p *NoopProvider) Dimensions() int { return p.dims }

// Embed returns a zero vector.
func (p *NoopProvider) Embed(_ context.Context, _ string) (pgvector.Vector, error) {
	return pgvector.NewVector(make([]float32, p.dims)), nil
}
