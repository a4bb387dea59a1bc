package outreach

import (
	"context"
	"net/http"
)

// TextGenerator produces text from a system instruction and a query.
// When provided via WithTextGenerator, replaces the configured Ollama, OpenAI
// or Anthropic model for message generation, scoring and NLP analysis.
// Calls are still paced and retried by the App.
type TextGenerator interface {
	GenerateResponse(ctx context.Context, system, query string) (string, error)
}

// Researcher looks up prospects. When provided via WithResearcher, replaces
// the built-in web search + LLM summarisation research provider.
type Researcher interface {
	AnalyzeCompany(ctx context.Context, name string) (CompanyProfile, error)
	AnalyzePerson(ctx context.Context, name, email, company string) (PersonProfile, error)
}

// EmbeddingProvider generates vector embeddings from text.
// When provided via WithEmbeddingProvider, replaces auto-detected OpenAI/Ollama/noop.
// Uses []float32 (not pgvector.Vector) to avoid forcing the pgvector dependency on
// external consumers. App.New() wraps it in an adapter for internal use.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// EventHook receives async notifications when outreach is generated.
// Multiple hooks may be registered via multiple WithEventHook calls.
// Hook methods run in goroutines and must not block indefinitely.
// Failures are logged but do not fail the originating request.
type EventHook interface {
	OnOutreachGenerated(ctx context.Context, o GeneratedOutreach) error
}

// Middleware wraps the API handler. It runs inside request ID assignment and
// outside authentication, so it sees every request including /health.
// Multiple middlewares are applied in registration order (first-registered = outermost).
type Middleware func(http.Handler) http.Handler
