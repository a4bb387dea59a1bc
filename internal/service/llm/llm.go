// Package llm talks to the language models that write and assess outreach
// messages.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Generator produces text from a system instruction and a query.
type Generator interface {
	GenerateResponse(ctx context.Context, system, query string) (string, error)
}

// ErrNotConfigured is returned by Unconfigured.
var ErrNotConfigured = errors.New("llm: no language model configured")

// Unconfigured fails every call. It lets the service start without a model
// so that read-only endpoints keep working.
type Unconfigured struct{}

// GenerateResponse always returns ErrNotConfigured.
func (Unconfigured) GenerateResponse(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}

// Config selects and configures a Generator.
type Config struct {
	Provider        string // "auto", "ollama", "openai" or "anthropic"
	Model           string
	OllamaURL       string
	OpenAIAPIKey    string
	OpenAIURL       string
	AnthropicAPIKey string
	Timeout         time.Duration
	RequestsPerSec  float64
	Burst           int
	MaxRetries      int
}

// New builds the configured generator wrapped in rate limiting and retries.
// In "auto" mode Anthropic is preferred, then OpenAI, then Ollama.
func New(cfg Config, logger *slog.Logger) (Generator, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	var (
		gen Generator
		err error
	)
	provider := strings.ToLower(cfg.Provider)
	if provider == "" || provider == "auto" {
		switch {
		case cfg.AnthropicAPIKey != "":
			provider = "anthropic"
		case cfg.OpenAIAPIKey != "":
			provider = "openai"
		case cfg.OllamaURL != "":
			provider = "ollama"
		default:
			logger.Warn("llm: no provider configured, generation is disabled")
			return Unconfigured{}, nil
		}
	}

	switch provider {
	case "ollama":
		gen = NewOllamaGenerator(cfg.OllamaURL, modelOr(cfg.Model, "llama3.1"), timeout)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("llm: openai provider requires OPENAI_API_KEY")
		}
		gen = NewOpenAIGenerator(cfg.OpenAIURL, cfg.OpenAIAPIKey, modelOr(cfg.Model, "gpt-4o-mini"), timeout)
	case "anthropic":
		gen, err = NewAnthropicGenerator(cfg.AnthropicAPIKey, modelOr(cfg.Model, "claude-3-5-sonnet-latest"), timeout)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}

	logger.Info("llm: generator configured", "provider", provider, "rps", cfg.RequestsPerSec)
	return NewLimited(gen, cfg.RequestsPerSec, cfg.Burst, cfg.MaxRetries), nil
}

func modelOr(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}

const defaultCallTimeout = 60 * time.Second

// retryableError marks a failure worth retrying (transport errors, 429, 5xx).
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// classifyStatus wraps an HTTP failure so that throttling and server errors
// are retried while client errors are not.
func classifyStatus(status int, err error) error {
	if status == 429 || status >= 500 {
		return &retryableError{err: err}
	}
	return err
}
