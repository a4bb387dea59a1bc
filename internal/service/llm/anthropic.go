package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// AnthropicGenerator generates text with Anthropic models through langchaingo.
type AnthropicGenerator struct {
	model   llms.Model
	timeout time.Duration
}

// NewAnthropicGenerator creates a generator for the given model name.
func NewAnthropicGenerator(apiKey, model string, timeout time.Duration) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: anthropic provider requires ANTHROPIC_API_KEY")
	}
	m, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("llm: create anthropic client: %w", err)
	}
	return &AnthropicGenerator{model: m, timeout: timeout}, nil
}

// GenerateResponse implements Generator.
func (g *AnthropicGenerator) GenerateResponse(ctx context.Context, system, query string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := query
	if system != "" {
		prompt = system + "\n\n" + query
	}
	out, err := llms.GenerateFromSinglePrompt(callCtx, g.model, prompt,
		llms.WithMaxTokens(1024),
		llms.WithTemperature(0.7),
	)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("anthropic: %w", err)}
	}
	return strings.TrimSpace(out), nil
}
