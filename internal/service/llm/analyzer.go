package llm

import (
	"context"
	"fmt"
	"strings"
)

// TextAnalyzer answers small NLP questions about a text using a Generator.
type TextAnalyzer struct {
	gen Generator
}

// NewTextAnalyzer creates an analyzer backed by gen.
func NewTextAnalyzer(gen Generator) *TextAnalyzer {
	return &TextAnalyzer{gen: gen}
}

const (
	sentimentSystem = "You classify the sentiment of business messages. Reply with exactly one word: positive, negative or neutral."
	intentSystem    = "You classify the primary intent of business messages. Reply with a short snake_case label such as introduce, follow_up, schedule_meeting, share_resource, request_feedback or close_deal."
	keywordsSystem  = "You extract the most important keywords from business messages. Reply with a comma-separated list of at most 8 lowercase keywords and nothing else."

	maxKeywords  = 8
	maxIntentLen = 64
)

// AnalyzeSentiment returns positive, negative or neutral. Answers the model
// phrases differently are read as neutral.
func (a *TextAnalyzer) AnalyzeSentiment(ctx context.Context, text string) (string, error) {
	out, err := a.gen.GenerateResponse(ctx, sentimentSystem, text)
	if err != nil {
		return "", fmt.Errorf("llm: analyze sentiment: %w", err)
	}
	return ParseSentiment(out), nil
}

// ParseSentiment maps a free-form model answer onto the three sentiment labels.
func ParseSentiment(out string) string {
	lower := strings.ToLower(out)
	for _, label := range []string{"negative", "positive", "neutral"} {
		if strings.Contains(lower, label) {
			return label
		}
	}
	return "neutral"
}

// ClassifyIntent returns a short intent label.
func (a *TextAnalyzer) ClassifyIntent(ctx context.Context, text string) (string, error) {
	out, err := a.gen.GenerateResponse(ctx, intentSystem, text)
	if err != nil {
		return "", fmt.Errorf("llm: classify intent: %w", err)
	}
	return ParseIntent(out), nil
}

// ParseIntent normalizes a model answer into a snake_case label.
func ParseIntent(out string) string {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	line = strings.ToLower(strings.Trim(line, " .\"'`"))
	line = strings.TrimPrefix(line, "intent:")
	line = strings.Join(strings.Fields(line), "_")
	if len(line) > maxIntentLen {
		line = line[:maxIntentLen]
	}
	if line == "" {
		return "unknown"
	}
	return line
}

// ExtractKeywords returns up to eight distinct keywords.
func (a *TextAnalyzer) ExtractKeywords(ctx context.Context, text string) ([]string, error) {
	out, err := a.gen.GenerateResponse(ctx, keywordsSystem, text)
	if err != nil {
		return nil, fmt.Errorf("llm: extract keywords: %w", err)
	}
	return ParseKeywords(out), nil
}

// ParseKeywords splits a comma or newline separated list, dropping blanks,
// bullets and duplicates.
func ParseKeywords(out string) []string {
	fields := strings.FieldsFunc(out, func(r rune) bool { return r == ',' || r == '\n' })
	seen := make(map[string]bool, len(fields))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		k := strings.ToLower(strings.Trim(strings.TrimSpace(f), "-*•.\"'"))
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keywords = append(keywords, k)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}
