package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxRetries is how often a failed call is retried when the caller
// passes a negative retry count.
const DefaultMaxRetries = 2

const (
	defaultRPS         = 2
	defaultBurst       = 4
	defaultBaseBackoff = 500 * time.Millisecond
)

// Limited paces calls to a Generator and retries transient failures with
// exponential backoff.
type Limited struct {
	next        Generator
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
}

// NewLimited wraps next. Non-positive values fall back to defaults.
func NewLimited(next Generator, rps float64, burst, maxRetries int) *Limited {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Limited{
		next:        next,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries:  maxRetries,
		baseBackoff: defaultBaseBackoff,
	}
}

// GenerateResponse implements Generator.
func (l *Limited) GenerateResponse(ctx context.Context, system, query string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := l.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := l.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm: rate limiter: %w", err)
		}

		out, err := l.next.GenerateResponse(ctx, system, query)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("llm: giving up after %d attempts: %w", l.maxRetries+1, lastErr)
}

// SingleAttempt returns a view of g that sends each prompt once. A *Limited
// keeps its shared rate limiter but stops retrying; other generators are
// returned unchanged.
func SingleAttempt(g Generator) Generator {
	l, ok := g.(*Limited)
	if !ok {
		return g
	}
	once := *l
	once.maxRetries = 0
	return &once
}
