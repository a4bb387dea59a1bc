package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Default retry settings for writes that may hit serialization conflicts.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 20 * time.Millisecond
)

// isRetriable reports whether err is a serialization failure or deadlock.
func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// WithRetry runs fn, retrying serialization failures and deadlocks up to
// maxRetries times with jittered exponential backoff from baseDelay.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil || !isRetriable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		wait := baseDelay
		if baseDelay > 0 {
			wait += time.Duration(rand.Int64N(int64(baseDelay))) //nolint:gosec // jitter only
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		baseDelay *= 2
	}
	return err
}
