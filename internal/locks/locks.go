// Package locks provides short-lived exclusive locks keyed by string. The
// Redis implementation coordinates several server instances; the in-memory
// one serves single-process deployments and tests.
package locks

import (
	"context"
	"errors"
	"time"
)

// ErrHeld is returned by Acquire when another holder owns the key.
var ErrHeld = errors.New("lock held")

// Release gives a lock back. Releasing an expired or already released lock
// is not an error.
type Release func(ctx context.Context) error

// Locker acquires exclusive locks without waiting. Implementations must be
// safe for concurrent use.
type Locker interface {
	// Acquire takes key for at most ttl. It returns ErrHeld immediately if
	// the key is taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// TicketKey is the lock key guarding generation for one ticket.
func TicketKey(ticketID string) string {
	return "outreach:ticket:" + ticketID
}
