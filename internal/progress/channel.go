package progress

import (
	"context"
	"sync"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// Channel is a Sink backed by a Go channel. The producing run writes with
// Send and calls Finish when it is done; the transport drains Events and
// calls Abort if it can no longer deliver, which makes every later Send fail.
type Channel struct {
	events chan Event
	done   chan struct{}

	abortOnce  sync.Once
	finishOnce sync.Once
	mu         sync.Mutex
	err        error
}

// NewChannel creates a Channel with the given buffer size.
func NewChannel(buffer int) *Channel {
	return &Channel{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Send delivers ev, blocking while the buffer is full.
func (c *Channel) Send(ctx context.Context, ev Event) error {
	select {
	case <-c.done:
		return c.Err()
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events is drained by the transport. It is closed by Finish.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Finish closes the event channel. Only the producer may call it, and only
// after its last Send has returned.
func (c *Channel) Finish() {
	c.finishOnce.Do(func() { close(c.events) })
}

// Abort marks the consumer as gone. A nil err is recorded as ErrStreamClosed.
func (c *Channel) Abort(err error) {
	c.abortOnce.Do(func() {
		if err == nil {
			err = model.ErrStreamClosed
		}
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

// Err returns the abort cause, or nil while the consumer is attached.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
