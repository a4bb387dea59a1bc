// Package progress carries pipeline progress events from the code that
// computes them to whatever delivers them (an HTTP event stream, a log, a
// message bus, a test recorder).
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// EventType is the kind of a progress event.
type EventType string

const (
	EventTask     EventType = "task"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
	EventPing     EventType = "ping"
)

// Phase is the lifecycle transition a task event reports.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Event is one progress notification for a run.
type Event struct {
	Type   EventType               `json:"event"`
	RunID  uuid.UUID               `json:"run_id"`
	Phase  Phase                   `json:"type,omitempty"`
	Task   *model.Task             `json:"task,omitempty"`
	Result *model.GenerationResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
	Time   time.Time               `json:"time"`
}

// Payload returns the wire body of the event: {type, task} for task events,
// {result} for complete, {error} for error and an empty object for ping.
func (e Event) Payload() any {
	switch e.Type {
	case EventTask:
		return struct {
			Type  Phase       `json:"type"`
			RunID uuid.UUID   `json:"run_id"`
			Task  *model.Task `json:"task"`
		}{e.Phase, e.RunID, e.Task}
	case EventComplete:
		return struct {
			RunID  uuid.UUID               `json:"run_id"`
			Result *model.GenerationResult `json:"result"`
		}{e.RunID, e.Result}
	case EventError:
		return struct {
			RunID uuid.UUID `json:"run_id"`
			Error string    `json:"error"`
		}{e.RunID, e.Error}
	default:
		return struct{}{}
	}
}

// Sink receives progress events. A non-nil error from Send means the
// consumer is gone and no further events will be delivered. Implementations
// must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Send appends ev.
func (r *Recorder) Send(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t in arrival order.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
