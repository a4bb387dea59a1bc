package progress

import (
	"context"
	"log/slog"
)

// Tee forwards every event to a primary sink and a set of mirrors. Only the
// primary's errors are returned; mirror failures are logged.
type Tee struct {
	primary Sink
	mirrors []Sink
	logger  *slog.Logger
}

// NewTee builds a Tee. A nil primary is treated as Discard.
func NewTee(logger *slog.Logger, primary Sink, mirrors ...Sink) *Tee {
	if primary == nil {
		primary = Discard
	}
	var ms []Sink
	for _, m := range mirrors {
		if m != nil {
			ms = append(ms, m)
		}
	}
	return &Tee{primary: primary, mirrors: ms, logger: logger}
}

// Send implements Sink.
func (t *Tee) Send(ctx context.Context, ev Event) error {
	for _, m := range t.mirrors {
		if err := m.Send(ctx, ev); err != nil {
			t.logger.Warn("progress: mirror send failed", "run_id", ev.RunID, "event", ev.Type, "error", err)
		}
	}
	return t.primary.Send(ctx, ev)
}

// LogSink writes each event to a structured logger at debug level.
type LogSink struct {
	Logger *slog.Logger
}

// Send implements Sink.
func (l LogSink) Send(_ context.Context, ev Event) error {
	attrs := []any{"run_id", ev.RunID, "event", ev.Type}
	if ev.Task != nil {
		attrs = append(attrs, "task", ev.Task.Name, "phase", ev.Phase)
	}
	if ev.Error != "" {
		attrs = append(attrs, "error", ev.Error)
	}
	l.Logger.Debug("progress", attrs...)
	return nil
}
