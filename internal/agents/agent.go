// Package agents implements capability-gated actors. An agent checks that it
// is active, runs a named action and records every attempt in an append-only
// audit log. The set of agent kinds is closed; see model.AgentKinds.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/progress"
)

// Agent is a live actor built from a stored agent record.
type Agent interface {
	// Record returns the durable agent record.
	Record() model.Agent
	// UserID is the directory identity the agent acts as.
	UserID() uuid.UUID
	// Actions lists the action names Execute accepts.
	Actions() []string
	// Execute runs action with JSON params. It fails with model.ErrAccessDenied
	// for an inactive agent and *model.InvalidActionError for an unknown action.
	Execute(ctx context.Context, action string, params json.RawMessage, opts ...ExecOption) (any, error)
}

// AuditLog receives one entry per attempted action.
type AuditLog interface {
	InsertAuditEntry(ctx context.Context, e model.AuditEntry) error
}

// ExecOption adjusts a single Execute call.
type ExecOption func(*execConfig)

type execConfig struct {
	sink   progress.Sink
	stream bool
	runID  uuid.UUID
}

// WithProgress reports pipeline task events to sink.
func WithProgress(sink progress.Sink) ExecOption {
	return func(c *execConfig) { c.sink = sink }
}

// WithStream reports task events, keepalives and the terminal complete or
// error event to sink. The action fails with model.ErrStreamClosed once sink
// stops accepting events.
func WithStream(sink progress.Sink) ExecOption {
	return func(c *execConfig) {
		c.sink = sink
		c.stream = true
	}
}

// WithRunID fixes the run id of a generation instead of generating one.
func WithRunID(id uuid.UUID) ExecOption {
	return func(c *execConfig) { c.runID = id }
}

// ExecSettings is the resolved form of a set of ExecOptions, for Agent
// implementations outside this package.
type ExecSettings struct {
	Sink   progress.Sink
	Stream bool
	RunID  uuid.UUID
}

// ResolveOptions applies opts and returns the result.
func ResolveOptions(opts ...ExecOption) ExecSettings {
	var cfg execConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return ExecSettings{Sink: cfg.sink, Stream: cfg.stream, RunID: cfg.runID}
}

// actionFunc is one entry of an agent's dispatch table.
type actionFunc func(ctx context.Context, params json.RawMessage, cfg execConfig) (any, error)

// base holds what every agent kind shares: the record, the access gate and
// the audit trail.
type base struct {
	record  model.Agent
	userID  uuid.UUID
	audit   AuditLog
	logger  *slog.Logger
	now     func() time.Time
	actions map[string]actionFunc
}

func (b *base) Record() model.Agent { return b.record }

func (b *base) UserID() uuid.UUID { return b.userID }

func (b *base) Actions() []string {
	names := make([]string, 0, len(b.actions))
	for name := range b.actions {
		names = append(names, name)
	}
	return names
}

func (b *base) validateAccess() error {
	if !b.record.IsActive {
		return model.ErrAccessDenied
	}
	return nil
}

// Execute gates, dispatches and audits one action.
func (b *base) Execute(ctx context.Context, action string, params json.RawMessage, opts ...ExecOption) (any, error) {
	var cfg execConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	started := b.now()
	result, err := b.dispatch(ctx, action, params, cfg)
	b.recordAudit(ctx, action, params, started, err)
	return result, err
}

func (b *base) dispatch(ctx context.Context, action string, params json.RawMessage, cfg execConfig) (any, error) {
	if err := b.validateAccess(); err != nil {
		return nil, err
	}
	fn, ok := b.actions[action]
	if !ok {
		return nil, &model.InvalidActionError{Action: action}
	}
	return fn(ctx, params, cfg)
}

// recordAudit appends the outcome of an action. A failed write is logged and
// never reaches the caller.
func (b *base) recordAudit(ctx context.Context, action string, params json.RawMessage, started time.Time, actionErr error) {
	details := map[string]any{
		"status":      auditStatus(actionErr),
		"duration_ms": b.now().Sub(started).Milliseconds(),
	}
	if len(params) > 0 && json.Valid(params) {
		details["params"] = json.RawMessage(params)
	}
	if actionErr != nil {
		details["error"] = actionErr.Error()
	}

	// The caller's context may already be cancelled by the time we get here.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := b.audit.InsertAuditEntry(auditCtx, model.AuditEntry{
		AgentID:   b.record.ID,
		Action:    action,
		Details:   details,
		CreatedAt: started.UTC(),
	}); err != nil {
		b.logger.Warn("agents: audit write failed", "agent_id", b.record.ID, "action", action, "error", err)
	}
}

func auditStatus(err error) string {
	var invalid *model.InvalidActionError
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, model.ErrAccessDenied):
		return "denied"
	case errors.As(err, &invalid):
		return "rejected"
	default:
		return "failed"
	}
}

// decodeParams unmarshals action params strictly. Empty params decode to the
// zero value.
func decodeParams[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &model.ValidationError{Field: "params", Reason: fmt.Sprintf("is malformed: %v", err)}
	}
	return v, nil
}
