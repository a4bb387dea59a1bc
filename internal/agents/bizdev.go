package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rogerHuntGauntlet/outreach/internal/locks"
	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/progress"
	"github.com/rogerHuntGauntlet/outreach/internal/service/outreach"
	"github.com/rogerHuntGauntlet/outreach/internal/storage"
)

// BizDev actions.
const (
	ActionResearchProspects = "research_prospects"
	ActionGenerateOutreach  = "generate_outreach"
	ActionBatchGenerate     = "batch_generate_outreach"
)

// DefaultLockTTL bounds how long one generation may hold its ticket.
const DefaultLockTTL = 5 * time.Minute

// MessageTypeResearchSummary tags the internal note a research run leaves on
// a ticket.
const MessageTypeResearchSummary = "research_summary"

// TicketStore is the persistence a BizDev agent works against.
type TicketStore interface {
	GetTicket(ctx context.Context, id uuid.UUID) (model.Ticket, error)
	GetProjectContext(ctx context.Context, projectID uuid.UUID) (model.ProjectContext, error)
	LoadInteractions(ctx context.Context, ticketID uuid.UUID) (model.Interactions, error)
	ListProspectTickets(ctx context.Context, projectID uuid.UUID) ([]model.Ticket, error)
	ListTicketsForBatch(ctx context.Context, projectID uuid.UUID, filters model.BatchFilters) ([]model.Ticket, error)
	UpdateTicketResearch(ctx context.Context, id uuid.UUID, priority, description string) error
	MarkTicketContacted(ctx context.Context, id uuid.UUID, at time.Time) error
	InsertMessage(ctx context.Context, m model.Message) (model.Message, error)
	InsertActivity(ctx context.Context, a model.Activity) (model.Activity, error)
	InsertSummary(ctx context.Context, s model.Summary) (model.Summary, error)
	StartResearchSession(ctx context.Context, agentID, ticketID uuid.UUID) (model.ResearchSession, error)
	CompleteResearchSession(ctx context.Context, id uuid.UUID, score float64, summary string) error
	FailResearchSession(ctx context.Context, id uuid.UUID, cause string) error
	NotifyGenerated(ctx context.Context, n model.GeneratedNotification) error
}

// Pipeline runs one outreach generation.
type Pipeline interface {
	Generate(ctx context.Context, req outreach.Request, sink progress.Sink) (model.GenerationResult, error)
	Stream(ctx context.Context, req outreach.Request, sink progress.Sink) (model.GenerationResult, error)
}

// GeneratedHook is told about every persisted outreach message. It runs on
// its own goroutine.
type GeneratedHook func(ctx context.Context, n model.GeneratedNotification)

// BizDevDeps are the collaborators of a BizDevAgent.
type BizDevDeps struct {
	Tickets    TicketStore
	Researcher outreach.Researcher
	Pipeline   Pipeline
	Batch      *outreach.BatchRunner
	Locker     locks.Locker
	LockTTL    time.Duration
	// OnGenerated is optional.
	OnGenerated GeneratedHook
}

// ResearchParams are the params of research_prospects. Without a ticket id
// every new prospect ticket of the project is researched.
type ResearchParams struct {
	ProjectID uuid.UUID  `json:"project_id"`
	TicketID  *uuid.UUID `json:"ticket_id,omitempty"`
}

// GenerateParams are the params of generate_outreach.
type GenerateParams struct {
	TicketID    uuid.UUID             `json:"ticket_id"`
	MessageType string                `json:"message_type"`
	Context     model.GenerationHints `json:"context"`
}

// BatchParams are the params of batch_generate_outreach.
type BatchParams struct {
	ProjectID   uuid.UUID             `json:"project_id"`
	MessageType string                `json:"message_type"`
	Filters     model.BatchFilters    `json:"filters"`
	Context     model.GenerationHints `json:"context"`
}

// OutreachOutcome is the result of generate_outreach: the generation plus the
// id of the stored draft.
type OutreachOutcome struct {
	MessageID uuid.UUID `json:"message_id"`
	TicketID  uuid.UUID `json:"ticket_id"`
	model.GenerationResult
}

// BizDevAgent researches prospects and writes outreach for them.
type BizDevAgent struct {
	base
	deps BizDevDeps
}

func newBizDevAgent(b base, deps BizDevDeps) *BizDevAgent {
	if deps.LockTTL <= 0 {
		deps.LockTTL = DefaultLockTTL
	}
	if deps.Locker == nil {
		deps.Locker = locks.NewMemoryLocker()
	}
	a := &BizDevAgent{base: b, deps: deps}
	a.actions = map[string]actionFunc{
		ActionResearchProspects: a.researchProspects,
		ActionGenerateOutreach:  a.generateOutreach,
		ActionBatchGenerate:     a.batchGenerate,
	}
	return a
}

func (a *BizDevAgent) generateOutreach(ctx context.Context, raw json.RawMessage, cfg execConfig) (any, error) {
	p, err := decodeParams[GenerateParams](raw)
	if err != nil {
		return nil, err
	}
	if p.TicketID == uuid.Nil {
		return nil, &model.ValidationError{Field: "ticket_id"}
	}
	return a.generate(ctx, p.TicketID, p.MessageType, p.Context, cfg)
}

// generate runs one generation for a ticket under its lock and persists the
// outcome. The attempt is recorded as a ticket activity either way.
func (a *BizDevAgent) generate(ctx context.Context, ticketID uuid.UUID, messageType string, hints model.GenerationHints, cfg execConfig) (OutreachOutcome, error) {
	release, err := a.deps.Locker.Acquire(ctx, locks.TicketKey(ticketID.String()), a.deps.LockTTL)
	if errors.Is(err, locks.ErrHeld) {
		return OutreachOutcome{}, fmt.Errorf("ticket %s: %w", ticketID, model.ErrTicketBusy)
	}
	if err != nil {
		return OutreachOutcome{}, fmt.Errorf("lock ticket %s: %w", ticketID, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("agents: release ticket lock", "ticket_id", ticketID, "error", err)
		}
	}()

	octx, err := a.loadContext(ctx, ticketID, hints)
	if err != nil {
		return OutreachOutcome{}, err
	}

	req := outreach.Request{
		RunID:       cfg.runID,
		ProspectID:  ticketID.String(),
		MessageType: messageType,
		Context:     octx,
	}
	var result model.GenerationResult
	if cfg.stream {
		result, err = a.deps.Pipeline.Stream(ctx, req, cfg.sink)
	} else {
		result, err = a.deps.Pipeline.Generate(ctx, req, cfg.sink)
	}
	if err != nil {
		a.recordActivity(ctx, ticketID, model.ActivityOutreachFailed, "Outreach generation failed", map[string]any{
			"message_type": messageType,
			"error":        err.Error(),
		})
		return OutreachOutcome{}, err
	}

	msg, err := a.deps.Tickets.InsertMessage(ctx, model.Message{
		TicketID:    ticketID,
		SenderID:    &a.userID,
		Direction:   model.DirectionOutbound,
		Content:     result.Message,
		MessageType: result.Metadata.MessageType,
		Metadata: map[string]any{
			"status":     "draft",
			"agent_id":   a.record.ID,
			"generation": result.Metadata,
		},
	})
	if err != nil {
		a.recordActivity(ctx, ticketID, model.ActivityOutreachFailed, "Generated outreach could not be saved", map[string]any{
			"run_id": result.Metadata.RunID,
			"error":  err.Error(),
		})
		return OutreachOutcome{}, fmt.Errorf("persist outreach for ticket %s: %w", ticketID, err)
	}

	a.recordActivity(ctx, ticketID, model.ActivityOutreachGenerated, "Outreach message generated", map[string]any{
		"message_id":    msg.ID,
		"run_id":        result.Metadata.RunID,
		"message_type":  result.Metadata.MessageType,
		"overall_score": result.Metadata.Analysis.OverallScore,
	})
	if err := a.deps.Tickets.MarkTicketContacted(ctx, ticketID, msg.CreatedAt); err != nil {
		a.logger.Warn("agents: mark ticket contacted", "ticket_id", ticketID, "error", err)
	}
	a.announce(ctx, model.GeneratedNotification{
		MessageID:    msg.ID,
		TicketID:     ticketID,
		AgentID:      a.record.ID,
		RunID:        result.Metadata.RunID,
		MessageType:  result.Metadata.MessageType,
		OverallScore: result.Metadata.Analysis.OverallScore,
		CreatedAt:    msg.CreatedAt,
	})

	return OutreachOutcome{MessageID: msg.ID, TicketID: ticketID, GenerationResult: result}, nil
}

// loadContext builds the pipeline input for a ticket. A ticket whose project
// row is missing simply has no project context.
func (a *BizDevAgent) loadContext(ctx context.Context, ticketID uuid.UUID, hints model.GenerationHints) (model.OutreachContext, error) {
	ticket, err := a.deps.Tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return model.OutreachContext{}, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	interactions, err := a.deps.Tickets.LoadInteractions(ctx, ticketID)
	if err != nil {
		return model.OutreachContext{}, fmt.Errorf("load interactions for ticket %s: %w", ticketID, err)
	}

	octx := model.OutreachContext{
		Prospect:     ticket.Prospect,
		Ticket:       ticket,
		Interactions: interactions,
		Instructions: hints.Prompt,
	}
	project, err := a.deps.Tickets.GetProjectContext(ctx, ticket.ProjectID)
	switch {
	case err == nil:
		octx.ProjectContext = &project
	case errors.Is(err, storage.ErrNotFound):
	default:
		return model.OutreachContext{}, fmt.Errorf("load project %s: %w", ticket.ProjectID, err)
	}
	return octx, nil
}

func (a *BizDevAgent) announce(ctx context.Context, n model.GeneratedNotification) {
	if err := a.deps.Tickets.NotifyGenerated(ctx, n); err != nil {
		a.logger.Warn("agents: notify generated", "message_id", n.MessageID, "error", err)
	}
	if hook := a.deps.OnGenerated; hook != nil {
		hookCtx := context.WithoutCancel(ctx)
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					a.logger.Error("agents: generated hook panicked", "message_id", n.MessageID, "panic", rec)
				}
			}()
			hook(hookCtx, n)
		}()
	}
}

func (a *BizDevAgent) recordActivity(ctx context.Context, ticketID uuid.UUID, kind, description string, meta map[string]any) {
	if _, err := a.deps.Tickets.InsertActivity(context.WithoutCancel(ctx), model.Activity{
		TicketID:    ticketID,
		ActorID:     &a.userID,
		Type:        kind,
		Description: description,
		Metadata:    meta,
		CreatedAt:   a.now().UTC(),
	}); err != nil {
		a.logger.Warn("agents: record activity", "ticket_id", ticketID, "activity_type", kind, "error", err)
	}
}

func (a *BizDevAgent) batchGenerate(ctx context.Context, raw json.RawMessage, _ execConfig) (any, error) {
	p, err := decodeParams[BatchParams](raw)
	if err != nil {
		return nil, err
	}
	if p.ProjectID == uuid.Nil {
		return nil, &model.ValidationError{Field: "project_id"}
	}
	if d := p.Filters.LastContactDays; d != nil && *d < 0 {
		return nil, &model.ValidationError{Field: "filters.last_contact_days", Reason: "must not be negative"}
	}

	return a.deps.Batch.Run(ctx, p.ProjectID, p.MessageType, p.Filters, p.Context,
		func(ctx context.Context, ticketID uuid.UUID, messageType string, hints model.GenerationHints) (model.BatchItem, error) {
			out, err := a.generate(ctx, ticketID, messageType, hints, execConfig{})
			if err != nil {
				return model.BatchItem{}, err
			}
			return model.BatchItem{
				TicketID:  ticketID,
				MessageID: &out.MessageID,
				Message:   out.Message,
				Metadata:  out.Metadata,
			}, nil
		})
}
