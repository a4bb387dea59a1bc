package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/rogerHuntGauntlet/outreach/internal/agents"
	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/progress"
	"github.com/rogerHuntGauntlet/outreach/internal/storage"
)

func (s *Server) registerTools() {
	// outreach_generate: draft one message for a ticket.
	s.mcpServer.AddTool(
		mcplib.NewTool("outreach_generate",
			mcplib.WithDescription(`Draft a personalized outreach message for one prospect ticket.

WHEN TO USE: When a single prospect needs a first touch, a follow-up or a reply.
The draft is stored on the ticket as an outbound message; nothing is sent.

WHAT YOU GET BACK:
- message: the draft text
- overall_score: quality estimate in [0,1]
- review_note: present when the draft needs a human pass

Progress notifications are sent for every pipeline step when the request carries
a progress token.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("ticket_id",
				mcplib.Description("UUID of the prospect ticket"),
				mcplib.Required(),
			),
			mcplib.WithString("message_type",
				mcplib.Description("Kind of message, e.g. initial_outreach, follow_up, meeting_request. Defaults to initial_outreach."),
			),
			mcplib.WithString("prompt",
				mcplib.Description("Optional extra instructions for the writer, e.g. 'mention the webinar'"),
			),
		),
		s.handleGenerate,
	)

	// outreach_batch: draft messages for every matching ticket of a project.
	s.mcpServer.AddTool(
		mcplib.NewTool("outreach_batch",
			mcplib.WithDescription(`Draft outreach for every prospect ticket of a project that matches the filters.

Tickets are processed in small groups with a pause between groups. A failure on one
ticket never stops the batch; failed tickets are listed with their error.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("project_id",
				mcplib.Description("UUID of the project"),
				mcplib.Required(),
			),
			mcplib.WithString("message_type",
				mcplib.Description("Kind of message for every draft. Defaults to initial_outreach."),
			),
			mcplib.WithString("status", mcplib.Description("Only tickets with this status")),
			mcplib.WithString("category", mcplib.Description("Only tickets in this category")),
			mcplib.WithString("priority", mcplib.Description("Only tickets with this priority")),
			mcplib.WithNumber("last_contact_days",
				mcplib.Description("Only tickets not contacted within this many days"),
				mcplib.Min(0),
			),
			mcplib.WithString("prompt",
				mcplib.Description("Optional extra instructions applied to every draft"),
			),
		),
		s.handleBatch,
	)

	// outreach_research: enrich and qualify prospects.
	s.mcpServer.AddTool(
		mcplib.NewTool("outreach_research",
			mcplib.WithDescription(`Research prospect companies and people, then score and prioritize their tickets.

Without ticket_id every prospect ticket of the project is researched. Research results
are saved on the ticket and used by later drafts.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("project_id",
				mcplib.Description("UUID of the project"),
				mcplib.Required(),
			),
			mcplib.WithString("ticket_id",
				mcplib.Description("Optional UUID of a single ticket to research"),
			),
		),
		s.handleResearch,
	)

	if s.feedback == nil {
		return
	}

	// outreach_feedback: record how a sent message performed.
	s.mcpServer.AddTool(
		mcplib.NewTool("outreach_feedback",
			mcplib.WithDescription(`Record how well a sent outreach message performed.

Messages scoring at or above the example threshold become examples for future drafts.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("message_id",
				mcplib.Description("UUID of the outbound message"),
				mcplib.Required(),
			),
			mcplib.WithNumber("score",
				mcplib.Description("Effectiveness between 0.0 (ignored) and 1.0 (meeting booked)"),
				mcplib.Required(),
				mcplib.Min(0),
				mcplib.Max(1),
			),
		),
		s.handleFeedback,
	)
}

func (s *Server) handleGenerate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	ticketID, err := uuid.Parse(request.GetString("ticket_id", ""))
	if err != nil {
		return errorResult("ticket_id must be a UUID"), nil
	}

	params := agents.GenerateParams{
		TicketID:    ticketID,
		MessageType: request.GetString("message_type", ""),
		Context:     model.GenerationHints{Prompt: request.GetString("prompt", "")},
	}

	var opts []agents.ExecOption
	if sink := s.progressSink(ctx, request); sink != nil {
		opts = append(opts, agents.WithProgress(sink))
	}

	out, err := s.execute(ctx, agents.ActionGenerateOutreach, params, opts...)
	if err != nil {
		return s.toolError("generate", err), nil
	}
	if o, ok := out.(agents.OutreachOutcome); ok {
		return jsonResult(compactOutcome(o))
	}
	return jsonResult(out)
}

func (s *Server) handleBatch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	projectID, err := uuid.Parse(request.GetString("project_id", ""))
	if err != nil {
		return errorResult("project_id must be a UUID"), nil
	}

	params := agents.BatchParams{
		ProjectID:   projectID,
		MessageType: request.GetString("message_type", ""),
		Filters: model.BatchFilters{
			Status:   optionalString(request, "status"),
			Category: optionalString(request, "category"),
			Priority: optionalString(request, "priority"),
		},
		Context: model.GenerationHints{Prompt: request.GetString("prompt", "")},
	}
	if days := request.GetInt("last_contact_days", -1); days >= 0 {
		params.Filters.LastContactDays = &days
	}

	out, err := s.execute(ctx, agents.ActionBatchGenerate, params)
	if err != nil {
		return s.toolError("batch", err), nil
	}
	if r, ok := out.(model.BatchGenerationResult); ok {
		return jsonResult(compactBatch(r))
	}
	return jsonResult(out)
}

func (s *Server) handleResearch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	projectID, err := uuid.Parse(request.GetString("project_id", ""))
	if err != nil {
		return errorResult("project_id must be a UUID"), nil
	}
	params := agents.ResearchParams{ProjectID: projectID}
	if raw := request.GetString("ticket_id", ""); raw != "" {
		ticketID, err := uuid.Parse(raw)
		if err != nil {
			return errorResult("ticket_id must be a UUID"), nil
		}
		params.TicketID = &ticketID
	}

	out, err := s.execute(ctx, agents.ActionResearchProspects, params)
	if err != nil {
		return s.toolError("research", err), nil
	}
	if r, ok := out.(model.ResearchReport); ok {
		return jsonResult(compactResearch(r))
	}
	return jsonResult(out)
}

func (s *Server) handleFeedback(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	messageID, err := uuid.Parse(request.GetString("message_id", ""))
	if err != nil {
		return errorResult("message_id must be a UUID"), nil
	}
	score := request.GetFloat("score", -1)

	msg, err := s.feedback.RecordEffectiveness(ctx, messageID, score)
	if err != nil {
		return s.toolError("feedback", err), nil
	}
	return jsonResult(map[string]any{
		"message_id":          msg.ID,
		"effectiveness_score": msg.EffectivenessScore,
		"status":              "recorded",
	})
}

// execute runs action as the BizDev agent with params encoded as JSON.
func (s *Server) execute(ctx context.Context, action string, params any, opts ...agents.ExecOption) (any, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	agent, err := s.bizDev(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve agent: %w", err)
	}
	return agent.Execute(ctx, action, raw, opts...)
}

// toolError turns a service error into a tool error result. Caller mistakes
// are reported verbatim; anything else is logged.
func (s *Server) toolError(tool string, err error) *mcplib.CallToolResult {
	switch {
	case model.IsValidation(err),
		errors.Is(err, model.ErrInvalidAction),
		errors.Is(err, model.ErrTicketBusy),
		errors.Is(err, model.ErrAccessDenied):
		return errorResult(err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return errorResult(fmt.Sprintf("%s: not found", tool))
	}
	s.logger.Error("mcp: tool failed", "tool", tool, "error", err)
	return errorResult(fmt.Sprintf("%s failed: %v", tool, err))
}

// progressSink relays pipeline task events as MCP progress notifications.
// It returns nil when the caller did not ask for progress.
func (s *Server) progressSink(ctx context.Context, request mcplib.CallToolRequest) progress.Sink {
	if request.Params.Meta == nil || request.Params.Meta.ProgressToken == nil {
		return nil
	}
	srv := mcpserver.ServerFromContext(ctx)
	if srv == nil {
		return nil
	}
	token := request.Params.Meta.ProgressToken

	var step atomic.Int64
	return progress.SinkFunc(func(ctx context.Context, ev progress.Event) error {
		if ev.Type != progress.EventTask || ev.Task == nil {
			return nil
		}
		n := step.Add(1)
		err := srv.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
			"progressToken": token,
			"progress":      n,
			"message":       fmt.Sprintf("%s %s", ev.Task.Name, ev.Phase),
		})
		if err != nil {
			s.logger.Debug("mcp: progress notification dropped", "error", err)
		}
		return nil
	})
}

func optionalString(request mcplib.CallToolRequest, key string) *string {
	v := request.GetString(key, "")
	if v == "" {
		return nil
	}
	return &v
}
