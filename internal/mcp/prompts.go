package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// draft-outreach: walks the assistant through research, draft and review.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("draft-outreach",
			mcplib.WithPromptDescription("Research a prospect ticket, draft a message for it and review the draft"),
			mcplib.WithArgument("project_id",
				mcplib.ArgumentDescription("UUID of the project the ticket belongs to"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("ticket_id",
				mcplib.ArgumentDescription("UUID of the prospect ticket"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("message_type",
				mcplib.ArgumentDescription("Kind of message, e.g. initial_outreach or follow_up"),
			),
		),
		s.handleDraftOutreachPrompt,
	)

	// record-outcome: reminds the assistant to report how a message performed.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("record-outcome",
			mcplib.WithPromptDescription("Report how a sent outreach message performed"),
			mcplib.WithArgument("message_id",
				mcplib.ArgumentDescription("UUID of the sent message"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleRecordOutcomePrompt,
	)
}

func (s *Server) handleDraftOutreachPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	projectID := request.Params.Arguments["project_id"]
	ticketID := request.Params.Arguments["ticket_id"]
	if projectID == "" || ticketID == "" {
		return nil, fmt.Errorf("project_id and ticket_id arguments are required")
	}
	messageType := request.Params.Arguments["message_type"]
	if messageType == "" {
		messageType = "initial_outreach"
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Draft a %s message for ticket %s", messageType, ticketID),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Draft a %[3]s message for prospect ticket %[2]s.

1. CALL outreach_research with project_id="%[1]s" and ticket_id="%[2]s" so the
   draft can reference the prospect's company and role.

2. CALL outreach_generate with ticket_id="%[2]s" and message_type="%[3]s".

3. REVIEW the result:
   - If review_note is present, address it. Regenerate with a prompt when the
     note asks for it.
   - If overall_score is below 0.7, explain what the improvements list suggests.

4. SHOW the final draft to the user. Do not claim it was sent.`, projectID, ticketID, messageType),
				},
			},
		},
	}, nil
}

func (s *Server) handleRecordOutcomePrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	messageID := request.Params.Arguments["message_id"]
	if messageID == "" {
		return nil, fmt.Errorf("message_id argument is required")
	}

	return &mcplib.GetPromptResult{
		Description: "Record how a sent message performed",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Ask the user how the prospect responded to message %s, then
CALL outreach_feedback with message_id="%s" and a score:

- 1.0: meeting booked
- 0.8: positive reply
- 0.5: neutral reply or link clicks
- 0.2: opened, no reply
- 0.0: ignored or negative reply`, messageID, messageID),
				},
			},
		},
	}, nil
}
