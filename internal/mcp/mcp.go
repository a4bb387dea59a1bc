// Package mcp implements the Model Context Protocol server for the outreach
// service.
//
// The MCP server exposes the BizDev agent's actions as MCP tools, allowing
// MCP-compatible assistants to research prospects and draft outreach the
// same way the HTTP API does. Every tool call acts as the BizDev agent.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/rogerHuntGauntlet/outreach/internal/agents"
	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// AgentProvider resolves the agent that tool calls run as.
// *agents.Factory implements it.
type AgentProvider interface {
	CreateAgent(ctx context.Context, kind model.AgentKind) (agents.Agent, error)
}

// FeedbackRecorder stores message effectiveness scores.
type FeedbackRecorder interface {
	RecordEffectiveness(ctx context.Context, messageID uuid.UUID, score float64) (model.Message, error)
}

// Server wraps the MCP server with the outreach service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	agents    AgentProvider
	feedback  FeedbackRecorder
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools, resources and
// prompts. feedback may be nil, in which case outreach_feedback is not
// registered.
func New(provider AgentProvider, feedback FeedbackRecorder, logger *slog.Logger, version string) *Server {
	s := &Server{
		agents:   provider,
		feedback: feedback,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"outreach",
		version,
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

const serverInstructions = `Outreach drafts personalized business development messages for prospect tickets.

Research a project's prospects with outreach_research, then draft a message for one
ticket with outreach_generate or for many tickets with outreach_batch. Drafts are stored
on the ticket and never sent. Report how a sent message performed with outreach_feedback
so future drafts can learn from it.`

// bizDev resolves the BizDev agent, creating its record on first use.
func (s *Server) bizDev(ctx context.Context) (agents.Agent, error) {
	return s.agents.CreateAgent(ctx, model.AgentKindBizDev)
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
