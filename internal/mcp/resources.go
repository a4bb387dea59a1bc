package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const agentResourceURI = "outreach://agent/biz_dev"

func (s *Server) registerResources() {
	// outreach://agent/biz_dev: the agent every tool call acts as.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			agentResourceURI,
			"BizDev Agent",
			mcplib.WithResourceDescription("The business development agent tool calls run as, with its supported actions"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAgentResource,
	)
}

func (s *Server) handleAgentResource(ctx context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	agent, err := s.bizDev(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: resolve agent: %w", err)
	}

	actions := agent.Actions()
	sort.Strings(actions)
	data, err := json.MarshalIndent(map[string]any{
		"agent":   agent.Record(),
		"actions": actions,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal agent: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      agentResourceURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
