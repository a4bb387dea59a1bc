package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

const requestTimeout = 10 * time.Minute

// client is a thin wrapper over the server's JSON envelope API.
type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// apiError is a non-2xx response decoded from the error envelope.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// do sends body as JSON and decodes the data field of the response into out.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var env model.APIError
		if json.Unmarshal(raw, &env) == nil && env.Error.Code != "" {
			return &apiError{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
		}
		return &apiError{Status: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// agentView mirrors the server's agent representation.
type agentView struct {
	model.Agent
	Actions []string `json:"actions"`
}

func (c *client) health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

func (c *client) createAgent(ctx context.Context, kind model.AgentKind) (agentView, error) {
	var out agentView
	err := c.do(ctx, http.MethodPost, "/v1/agents", model.CreateAgentRequest{Kind: kind}, &out)
	return out, err
}

func (c *client) getAgent(ctx context.Context, id uuid.UUID) (agentView, error) {
	var out agentView
	err := c.do(ctx, http.MethodGet, "/v1/agents/"+id.String(), nil, &out)
	return out, err
}

func (c *client) execute(ctx context.Context, agentID uuid.UUID, action string, params, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	req := model.ExecuteRequest{Action: action, Params: raw}
	return c.do(ctx, http.MethodPost, "/v1/agents/"+agentID.String()+"/execute", req, out)
}

func (c *client) recordEffectiveness(ctx context.Context, messageID uuid.UUID, score float64) (model.Message, error) {
	var out model.Message
	err := c.do(ctx, http.MethodPost, "/v1/messages/"+messageID.String()+"/effectiveness",
		model.EffectivenessRequest{Score: score}, &out)
	return out, err
}

// resolveAgent returns the agent id from --agent, or creates (or fetches)
// the biz_dev agent.
func (c *client) resolveAgent(ctx context.Context, flag string) (uuid.UUID, error) {
	if flag != "" {
		id, err := uuid.Parse(flag)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid --agent %q: %w", flag, err)
		}
		return id, nil
	}
	a, err := c.createAgent(ctx, model.AgentKindBizDev)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve biz_dev agent: %w", err)
	}
	return a.ID, nil
}
