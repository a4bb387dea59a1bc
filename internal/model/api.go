package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// CreateAgentRequest is the request body for POST /v1/agents.
type CreateAgentRequest struct {
	Kind AgentKind `json:"kind"`
}

// ExecuteRequest is the request body for POST /v1/agents/{id}/execute.
type ExecuteRequest struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// EffectivenessRequest is the request body for POST /v1/messages/{id}/effectiveness.
type EffectivenessRequest struct {
	Score float64 `json:"score"`
}

// GeneratedNotification is the payload published on the outreach_generated
// channel after a generated message has been persisted.
type GeneratedNotification struct {
	MessageID    uuid.UUID `json:"message_id"`
	TicketID     uuid.UUID `json:"ticket_id"`
	AgentID      uuid.UUID `json:"agent_id"`
	RunID        uuid.UUID `json:"run_id"`
	MessageType  string    `json:"message_type"`
	OverallScore float64   `json:"overall_score"`
	CreatedAt    time.Time `json:"created_at"`
}
