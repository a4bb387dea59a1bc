package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rogerHuntGauntlet/outreach/internal/agents"
	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/storage"
)

// AgentResolver creates and loads agents. *agents.Factory implements it.
type AgentResolver interface {
	CreateAgent(ctx context.Context, kind model.AgentKind) (agents.Agent, error)
	GetExistingAgent(ctx context.Context, id uuid.UUID) (agents.Agent, error)
}

// FeedbackRecorder stores message effectiveness scores.
type FeedbackRecorder interface {
	RecordEffectiveness(ctx context.Context, messageID uuid.UUID, score float64) (model.Message, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports the reachability of an optional backend.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	agents              AgentResolver
	feedback            FeedbackRecorder
	db                  Pinger
	examples            HealthChecker
	broker              *Broker
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	pingInterval        time.Duration
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Examples, Broker.
type HandlersDeps struct {
	Agents              AgentResolver
	Feedback            FeedbackRecorder
	DB                  Pinger
	Examples            HealthChecker
	Broker              *Broker
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	// PingInterval is the keepalive period of the notification feed.
	PingInterval time.Duration
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	if d.PingInterval <= 0 {
		d.PingInterval = 15 * time.Second
	}
	return &Handlers{
		agents:              d.Agents,
		feedback:            d.Feedback,
		db:                  d.DB,
		examples:            d.Examples,
		broker:              d.Broker,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		pingInterval:        d.PingInterval,
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Postgres  string `json:"postgres"`
	Qdrant    string `json:"qdrant,omitempty"`
	SSEBroker string `json:"sse_broker,omitempty"`
	Uptime    int64  `json:"uptime_seconds"`
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Postgres: "connected",
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	}
	httpStatus := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		resp.Postgres = "disconnected"
		resp.Status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	// Qdrant is an optional example store; losing it degrades retrieval only.
	if h.examples != nil {
		if err := h.examples.Healthy(r.Context()); err == nil {
			resp.Qdrant = "connected"
		} else {
			resp.Qdrant = "disconnected"
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		}
	}

	if h.broker != nil {
		resp.SSEBroker = "running"
	}

	writeJSON(w, r, httpStatus, resp)
}

// AgentView is the API representation of an agent.
type AgentView struct {
	model.Agent
	Actions []string `json:"actions"`
}

func viewOf(a agents.Agent) AgentView {
	actions := a.Actions()
	sort.Strings(actions)
	return AgentView{Agent: a.Record(), Actions: actions}
}

// HandleCreateAgent handles POST /v1/agents. Creating an existing kind
// returns the stored agent.
func (h *Handlers) HandleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAgentRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Kind == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "kind is required")
		return
	}

	a, err := h.agents.CreateAgent(r.Context(), req.Kind)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, viewOf(a))
}

// HandleGetAgent handles GET /v1/agents/{agent_id}.
func (h *Handlers) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, ok := h.resolveAgent(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, viewOf(a))
}

// HandleExecute handles POST /v1/agents/{agent_id}/execute.
func (h *Handlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	a, ok := h.resolveAgent(w, r)
	if !ok {
		return
	}

	var req model.ExecuteRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Action == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "action is required")
		return
	}

	result, err := a.Execute(r.Context(), req.Action, req.Params)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// HandleEffectiveness handles POST /v1/messages/{message_id}/effectiveness.
func (h *Handlers) HandleEffectiveness(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("message_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid message_id")
		return
	}

	var req model.EffectivenessRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	msg, err := h.feedback.RecordEffectiveness(r.Context(), id, req.Score)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, msg)
}

// HandleSubscribe handles GET /v1/subscribe (SSE).
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError,
			"SSE not available (LISTEN/NOTIFY not configured)")
		return
	}

	flusher, ok := startEventStream(w)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	keepalive := time.NewTicker(h.pingInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// startEventStream writes the SSE response headers. It returns false when the
// writer cannot flush, in which case nothing has been written.
func startEventStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long-lived connections must outlive the server's WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	return flusher, true
}

// resolveAgent loads the agent named by the agent_id path segment, writing
// the error response itself when that fails.
func (h *Handlers) resolveAgent(w http.ResponseWriter, r *http.Request) (agents.Agent, bool) {
	id, err := uuid.Parse(r.PathValue("agent_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid agent_id")
		return nil, false
	}
	a, err := h.agents.GetExistingAgent(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return nil, false
	}
	return a, true
}

// errorStatus maps a service error onto an HTTP status and API error code.
func errorStatus(err error) (int, string) {
	switch {
	case model.IsValidation(err),
		errors.Is(err, model.ErrInvalidAction),
		errors.Is(err, model.ErrUnsupportedKind):
		return http.StatusBadRequest, model.ErrCodeInvalidInput
	case errors.Is(err, model.ErrAccessDenied):
		return http.StatusForbidden, model.ErrCodeForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, model.ErrCodeNotFound
	case errors.Is(err, model.ErrTicketBusy):
		return http.StatusConflict, model.ErrCodeConflict
	default:
		return http.StatusInternalServerError, model.ErrCodeInternalError
	}
}

// writeServiceError writes the envelope for err. Internal errors are logged
// and their text is not exposed.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err)
		writeError(w, r, status, code, "internal error")
		return
	}
	msg := err.Error()
	if status == http.StatusNotFound {
		msg = "not found"
	}
	writeError(w, r, status, code, msg)
}
