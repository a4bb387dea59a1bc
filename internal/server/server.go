package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/rogerHuntGauntlet/outreach/internal/auth"
	"github.com/rogerHuntGauntlet/outreach/internal/ratelimit"
)

// Middleware wraps the fully assembled API handler. Registered middleware
// runs inside request ID and security headers and outside tracing.
type Middleware func(http.Handler) http.Handler

// Server is the outreach HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Examples, Limiter, Broker, MCPServer, Middlewares.
type ServerConfig struct {
	// Required dependencies.
	Agents   AgentResolver
	Feedback FeedbackRecorder
	DB       Pinger
	JWTMgr   *auth.JWTManager
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Examples    HealthChecker
	Limiter     ratelimit.Limiter
	Broker      *Broker
	MCPServer   *mcpserver.MCPServer
	Middlewares []Middleware

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	PingInterval        time.Duration
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Agents:              cfg.Agents,
		Feedback:            cfg.Feedback,
		DB:                  cfg.DB,
		Examples:            cfg.Examples,
		Broker:              cfg.Broker,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		PingInterval:        cfg.PingInterval,
	})

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	limited := ratelimit.Middleware(cfg.Limiter, subjectKeyFunc, reqIDFunc, cfg.Logger)

	adminOnly := requireRole(auth.RoleAdmin)
	operator := requireRole(auth.RoleAdmin, auth.RoleOperator)

	mux := http.NewServeMux()

	// Agent management.
	mux.Handle("POST /v1/agents", limited(adminOnly(http.HandlerFunc(h.HandleCreateAgent))))
	mux.Handle("GET /v1/agents/{agent_id}", operator(http.HandlerFunc(h.HandleGetAgent)))

	// Agent actions.
	mux.Handle("POST /v1/agents/{agent_id}/execute", limited(operator(http.HandlerFunc(h.HandleExecute))))
	mux.Handle("GET /v1/agents/{agent_id}/outreach/stream", limited(operator(http.HandlerFunc(h.HandleOutreachStream))))

	// Feedback on sent messages.
	mux.Handle("POST /v1/messages/{message_id}/effectiveness", limited(operator(http.HandlerFunc(h.HandleEffectiveness))))

	// Notification feed (long-lived, not rate limited).
	mux.Handle("GET /v1/subscribe", operator(http.HandlerFunc(h.HandleSubscribe)))

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", limited(operator(mcpHTTP)))
	}

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → custom → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// subjectKeyFunc keys rate limits by the authenticated subject.
func subjectKeyFunc(r *http.Request) string {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	return "subject:" + claims.Subject
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
