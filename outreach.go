// Package outreach is the public API for embedding the outreach generation
// server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := outreach.New(
//	    outreach.WithVersion(version),
//	    outreach.WithLogger(logger),
//	    outreach.WithEventHook(crmSync{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The root package imports internal/*, but internal/* never imports the root.
// Public types (CompanyProfile, GeneratedOutreach, etc.) are standalone
// structs; the conversions live in adapters.go.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/rogerHuntGauntlet/outreach/internal/agents"
	"github.com/rogerHuntGauntlet/outreach/internal/auth"
	"github.com/rogerHuntGauntlet/outreach/internal/config"
	"github.com/rogerHuntGauntlet/outreach/internal/locks"
	"github.com/rogerHuntGauntlet/outreach/internal/mcp"
	"github.com/rogerHuntGauntlet/outreach/internal/progress"
	"github.com/rogerHuntGauntlet/outreach/internal/ratelimit"
	"github.com/rogerHuntGauntlet/outreach/internal/search"
	"github.com/rogerHuntGauntlet/outreach/internal/server"
	"github.com/rogerHuntGauntlet/outreach/internal/service/embedding"
	"github.com/rogerHuntGauntlet/outreach/internal/service/feedback"
	"github.com/rogerHuntGauntlet/outreach/internal/service/llm"
	outreachsvc "github.com/rogerHuntGauntlet/outreach/internal/service/outreach"
	"github.com/rogerHuntGauntlet/outreach/internal/service/research"
	"github.com/rogerHuntGauntlet/outreach/internal/storage"
	"github.com/rogerHuntGauntlet/outreach/internal/telemetry"
	"github.com/rogerHuntGauntlet/outreach/migrations"
)

const (
	probeTimeout     = 3 * time.Second
	hookTimeout      = 10 * time.Second
	redisLimitPrefix = "outreach:ratelimit:"
	natsSubject      = "outreach.progress"
)

// App is the outreach server lifecycle. Construct with New(), run with Run().
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	broker       *server.Broker        // nil when no notify connection
	examples     *search.ExampleIndex  // nil when Qdrant is not configured
	limiter      ratelimit.Limiter
	redis        *redis.Client // nil when Redis is not configured
	nats         *nats.Conn    // nil when NATS is not configured
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// closers releases what New has acquired so far when a later step fails.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// New initialises the server. It connects to the database, runs migrations,
// wires all subsystems and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.notifyURL != "" {
		cfg.NotifyURL = o.notifyURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("outreach starting", "version", version, "port", cfg.Port)

	ctx := context.Background()
	var cleanup closers

	telCfg := telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	}
	otelShutdown, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	cleanup.add(func() { _ = otelShutdown(context.Background()) })

	db, err := storage.New(ctx, cfg.DatabaseURL, cfg.NotifyDSN(), logger)
	if err != nil {
		cleanup.run()
		return nil, fmt.Errorf("storage: %w", err)
	}
	cleanup.add(func() { db.Close(context.Background()) })

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		cleanup.run()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	for i, extraFS := range o.extraMigrations {
		if err := db.RunMigrations(ctx, extraFS); err != nil {
			cleanup.run()
			return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
		}
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration, logger)
	if err != nil {
		cleanup.run()
		return nil, fmt.Errorf("auth: %w", err)
	}

	// Language model: external override takes priority over configuration.
	var gen llm.Generator
	if o.textGenerator != nil {
		gen = llm.NewLimited(&generatorAdapter{g: o.textGenerator}, cfg.LLMRequestsPerS, cfg.LLMBurst, -1)
		logger.Info("llm: external generator")
	} else {
		gen, err = llm.New(llm.Config{
			Provider:        cfg.LLMProvider,
			Model:           cfg.LLMModel,
			OllamaURL:       cfg.OllamaURL,
			OpenAIAPIKey:    cfg.OpenAIAPIKey,
			AnthropicAPIKey: cfg.AnthropicAPIKey,
			Timeout:         cfg.LLMTimeout,
			RequestsPerSec:  cfg.LLMRequestsPerS,
			Burst:           cfg.LLMBurst,
			MaxRetries:      llm.DefaultMaxRetries,
		}, logger)
		if err != nil {
			cleanup.run()
			return nil, fmt.Errorf("llm: %w", err)
		}
	}

	var embedder embedding.Provider
	if o.embeddingProvider != nil {
		embedder = &embeddingAdapter{p: o.embeddingProvider}
	} else {
		embedder = embedding.New(embedding.Config{
			Provider:     cfg.EmbeddingProvider,
			OpenAIAPIKey: cfg.OpenAIAPIKey,
			OpenAIModel:  cfg.EmbeddingModel,
			OllamaURL:    cfg.OllamaURL,
			OllamaModel:  cfg.OllamaModel,
			Dimensions:   cfg.EmbeddingDimensions,
		}, logger)
	}

	var researcher outreachsvc.Researcher
	if o.researcher != nil {
		researcher = &researcherAdapter{r: o.researcher}
	} else if cfg.ResearchSearchURL != "" {
		researcher = research.New(research.NewHTTPSearcher(cfg.ResearchSearchURL, cfg.ResearchSearchAPIKey), gen, logger)
		logger.Info("research: web search enabled", "url", cfg.ResearchSearchURL)
	} else {
		researcher = research.New(nil, gen, logger)
		logger.Info("research: no search endpoint, model knowledge only")
	}

	// Example store: Qdrant when configured, pgvector otherwise.
	var exampleStore outreachsvc.ExampleStore = db
	var exampleIndex *search.ExampleIndex
	var feedbackIndex feedback.Index
	var examplesHealth server.HealthChecker
	if cfg.QdrantURL != "" {
		exampleIndex, err = search.NewExampleIndex(search.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dims:       uint64(cfg.EmbeddingDimensions), //nolint:gosec // validated positive in config.Validate
		}, logger)
		if err != nil {
			cleanup.run()
			return nil, fmt.Errorf("qdrant: %w", err)
		}
		cleanup.add(func() { _ = exampleIndex.Close() })
		if err := exampleIndex.EnsureCollection(ctx); err != nil {
			cleanup.run()
			return nil, fmt.Errorf("qdrant ensure collection: %w", err)
		}
		exampleStore = exampleIndex
		feedbackIndex = exampleIndex
		examplesHealth = exampleIndex
		logger.Info("qdrant: enabled", "collection", cfg.QdrantCollection)
	} else {
		logger.Info("qdrant: disabled (no QDRANT_URL), examples served by pgvector")
	}

	var prober outreachsvc.Prober
	if telCfg.Enabled() {
		prober = telemetry.NewEndpointProber(cfg.OTELEndpoint, cfg.OTELInsecure, probeTimeout)
	}

	var natsConn *nats.Conn
	var mirror progress.Sink
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name("outreach-"+version))
		if err != nil {
			cleanup.run()
			return nil, fmt.Errorf("nats: %w", err)
		}
		cleanup.add(natsConn.Close)
		mirror = progress.NewNATSMirror(natsConn, natsSubject)
		logger.Info("progress mirror: nats", "subject", natsSubject)
	} else {
		mirror = progress.LogSink{Logger: logger}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			cleanup.run()
			return nil, fmt.Errorf("redis: %w", err)
		}
		redisClient = redis.NewClient(redisOpts)
		cleanup.add(func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cleanup.run()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	pipeline := outreachsvc.NewService(outreachsvc.Deps{
		Researcher: researcher,
		Examples:   outreachsvc.NewExampleRetriever(embedder, exampleStore, cfg.ExampleLimit, cfg.ExampleMinScore, logger),
		Generator:  llm.SingleAttempt(gen),
		Analyzer:   outreachsvc.NewMessageAnalyzer(llm.NewTextAnalyzer(gen), gen, logger),
		Prober:     prober,
		Mirror:     mirror,
		Logger:     logger,
	}, outreachsvc.Config{
		PingInterval: cfg.StreamPingInterval,
		Tracing:      telCfg.Enabled(),
	})

	var locker locks.Locker
	if redisClient != nil {
		locker = locks.NewRedisLocker(redisClient, "")
		logger.Info("ticket locks: redis")
	} else {
		locker = locks.NewMemoryLocker()
		logger.Info("ticket locks: in-process")
	}

	factory := agents.NewFactory(db, agents.BizDevDeps{
		Tickets:     db,
		Researcher:  researcher,
		Pipeline:    pipeline,
		Batch:       outreachsvc.NewBatchRunner(db, cfg.BatchGroupSize, cfg.BatchGroupDelay, logger),
		Locker:      locker,
		LockTTL:     cfg.TicketLockTTL,
		OnGenerated: generatedHook(o.eventHooks, logger),
	}, cfg.AgentEmailDomain, logger)

	feedbackSvc := feedback.New(db, embedder, feedbackIndex, cfg.ExampleMinScore, logger)

	var broker *server.Broker
	if db.HasNotifyConn() {
		broker = server.NewBroker(db, logger)
	} else {
		logger.Info("SSE broker: disabled (no notify connection)")
	}

	var limiter ratelimit.Limiter
	switch {
	case cfg.RateLimitRPS <= 0:
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	case redisClient != nil:
		perMinute := int(cfg.RateLimitRPS * 60)
		limiter = ratelimit.NewRedisLimiter(redisClient, redisLimitPrefix, perMinute)
		logger.Info("rate limiting: redis (fixed window)", "per_minute", perMinute)
	default:
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	}

	mcpSrv := mcp.New(factory, feedbackSvc, logger, version)

	middlewares := make([]server.Middleware, 0, len(o.middlewares))
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, server.Middleware(mw))
	}

	srv := server.New(server.ServerConfig{
		Agents:              factory,
		Feedback:            feedbackSvc,
		DB:                  db,
		JWTMgr:              jwtMgr,
		Logger:              logger,
		Examples:            examplesHealth,
		Limiter:             limiter,
		Broker:              broker,
		MCPServer:           mcpSrv.MCPServer(),
		Middlewares:         middlewares,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		PingInterval:        cfg.StreamPingInterval,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		broker:       broker,
		examples:     exampleIndex,
		limiter:      limiter,
		redis:        redisClient,
		nats:         natsConn,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the notification broker and the HTTP server, then blocks until
// ctx is cancelled or a fatal server error occurs. On return, Shutdown has
// been called; callers should not call it again.
func (a *App) Run(ctx context.Context) error {
	if a.broker != nil {
		go a.broker.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = a.Shutdown(context.Background())
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown drains in-flight HTTP requests, then closes every connection the
// App holds.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("outreach shutting down")

	httpCtx, httpCancel := contextWithOptionalTimeout(ctx, a.cfg.ShutdownTimeout)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	httpCancel()

	_ = a.limiter.Close()
	if a.examples != nil {
		_ = a.examples.Close()
	}
	if a.nats != nil {
		if err := a.nats.Drain(); err != nil {
			a.logger.Warn("nats drain failed", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.otelShutdown(context.Background()); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
	a.db.Close(context.Background())

	a.logger.Info("outreach stopped")
	return nil
}

func contextWithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
