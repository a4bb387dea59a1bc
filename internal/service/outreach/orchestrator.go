// Package outreach turns a prospect ticket into a scored, personalized
// outreach message. A run is a fixed sequence of tracked steps; each step
// carries a policy that decides whether its failure ends the run.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/progress"
	"github.com/rogerHuntGauntlet/outreach/internal/service/llm"
	"github.com/rogerHuntGauntlet/outreach/internal/telemetry"
)

// Step names as they appear in task timelines.
const (
	TaskGenerate      = "generate_outreach"
	TaskValidate      = "validate_context"
	TaskEnrich        = "enrich_context"
	TaskRelationship  = "analyze_relationship"
	TaskExamples      = "retrieve_examples"
	TaskInsights      = "generate_insights"
	TaskProbe         = "probe_connectivity"
	TaskGenerateText  = "generate_message"
	TaskAnalyze       = "analyze_message"
	TaskAssembleReply = "assemble_result"
)

var (
	stepValidate     = stepSpec{name: TaskValidate, policy: Fatal}
	stepEnrich       = stepSpec{name: TaskEnrich, policy: Fatal, kind: model.ErrEnrichment}
	stepRelationship = stepSpec{name: TaskRelationship, policy: Fatal}
	stepExamples     = stepSpec{name: TaskExamples, policy: DegradeEmpty, kind: model.ErrRetrieval}
	stepInsights     = stepSpec{name: TaskInsights, policy: Fatal, kind: model.ErrInsights}
	stepProbe        = stepSpec{name: TaskProbe, policy: DegradeDisableFeature, kind: model.ErrConnectivity}
	stepGenerate     = stepSpec{name: TaskGenerateText, policy: Fatal, kind: model.ErrGeneration}
	stepAnalyze      = stepSpec{name: TaskAnalyze, policy: Fatal, kind: model.ErrAnalysis}
	stepAssemble     = stepSpec{name: TaskAssembleReply, policy: Fatal}
)

// DefaultPingInterval is how often a streamed run sends keepalives.
const DefaultPingInterval = 15 * time.Second

// Prober checks that the tracing backend is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// Deps are the collaborators of a Service.
type Deps struct {
	Researcher Researcher
	Examples   *ExampleRetriever
	Generator  llm.Generator
	Analyzer   *MessageAnalyzer
	// Prober is optional. Without it streamed runs skip the connectivity step.
	Prober Prober
	// Mirror receives a copy of every progress event. Its failures are
	// logged and never affect a run.
	Mirror progress.Sink
	Logger *slog.Logger
}

// Config tunes a Service.
type Config struct {
	PingInterval time.Duration
	// Tracing enables per-step spans.
	Tracing bool
	Now     func() time.Time
}

// Service orchestrates generation runs.
type Service struct {
	researcher Researcher
	examples   *ExampleRetriever
	generator  llm.Generator
	analyzer   *MessageAnalyzer
	prober     Prober
	mirror     progress.Sink
	logger     *slog.Logger

	tracer       trace.Tracer
	tracing      bool
	pingInterval time.Duration
	now          func() time.Time
	metrics      *metrics
}

// NewService creates a Service.
func NewService(d Deps, cfg Config) *Service {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	tracer := trace.Tracer(noop.NewTracerProvider().Tracer(""))
	if cfg.Tracing {
		tracer = telemetry.Tracer("outreach/pipeline")
	}
	return &Service{
		researcher:   d.Researcher,
		examples:     d.Examples,
		generator:    d.Generator,
		analyzer:     d.Analyzer,
		prober:       d.Prober,
		mirror:       d.Mirror,
		logger:       d.Logger,
		tracer:       tracer,
		tracing:      cfg.Tracing,
		pingInterval: cfg.PingInterval,
		now:          cfg.Now,
		metrics:      newMetrics(),
	}
}

// Request is the input of one run.
type Request struct {
	// RunID is generated when zero.
	RunID       uuid.UUID
	ProspectID  string
	MessageType string
	Context     model.OutreachContext
}

// run is the per-run state threaded through the steps.
type run struct {
	svc     *Service
	tracker *Tracker
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Generate runs the pipeline, reporting task transitions to sink (which may
// be nil).
func (s *Service) Generate(ctx context.Context, req Request, sink progress.Sink) (model.GenerationResult, error) {
	return s.execute(ctx, req, sink, false)
}

// Stream runs the pipeline for a live consumer. In addition to task events
// the sink receives periodic pings, a terminal complete or error event, and
// the run checks tracing connectivity. If the sink stops accepting events
// the run ends with model.ErrStreamClosed.
func (s *Service) Stream(ctx context.Context, req Request, sink progress.Sink) (model.GenerationResult, error) {
	return s.execute(ctx, req, sink, true)
}

func (s *Service) execute(ctx context.Context, req Request, sink progress.Sink, streaming bool) (model.GenerationResult, error) {
	if req.RunID == uuid.Nil {
		req.RunID = uuid.New()
	}
	if req.ProspectID == "" {
		req.ProspectID = req.Context.Ticket.ID.String()
	}
	var primary progress.Sink = progress.Discard
	if sink != nil {
		primary = sink
	}
	if s.mirror != nil {
		primary = progress.NewTee(s.logger, primary, s.mirror)
	}

	r := &run{
		svc:     s,
		tracker: NewTracker(req.RunID, primary, s.now),
		tracer:  s.tracer,
		logger:  s.logger.With("run_id", req.RunID, "prospect_id", req.ProspectID),
	}

	ctx, span := s.tracer.Start(ctx, "outreach.generate", trace.WithAttributes(
		attribute.String("outreach.run_id", req.RunID.String()),
		attribute.String("outreach.message_type", req.MessageType),
		attribute.Bool("outreach.streaming", streaming),
	))
	defer span.End()

	started := s.now()
	outer := r.tracker.Start(ctx, TaskGenerate)

	stopPing := func() {}
	if streaming {
		stopPing = s.startPinger(ctx, r.tracker)
	}
	result, err := s.pipeline(ctx, r, req, streaming)
	stopPing()

	elapsed := float64(s.now().Sub(started).Milliseconds())
	if err != nil {
		r.tracker.Complete(ctx, outer, err)
		span.RecordError(err)
		s.metrics.runFinished(ctx, elapsed, "failed")
		r.logger.Error("outreach: generation failed", "error", err)
		if streaming {
			_ = r.tracker.Send(ctx, progress.Event{Type: progress.EventError, Error: err.Error()})
		}
		return model.GenerationResult{}, err
	}

	r.tracker.Complete(ctx, outer, nil)
	result.Metadata.TaskTracking = r.tracker.Summary()
	s.metrics.runFinished(ctx, elapsed, "succeeded")
	r.logger.Info("outreach: generation completed",
		"duration_ms", result.Metadata.TaskTracking.TotalDurationMS,
		"overall_score", result.Metadata.Analysis.OverallScore)

	if streaming {
		if err := r.tracker.Send(ctx, progress.Event{Type: progress.EventComplete, Result: &result}); err != nil {
			return model.GenerationResult{}, streamClosed(TaskGenerate, err)
		}
	}
	return result, nil
}

func (s *Service) pipeline(ctx context.Context, r *run, req Request, streaming bool) (model.GenerationResult, error) {
	octx := req.Context

	if _, _, err := runStep(ctx, r, stepValidate, func(context.Context) (struct{}, error) {
		return struct{}{}, octx.Validate()
	}); err != nil {
		return model.GenerationResult{}, err
	}

	research, _, err := runStep(ctx, r, stepEnrich, func(ctx context.Context) (model.ResearchData, error) {
		return Enrich(ctx, s.researcher, octx.Prospect)
	})
	if err != nil {
		return model.GenerationResult{}, err
	}
	octx.ResearchData = &research

	rel, _, err := runStep(ctx, r, stepRelationship, func(context.Context) (model.RelationshipStage, error) {
		return AnalyzeRelationship(octx.Interactions), nil
	})
	if err != nil {
		return model.GenerationResult{}, err
	}

	examples, _, err := runStep(ctx, r, stepExamples, func(ctx context.Context) ([]model.Example, error) {
		return s.examples.Retrieve(ctx, octx.Prospect)
	})
	if err != nil {
		return model.GenerationResult{}, err
	}
	if examples == nil {
		examples = []model.Example{}
	}

	insights, _, err := runStep(ctx, r, stepInsights, func(context.Context) (model.Insights, error) {
		return DeriveInsights(octx.Prospect, octx.ResearchData, rel)
	})
	if err != nil {
		return model.GenerationResult{}, err
	}

	if streaming && s.tracing && s.prober != nil {
		_, ok, err := runStep(ctx, r, stepProbe, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.prober.Probe(ctx)
		})
		if err != nil {
			return model.GenerationResult{}, err
		}
		if !ok {
			r.tracer = noop.NewTracerProvider().Tracer("")
		}
	}

	tone := SelectTone(octx)
	prompt := BuildPrompt(PromptInput{
		Context:      octx,
		MessageType:  req.MessageType,
		Relationship: rel,
		Tone:         tone,
		Insights:     insights,
		Examples:     examples,
	})
	message, _, err := runStep(ctx, r, stepGenerate, func(ctx context.Context) (string, error) {
		out, err := s.generator.GenerateResponse(ctx, generationSystem, prompt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", errors.New("model returned an empty message")
		}
		return out, nil
	})
	if err != nil {
		return model.GenerationResult{}, err
	}

	analysis, _, err := runStep(ctx, r, stepAnalyze, func(ctx context.Context) (model.Analysis, error) {
		return s.analyzer.Analyze(ctx, message, octx)
	})
	if err != nil {
		return model.GenerationResult{}, err
	}

	return assemble(ctx, r, assembleInput{
		runID:       req.RunID,
		messageType: messageTypeOr(req.MessageType),
		message:     message,
		tone:        tone,
		rel:         rel,
		factors:     ContextualFactorsFor(octx, rel),
		examples:    len(examples),
		analysis:    analysis,
		insights:    insights,
	})
}

type assembleInput struct {
	runID       uuid.UUID
	messageType string
	message     string
	tone        model.Tone
	rel         model.RelationshipStage
	factors     model.ContextualFactors
	examples    int
	analysis    model.Analysis
	insights    model.Insights
}

func assemble(ctx context.Context, r *run, in assembleInput) (model.GenerationResult, error) {
	res, _, err := runStep(ctx, r, stepAssemble, func(context.Context) (model.GenerationResult, error) {
		analysis := in.analysis
		analysis.Insights = in.insights
		return model.GenerationResult{
			Message: in.message,
			Metadata: model.GenerationMetadata{
				RunID:             in.runID,
				Timestamp:         r.svc.now().UTC(),
				MessageType:       in.messageType,
				Tone:              in.tone,
				Relationship:      in.rel,
				ContextualFactors: in.factors,
				ExamplesUsed:      in.examples,
				Analysis:          analysis,
			},
		}, nil
	})
	if err != nil {
		return model.GenerationResult{}, fmt.Errorf("assemble result: %w", err)
	}
	return res, nil
}

// startPinger sends keepalive pings until the returned stop function is
// called or the sink fails.
func (s *Service) startPinger(ctx context.Context, tr *Tracker) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := tr.Send(ctx, progress.Event{Type: progress.EventPing}); err != nil {
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}
