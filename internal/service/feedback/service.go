// Package feedback records how well sent messages performed.
//
// Recording a score also embeds the message body so the message can be found
// later as an example for similar prospects. When an example index is
// configured, messages at or above the example threshold are mirrored into it
// and messages that fall below it are removed.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/service/embedding"
	"github.com/rogerHuntGauntlet/outreach/internal/telemetry"
)

// Store is the persistence the service needs.
type Store interface {
	GetMessage(ctx context.Context, id uuid.UUID) (model.Message, error)
	SetMessageEffectiveness(ctx context.Context, id uuid.UUID, score float64, emb *pgvector.Vector) (model.Message, error)
}

// Index is an optional secondary example store.
type Index interface {
	Upsert(ctx context.Context, msg model.Message, embedding []float32) error
	Delete(ctx context.Context, ids ...uuid.UUID) error
}

// Service records effectiveness scores.
type Service struct {
	store     Store
	embedder  embedding.Provider
	index     Index
	threshold float64
	logger    *slog.Logger

	embeddingDuration metric.Float64Histogram
}

// New creates a Service. index may be nil when Qdrant is not configured.
func New(store Store, embedder embedding.Provider, index Index, threshold float64, logger *slog.Logger) *Service {
	meter := telemetry.Meter("outreach/feedback")
	embDur, _ := meter.Float64Histogram("outreach.embedding.duration",
		metric.WithDescription("Time to embed a scored message (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{
		store:             store,
		embedder:          embedder,
		index:             index,
		threshold:         threshold,
		logger:            logger,
		embeddingDuration: embDur,
	}
}

// RecordEffectiveness stores score for an outbound message and refreshes its
// embedding. Embedding failures are logged and the score is stored without a
// vector; index failures are logged and never fail the call.
func (s *Service) RecordEffectiveness(ctx context.Context, messageID uuid.UUID, score float64) (model.Message, error) {
	if score < 0 || score > 1 {
		return model.Message{}, &model.ValidationError{Field: "score", Reason: "must be within [0,1]"}
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("outreach.message_id", messageID.String()),
		attribute.Float64("outreach.effectiveness_score", score),
	)

	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return model.Message{}, err
	}
	if msg.Direction != model.DirectionOutbound {
		return model.Message{}, &model.ValidationError{Field: "message", Reason: "must be an outbound message"}
	}

	emb := s.embed(ctx, msg)

	updated, err := s.store.SetMessageEffectiveness(ctx, messageID, score, emb)
	if err != nil {
		return model.Message{}, fmt.Errorf("feedback: %w", err)
	}

	s.syncIndex(ctx, updated, emb)
	return updated, nil
}

func (s *Service) embed(ctx context.Context, msg model.Message) *pgvector.Vector {
	start := time.Now()
	emb, err := s.embedder.Embed(ctx, msg.Content)
	s.embeddingDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.logger.Warn("feedback: embedding failed, storing score without vector",
			"message_id", msg.ID, "error", err)
		return nil
	}
	if isZeroVector(emb) {
		// The noop provider; a zero vector would match everything equally.
		return nil
	}
	if want := s.embedder.Dimensions(); want > 0 && len(emb.Slice()) != want {
		s.logger.Warn("feedback: embedding has unexpected dimensions, storing score without vector",
			"message_id", msg.ID, "got", len(emb.Slice()), "want", want)
		return nil
	}
	return &emb
}

func (s *Service) syncIndex(ctx context.Context, msg model.Message, emb *pgvector.Vector) {
	if s.index == nil {
		return
	}
	if emb != nil && msg.EffectivenessScore != nil && *msg.EffectivenessScore >= s.threshold {
		if err := s.index.Upsert(ctx, msg, emb.Slice()); err != nil {
			s.logger.Warn("feedback: example index upsert failed", "message_id", msg.ID, "error", err)
		}
		return
	}
	if err := s.index.Delete(ctx, msg.ID); err != nil {
		s.logger.Warn("feedback: example index delete failed", "message_id", msg.ID, "error", err)
	}
}

// isZeroVector reports whether every component of v is zero.
func isZeroVector(v pgvector.Vector) bool {
	for _, x := range v.Slice() {
		if x != 0 {
			return false
		}
	}
	return true
}
