// Package search keeps an optional Qdrant index of outbound messages that
// scored well, used as an alternative example store for the generation pipeline.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// Payload field names.
const (
	fieldTicketID      = "ticket_id"
	fieldBody          = "body"
	fieldEffectiveness = "effectiveness_score"
	fieldIndexedAt     = "indexed_at_unix"
)

// QdrantConfig holds configuration for connecting to Qdrant.
type QdrantConfig struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
	Dims       uint64
}

// ExampleIndex stores effective messages in a Qdrant collection keyed by
// message ID.
type ExampleIndex struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	logger     *slog.Logger

	healthGroup singleflight.Group
	healthErr   atomic.Value // stores *error
	healthAt    atomic.Int64 // unix nanos of last check
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("search: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("search: invalid port in qdrant URL: %q", portStr)
		}
		// The REST port maps to the gRPC port.
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewExampleIndex connects to Qdrant over gRPC. The connection is lazy, so an
// unreachable server surfaces on the first call rather than here.
func NewExampleIndex(cfg QdrantConfig, logger *slog.Logger) (*ExampleIndex, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("search: qdrant collection name is required")
	}
	if cfg.Dims == 0 {
		return nil, fmt.Errorf("search: qdrant vector dimensions must be positive")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("search: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &ExampleIndex{
		client:     client,
		collection: cfg.Collection,
		dims:       cfg.Dims,
		logger:     logger,
	}, nil
}

// EnsureCollection creates the collection if it doesn't already exist and
// ensures the payload indexes are present. CreateFieldIndex is idempotent, so
// indexes added later are backfilled on restart.
func (q *ExampleIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("search: check collection exists: %w", err)
	}

	if !exists {
		m := uint64(16)
		efConstruct := uint64(128)

		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     q.dims,
				Distance: qdrant.Distance_Cosine,
				HnswConfig: &qdrant.HnswConfigDiff{
					M:           &m,
					EfConstruct: &efConstruct,
				},
			}),
		}); err != nil {
			return fmt.Errorf("search: create collection %q: %w", q.collection, err)
		}
		q.logger.Info("qdrant: created collection", "collection", q.collection, "dims", q.dims)
	}

	keywordType := qdrant.FieldType_FieldTypeKeyword
	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      fieldTicketID,
		FieldType:      &keywordType,
	}); err != nil {
		return fmt.Errorf("search: ensure index on %q: %w", fieldTicketID, err)
	}

	floatType := qdrant.FieldType_FieldTypeFloat
	for _, field := range []string{fieldEffectiveness, fieldIndexedAt} {
		if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      &floatType,
		}); err != nil {
			return fmt.Errorf("search: ensure index on %q: %w", field, err)
		}
	}

	q.logger.Info("qdrant: payload indexes ensured", "collection", q.collection)
	return nil
}

// HighScoringExamples returns indexed messages with an effectiveness score of
// at least minScore, nearest to query first. Similarity is Qdrant's cosine score.
func (q *ExampleIndex) HighScoringExamples(ctx context.Context, query pgvector.Vector, minScore float64, limit int) ([]model.Example, error) {
	if limit <= 0 {
		return []model.Example{}, nil
	}
	vec := query.Slice()
	if uint64(len(vec)) != q.dims {
		return nil, fmt.Errorf("search: query has %d dimensions, collection expects %d", len(vec), q.dims)
	}

	fetchLimit := uint64(limit) //nolint:gosec // limit checked positive above
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Filter:         &qdrant.Filter{Must: exampleConditions(minScore)},
		Limit:          &fetchLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search: qdrant query: %w", err)
	}

	examples := make([]model.Example, 0, len(scored))
	for _, sp := range scored {
		ex, ok := exampleFromPoint(sp)
		if !ok {
			q.logger.Warn("qdrant: skipping malformed example point", "id", sp.GetId().GetUuid())
			continue
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

func exampleConditions(minScore float64) []*qdrant.Condition {
	return []*qdrant.Condition{
		qdrant.NewRange(fieldEffectiveness, &qdrant.Range{Gte: qdrant.PtrOf(minScore)}),
	}
}

// exampleFromPoint converts a scored point back into an Example. Points
// without a UUID id or body are rejected.
func exampleFromPoint(sp *qdrant.ScoredPoint) (model.Example, bool) {
	id, err := uuid.Parse(sp.GetId().GetUuid())
	if err != nil {
		return model.Example{}, false
	}
	payload := sp.GetPayload()
	body := payload[fieldBody].GetStringValue()
	if body == "" {
		return model.Example{}, false
	}
	return model.Example{
		MessageID:          id,
		Body:               body,
		EffectivenessScore: payload[fieldEffectiveness].GetDoubleValue(),
		Similarity:         float64(sp.GetScore()),
	}, true
}

// messagePayload is the payload stored alongside a message vector.
func messagePayload(msg model.Message, at time.Time) (map[string]any, error) {
	if msg.EffectivenessScore == nil {
		return nil, fmt.Errorf("search: message %s has no effectiveness score", msg.ID)
	}
	return map[string]any{
		fieldTicketID:      msg.TicketID.String(),
		fieldBody:          msg.Content,
		fieldEffectiveness: *msg.EffectivenessScore,
		fieldIndexedAt:     float64(at.Unix()),
	}, nil
}

// Upsert indexes a scored message under its own ID.
func (q *ExampleIndex) Upsert(ctx context.Context, msg model.Message, embedding []float32) error {
	if uint64(len(embedding)) != q.dims {
		return fmt.Errorf("search: embedding has %d dimensions, collection expects %d", len(embedding), q.dims)
	}
	payload, err := messagePayload(msg, time.Now())
	if err != nil {
		return err
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(msg.ID.String()),
			Vectors: qdrant.NewVectorsDense(embedding),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return fmt.Errorf("search: qdrant upsert message %s: %w", msg.ID, err)
	}
	return nil
}

// Delete removes messages from the index. Used when a message's score drops
// below the example threshold.
func (q *ExampleIndex) Delete(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id.String())
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("search: qdrant delete %d points: %w", len(ids), err)
	}
	return nil
}

// Healthy returns nil if Qdrant is reachable. Results are cached for 5 seconds
// and concurrent checks share one gRPC call.
func (q *ExampleIndex) Healthy(ctx context.Context) error {
	if time.Since(time.Unix(0, q.healthAt.Load())) < 5*time.Second {
		return q.loadHealthErr()
	}

	// singleflight hands the first caller's context to every waiter, so the
	// check runs on its own.
	result, _, _ := q.healthGroup.Do("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if _, err := q.client.HealthCheck(checkCtx); err != nil {
			q.storeHealthErr(fmt.Errorf("search: qdrant unhealthy: %w", err))
		} else {
			q.storeHealthErr(nil)
		}
		q.healthAt.Store(time.Now().UnixNano())
		return q.loadHealthErr(), nil
	})
	if result == nil {
		return nil
	}
	return result.(error)
}

func (q *ExampleIndex) storeHealthErr(err error) {
	q.healthErr.Store(&err)
}

func (q *ExampleIndex) loadHealthErr() error {
	v := q.healthErr.Load()
	if v == nil {
		return nil
	}
	return *v.(*error)
}

// Close shuts down the gRPC connection.
func (q *ExampleIndex) Close() error {
	return q.client.Close()
}
