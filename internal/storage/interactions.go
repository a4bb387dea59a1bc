package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

const messageColumns = `id, ticket_id, sender_id, direction, content, message_type,
	effectiveness_score, sentiment_score, metadata, created_at`

func scanMessage(row pgx.Row) (model.Message, error) {
	var (
		m   model.Message
		dir string
	)
	err := row.Scan(&m.ID, &m.TicketID, &m.SenderID, &dir, &m.Content, &m.MessageType,
		&m.EffectivenessScore, &m.SentimentScore, &m.Metadata, &m.CreatedAt)
	m.Direction = model.MessageDirection(dir)
	return m, err
}

// InsertMessage appends a message to a ticket's conversation.
func (db *DB) InsertMessage(ctx context.Context, m model.Message) (model.Message, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	if _, err := db.pool.Exec(ctx,
		`INSERT INTO ticket_messages (`+messageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.TicketID, m.SenderID, string(m.Direction), m.Content, m.MessageType,
		m.EffectivenessScore, m.SentimentScore, m.Metadata, m.CreatedAt,
	); err != nil {
		return model.Message{}, fmt.Errorf("storage: insert message: %w", err)
	}
	return m, nil
}

// GetMessage loads one message.
func (db *DB) GetMessage(ctx context.Context, id uuid.UUID) (model.Message, error) {
	m, err := scanMessage(db.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM ticket_messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Message{}, ErrNotFound
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("storage: get message %s: %w", id, err)
	}
	return m, nil
}

// SetMessageEffectiveness records how well a message performed and, when
// emb is non-nil, the embedding used to find it as an example later.
func (db *DB) SetMessageEffectiveness(ctx context.Context, id uuid.UUID, score float64, emb *pgvector.Vector) (model.Message, error) {
	var m model.Message
	err := WithRetry(ctx, DefaultMaxRetries, DefaultRetryDelay, func() error {
		var scanErr error
		m, scanErr = scanMessage(db.pool.QueryRow(ctx,
			`UPDATE ticket_messages
			 SET effectiveness_score = $2, embedding = COALESCE($3, embedding)
			 WHERE id = $1
			 RETURNING `+messageColumns,
			id, score, emb,
		))
		return scanErr
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Message{}, ErrNotFound
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("storage: set effectiveness %s: %w", id, err)
	}
	return m, nil
}

// HighScoringExamples returns outbound messages with an effectiveness score
// of at least minScore, nearest to query by cosine distance. Only embeddings
// with the query's dimension are compared.
func (db *DB) HighScoringExamples(ctx context.Context, query pgvector.Vector, minScore float64, limit int) ([]model.Example, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, content, effectiveness_score, embedding, 1 - (embedding <=> $1) AS similarity
		 FROM ticket_messages
		 WHERE embedding IS NOT NULL
		   AND vector_dims(embedding) = $2
		   AND direction = 'outbound'
		   AND effectiveness_score >= $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		query, len(query.Slice()), minScore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: high scoring examples: %w", err)
	}
	defer rows.Close()

	out := []model.Example{}
	for rows.Next() {
		var (
			ex  model.Example
			vec pgvector.Vector
		)
		if err := rows.Scan(&ex.MessageID, &ex.Body, &ex.EffectivenessScore, &vec, &ex.Similarity); err != nil {
			return nil, fmt.Errorf("storage: scan example: %w", err)
		}
		ex.Embedding = vec.Slice()
		out = append(out, ex)
	}
	return out, rows.Err()
}

// InsertActivity appends an activity to a ticket's timeline.
func (db *DB) InsertActivity(ctx context.Context, a model.Activity) (model.Activity, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}
	if _, err := db.pool.Exec(ctx,
		`INSERT INTO ticket_activities (id, ticket_id, actor_id, activity_type, description, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.TicketID, a.ActorID, a.Type, a.Description, a.Metadata, a.CreatedAt,
	); err != nil {
		return model.Activity{}, fmt.Errorf("storage: insert activity: %w", err)
	}
	return a, nil
}

// InsertSummary stores a digest of a ticket's history.
func (db *DB) InsertSummary(ctx context.Context, s model.Summary) (model.Summary, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if _, err := db.pool.Exec(ctx,
		`INSERT INTO ticket_summaries (id, ticket_id, summary, created_by, created_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.TicketID, s.Content, s.CreatedBy, s.CreatedAt,
	); err != nil {
		return model.Summary{}, fmt.Errorf("storage: insert summary: %w", err)
	}
	return s, nil
}

// LoadInteractions returns a ticket's messages, activities and summaries in
// chronological order. Every slice is non-nil.
func (db *DB) LoadInteractions(ctx context.Context, ticketID uuid.UUID) (model.Interactions, error) {
	in := model.Interactions{}

	rows, err := db.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM ticket_messages WHERE ticket_id = $1 ORDER BY created_at ASC, id ASC`, ticketID)
	if err != nil {
		return in, fmt.Errorf("storage: load messages: %w", err)
	}
	in.Messages, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Message, error) { return scanMessage(r) })
	if err != nil {
		return in, fmt.Errorf("storage: scan messages: %w", err)
	}

	rows, err = db.pool.Query(ctx,
		`SELECT id, ticket_id, actor_id, activity_type, description, metadata, created_at
		 FROM ticket_activities WHERE ticket_id = $1 ORDER BY created_at ASC, id ASC`, ticketID)
	if err != nil {
		return in, fmt.Errorf("storage: load activities: %w", err)
	}
	in.Activities, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Activity, error) {
		var a model.Activity
		err := r.Scan(&a.ID, &a.TicketID, &a.ActorID, &a.Type, &a.Description, &a.Metadata, &a.CreatedAt)
		return a, err
	})
	if err != nil {
		return in, fmt.Errorf("storage: scan activities: %w", err)
	}

	rows, err = db.pool.Query(ctx,
		`SELECT id, ticket_id, summary, created_by, created_at
		 FROM ticket_summaries WHERE ticket_id = $1 ORDER BY created_at ASC, id ASC`, ticketID)
	if err != nil {
		return in, fmt.Errorf("storage: load summaries: %w", err)
	}
	in.Summaries, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Summary, error) {
		var s model.Summary
		err := r.Scan(&s.ID, &s.TicketID, &s.Content, &s.CreatedBy, &s.CreatedAt)
		return s, err
	})
	if err != nil {
		return in, fmt.Errorf("storage: scan summaries: %w", err)
	}

	in.Normalize()
	return in, nil
}
