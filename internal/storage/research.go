package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// StartResearchSession records the start of researching a ticket.
func (db *DB) StartResearchSession(ctx context.Context, agentID, ticketID uuid.UUID) (model.ResearchSession, error) {
	s := model.ResearchSession{
		ID:        uuid.New(),
		AgentID:   agentID,
		TicketID:  ticketID,
		Status:    model.ResearchRunning,
		StartedAt: time.Now().UTC(),
	}
	if _, err := db.pool.Exec(ctx,
		`INSERT INTO research_sessions (id, agent_id, ticket_id, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.AgentID, s.TicketID, string(s.Status), s.StartedAt,
	); err != nil {
		return model.ResearchSession{}, fmt.Errorf("storage: start research session: %w", err)
	}
	return s, nil
}

// CompleteResearchSession marks a running session completed.
func (db *DB) CompleteResearchSession(ctx context.Context, id uuid.UUID, score float64, summary string) error {
	return db.finishResearchSession(ctx, id, model.ResearchCompleted, &score, summary, "")
}

// FailResearchSession marks a running session failed.
func (db *DB) FailResearchSession(ctx context.Context, id uuid.UUID, cause string) error {
	return db.finishResearchSession(ctx, id, model.ResearchFailed, nil, "", cause)
}

func (db *DB) finishResearchSession(ctx context.Context, id uuid.UUID, status model.ResearchSessionStatus, score *float64, summary, cause string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE research_sessions
		 SET status = $2, qualification_score = $3, summary = $4, error = $5, completed_at = now()
		 WHERE id = $1 AND status = 'running'`,
		id, string(status), score, summary, cause,
	)
	if err != nil {
		return fmt.Errorf("storage: finish research session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetResearchSession loads one session.
func (db *DB) GetResearchSession(ctx context.Context, id uuid.UUID) (model.ResearchSession, error) {
	var (
		s      model.ResearchSession
		status string
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, agent_id, ticket_id, status, qualification_score, summary, error, started_at, completed_at
		 FROM research_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.AgentID, &s.TicketID, &status, &s.QualificationScore, &s.Summary, &s.Error, &s.StartedAt, &s.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ResearchSession{}, ErrNotFound
	}
	if err != nil {
		return model.ResearchSession{}, fmt.Errorf("storage: get research session %s: %w", id, err)
	}
	s.Status = model.ResearchSessionStatus(status)
	return s, nil
}
