package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// InsertAuditEntry appends to the agent audit log. The table is append-only.
func (db *DB) InsertAuditEntry(ctx context.Context, e model.AuditEntry) error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	if _, err := db.pool.Exec(ctx,
		`INSERT INTO agent_audit_log (agent_id, action, details) VALUES ($1, $2, $3)`,
		e.AgentID, e.Action, e.Details,
	); err != nil {
		return fmt.Errorf("storage: insert audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns an agent's most recent audit entries, newest first.
func (db *DB) ListAuditEntries(ctx context.Context, agentID uuid.UUID, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, agent_id, action, details, created_at FROM agent_audit_log
		 WHERE agent_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list audit entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.AuditEntry, error) {
		var e model.AuditEntry
		err := r.Scan(&e.ID, &e.AgentID, &e.Action, &e.Details, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: scan audit entries: %w", err)
	}
	return entries, nil
}
