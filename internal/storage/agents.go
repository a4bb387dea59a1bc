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

// ErrDuplicate is returned when a unique key is already taken.
var ErrDuplicate = errors.New("storage: duplicate")

const agentColumns = `id, name, role, email, is_active, created_at`

func scanAgent(row pgx.Row) (model.Agent, error) {
	var (
		a    model.Agent
		role string
	)
	err := row.Scan(&a.ID, &a.Name, &role, &a.Email, &a.IsActive, &a.CreatedAt)
	a.Role = model.AgentKind(role)
	return a, err
}

// CreateAgent inserts an agent record. It returns ErrDuplicate when the
// email is already registered.
func (db *DB) CreateAgent(ctx context.Context, a model.Agent) (model.Agent, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO agents (`+agentColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Name, string(a.Role), a.Email, a.IsActive, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.Agent{}, ErrDuplicate
	}
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: create agent: %w", err)
	}
	return a, nil
}

// GetAgent loads an agent by id.
func (db *DB) GetAgent(ctx context.Context, id uuid.UUID) (model.Agent, error) {
	a, err := scanAgent(db.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Agent{}, ErrNotFound
	}
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: get agent %s: %w", id, err)
	}
	return a, nil
}

// GetAgentByEmail loads an agent by its unique email.
func (db *DB) GetAgentByEmail(ctx context.Context, email string) (model.Agent, error) {
	a, err := scanAgent(db.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Agent{}, ErrNotFound
	}
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: get agent by email: %w", err)
	}
	return a, nil
}

// SetAgentActive toggles the access gate of an agent.
func (db *DB) SetAgentActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := db.pool.Exec(ctx, `UPDATE agents SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("storage: set agent active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureUser mirrors u into the user directory unless a user with the same
// email exists. It reports whether a row was inserted.
func (db *DB) EnsureUser(ctx context.Context, u model.DirectoryUser) (bool, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, role) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO NOTHING`,
		u.ID, u.Email, u.Name, u.Role,
	)
	if err != nil {
		return false, fmt.Errorf("storage: ensure user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetUserByEmail loads a directory user.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (model.DirectoryUser, error) {
	var u model.DirectoryUser
	err := db.pool.QueryRow(ctx, `SELECT id, email, name, role FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DirectoryUser{}, ErrNotFound
	}
	if err != nil {
		return model.DirectoryUser{}, fmt.Errorf("storage: get user: %w", err)
	}
	return u, nil
}
