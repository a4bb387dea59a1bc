package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

const ticketColumns = `id, project_id, title, description, status, priority, category, metadata,
	contact_name, contact_company, contact_role, contact_email,
	last_contacted_at, created_at, updated_at`

func scanTicket(row pgx.Row) (model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Category, &t.Metadata,
		&t.Prospect.Name, &t.Prospect.Company, &t.Prospect.Role, &t.Prospect.Email,
		&t.LastContactedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func collectTickets(rows pgx.Rows) ([]model.Ticket, error) {
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateProject inserts a project.
func (db *DB) CreateProject(ctx context.Context, id uuid.UUID, p model.ProjectContext) (uuid.UUID, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if _, err := db.pool.Exec(ctx,
		`INSERT INTO projects (id, name, description, status) VALUES ($1, $2, $3, $4)`,
		id, p.Name, p.Description, p.Status,
	); err != nil {
		return uuid.Nil, fmt.Errorf("storage: create project: %w", err)
	}
	return id, nil
}

// GetProjectContext returns the name, description and status of a project.
func (db *DB) GetProjectContext(ctx context.Context, projectID uuid.UUID) (model.ProjectContext, error) {
	var p model.ProjectContext
	err := db.pool.QueryRow(ctx,
		`SELECT name, description, status FROM projects WHERE id = $1`, projectID,
	).Scan(&p.Name, &p.Description, &p.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ProjectContext{}, ErrNotFound
	}
	if err != nil {
		return model.ProjectContext{}, fmt.Errorf("storage: get project %s: %w", projectID, err)
	}
	return p, nil
}

// CreateTicket inserts a ticket. Zero ID and timestamps are filled in.
func (db *DB) CreateTicket(ctx context.Context, t model.Ticket) (model.Ticket, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	if t.Status == "" {
		t.Status = model.StatusNew
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}

	if _, err := db.pool.Exec(ctx,
		`INSERT INTO tickets (`+ticketColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority, t.Category, t.Metadata,
		t.Prospect.Name, t.Prospect.Company, t.Prospect.Role, t.Prospect.Email,
		t.LastContactedAt, t.CreatedAt, t.UpdatedAt,
	); err != nil {
		return model.Ticket{}, fmt.Errorf("storage: create ticket: %w", err)
	}
	return t, nil
}

// GetTicket loads one ticket.
func (db *DB) GetTicket(ctx context.Context, id uuid.UUID) (model.Ticket, error) {
	t, err := scanTicket(db.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Ticket{}, ErrNotFound
	}
	if err != nil {
		return model.Ticket{}, fmt.Errorf("storage: get ticket %s: %w", id, err)
	}
	return t, nil
}

// ListProspectTickets returns the project's new prospect tickets, oldest
// first.
func (db *DB) ListProspectTickets(ctx context.Context, projectID uuid.UUID) ([]model.Ticket, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE project_id = $1 AND category = $2 AND status = $3
		 ORDER BY created_at ASC, id ASC`,
		projectID, model.CategoryProspect, model.StatusNew,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list prospect tickets: %w", err)
	}
	tickets, err := collectTickets(rows)
	if err != nil {
		return nil, fmt.Errorf("storage: scan prospect tickets: %w", err)
	}
	return tickets, nil
}

// ListTicketsForBatch returns the project's tickets matching filters, oldest
// first. LastContactDays keeps tickets never contacted or last contacted
// more than that many days ago.
func (db *DB) ListTicketsForBatch(ctx context.Context, projectID uuid.UUID, filters model.BatchFilters) ([]model.Ticket, error) {
	where := []string{"project_id = $1"}
	args := []any{projectID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filters.Status != nil {
		add("status = $%d", *filters.Status)
	}
	if filters.Category != nil {
		add("category = $%d", *filters.Category)
	}
	if filters.Priority != nil {
		add("priority = $%d", *filters.Priority)
	}
	if filters.LastContactDays != nil {
		cutoff := time.Now().UTC().AddDate(0, 0, -*filters.LastContactDays)
		add("(last_contacted_at IS NULL OR last_contacted_at < $%d)", cutoff)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list batch tickets: %w", err)
	}
	tickets, err := collectTickets(rows)
	if err != nil {
		return nil, fmt.Errorf("storage: scan batch tickets: %w", err)
	}
	return tickets, nil
}

// UpdateTicketResearch stores the qualification outcome of a research run.
func (db *DB) UpdateTicketResearch(ctx context.Context, id uuid.UUID, priority, description string) error {
	var tag pgconn.CommandTag
	err := WithRetry(ctx, DefaultMaxRetries, DefaultRetryDelay, func() error {
		var execErr error
		tag, execErr = db.pool.Exec(ctx,
			`UPDATE tickets SET priority = $2, description = $3, updated_at = now() WHERE id = $1`,
			id, priority, description)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("storage: update ticket research %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkTicketContacted sets last_contacted_at.
func (db *DB) MarkTicketContacted(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE tickets SET last_contacted_at = $2, updated_at = now() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("storage: mark ticket contacted %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
