package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/storage"
)

// DefaultEmailDomain is used for agent identities when none is configured.
const DefaultEmailDomain = "agents.outreach.local"

// createLookupTimeout bounds the shared find-or-create of an agent record.
const createLookupTimeout = 10 * time.Second

// directoryRole is the user-directory role agents are mirrored with.
const directoryRole = "agent"

// Directory stores agent records and the user identities they act as.
type Directory interface {
	CreateAgent(ctx context.Context, a model.Agent) (model.Agent, error)
	GetAgent(ctx context.Context, id uuid.UUID) (model.Agent, error)
	GetAgentByEmail(ctx context.Context, email string) (model.Agent, error)
	EnsureUser(ctx context.Context, u model.DirectoryUser) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (model.DirectoryUser, error)
}

// Store is everything the factory itself needs.
type Store interface {
	Directory
	AuditLog
}

// Factory builds live agents from stored records. It holds no state besides
// its collaborators and is safe for concurrent use.
type Factory struct {
	store       Store
	bizdev      BizDevDeps
	emailDomain string
	logger      *slog.Logger
	now         func() time.Time

	createGroup singleflight.Group
}

// NewFactory creates a Factory. bizdev supplies the collaborators of every
// BizDev agent it builds.
func NewFactory(store Store, bizdev BizDevDeps, emailDomain string, logger *slog.Logger) *Factory {
	if emailDomain == "" {
		emailDomain = DefaultEmailDomain
	}
	return &Factory{
		store:       store,
		bizdev:      bizdev,
		emailDomain: emailDomain,
		logger:      logger,
		now:         time.Now,
	}
}

// AgentEmail is the identity address of the agent of kind k.
func AgentEmail(k model.AgentKind, domain string) string {
	return strings.ReplaceAll(string(k), "_", "-") + "-agent@" + domain
}

func displayName(k model.AgentKind) string {
	switch k {
	case model.AgentKindBizDev:
		return "Business Development Agent"
	default:
		return string(k) + " agent"
	}
}

// CreateAgent returns the agent of kind k, creating its record on first use.
// Concurrent calls for the same kind share one lookup.
func (f *Factory) CreateAgent(ctx context.Context, k model.AgentKind) (Agent, error) {
	if !k.Valid() {
		return nil, &model.UnsupportedAgentTypeError{Kind: k}
	}
	// The shared lookup outlives any single caller so that one cancelled
	// request does not fail the others waiting on it.
	ch := f.createGroup.DoChan(string(k), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), createLookupTimeout)
		defer cancel()
		return f.findOrCreate(lookupCtx, k)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return f.build(ctx, res.Val.(model.Agent))
	}
}

func (f *Factory) findOrCreate(ctx context.Context, k model.AgentKind) (model.Agent, error) {
	email := AgentEmail(k, f.emailDomain)
	rec, err := f.store.GetAgentByEmail(ctx, email)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.Agent{}, fmt.Errorf("agents: look up %s agent: %w", k, err)
	}

	rec, err = f.store.CreateAgent(ctx, model.Agent{
		Name:      displayName(k),
		Role:      k,
		Email:     email,
		IsActive:  true,
		CreatedAt: f.now().UTC(),
	})
	if errors.Is(err, storage.ErrDuplicate) {
		// Another instance created it first.
		rec, err = f.store.GetAgentByEmail(ctx, email)
	}
	if err != nil {
		return model.Agent{}, fmt.Errorf("agents: create %s agent: %w", k, err)
	}
	f.logger.Info("agents: created agent", "agent_id", rec.ID, "kind", k)
	return rec, nil
}

// GetExistingAgent loads a stored agent and builds the implementation for
// its kind.
func (f *Factory) GetExistingAgent(ctx context.Context, id uuid.UUID) (Agent, error) {
	rec, err := f.store.GetAgent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("agents: load agent %s: %w", id, err)
	}
	return f.build(ctx, rec)
}

// BizDev returns the BizDev agent, creating it on first use.
func (f *Factory) BizDev(ctx context.Context) (*BizDevAgent, error) {
	a, err := f.CreateAgent(ctx, model.AgentKindBizDev)
	if err != nil {
		return nil, err
	}
	return a.(*BizDevAgent), nil
}

// build mirrors the record into the user directory and constructs the agent
// for its kind. Every kind in model.AgentKinds has a case here.
func (f *Factory) build(ctx context.Context, rec model.Agent) (Agent, error) {
	userID, err := f.mirror(ctx, rec)
	if err != nil {
		return nil, err
	}
	b := base{
		record: rec,
		userID: userID,
		audit:  f.store,
		logger: f.logger.With("agent_id", rec.ID, "agent_kind", rec.Role),
		now:    f.now,
	}

	switch rec.Role {
	case model.AgentKindBizDev:
		return newBizDevAgent(b, f.bizdev), nil
	default:
		return nil, &model.UnsupportedAgentTypeError{Kind: rec.Role}
	}
}

// mirror makes sure the agent exists in the user directory and returns the
// directory id.
func (f *Factory) mirror(ctx context.Context, rec model.Agent) (uuid.UUID, error) {
	inserted, err := f.store.EnsureUser(ctx, model.DirectoryUser{
		Email: rec.Email,
		Name:  rec.Name,
		Role:  directoryRole,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("agents: mirror agent %s: %w", rec.ID, err)
	}
	if inserted {
		f.logger.Info("agents: mirrored agent into user directory", "agent_id", rec.ID, "email", rec.Email)
	}
	u, err := f.store.GetUserByEmail(ctx, rec.Email)
	if err != nil {
		return uuid.Nil, fmt.Errorf("agents: load directory user for agent %s: %w", rec.ID, err)
	}
	return u.ID, nil
}
