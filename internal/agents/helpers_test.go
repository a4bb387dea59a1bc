package agents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/progress"
	"github.com/rogerHuntGauntlet/outreach/internal/service/outreach"
	"github.com/rogerHuntGauntlet/outreach/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memStore is an in-memory Store and TicketStore.
type memStore struct {
	mu sync.Mutex

	agents   map[uuid.UUID]model.Agent
	users    map[string]model.DirectoryUser
	audit    []model.AuditEntry
	auditErr error

	projects   map[uuid.UUID]model.ProjectContext
	tickets    map[uuid.UUID]model.Ticket
	messages   []model.Message
	activities []model.Activity
	summaries  []model.Summary
	sessions   map[uuid.UUID]model.ResearchSession
	notified   []model.GeneratedNotification

	createAgentCalls int
	insertMessageErr error
	updateErrFor     map[uuid.UUID]error
}

func newMemStore() *memStore {
	return &memStore{
		agents:       map[uuid.UUID]model.Agent{},
		users:        map[string]model.DirectoryUser{},
		projects:     map[uuid.UUID]model.ProjectContext{},
		tickets:      map[uuid.UUID]model.Ticket{},
		sessions:     map[uuid.UUID]model.ResearchSession{},
		updateErrFor: map[uuid.UUID]error{},
	}
}

func (s *memStore) CreateAgent(_ context.Context, a model.Agent) (model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createAgentCalls++
	for _, existing := range s.agents {
		if existing.Email == a.Email {
			return model.Agent{}, storage.ErrDuplicate
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.agents[a.ID] = a
	return a, nil
}

func (s *memStore) GetAgent(_ context.Context, id uuid.UUID) (model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return model.Agent{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *memStore) GetAgentByEmail(_ context.Context, email string) (model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if a.Email == email {
			return a, nil
		}
	}
	return model.Agent{}, storage.ErrNotFound
}

func (s *memStore) EnsureUser(_ context.Context, u model.DirectoryUser) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return false, nil
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.Email] = u
	return true, nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (model.DirectoryUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return model.DirectoryUser{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *memStore) InsertAuditEntry(_ context.Context, e model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditErr != nil {
		return s.auditErr
	}
	s.audit = append(s.audit, e)
	return nil
}

func (s *memStore) auditEntries() []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.audit...)
}

func (s *memStore) addTicket(t model.Ticket) model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.tickets[t.ID] = t
	return t
}

func (s *memStore) GetTicket(_ context.Context, id uuid.UUID) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return model.Ticket{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *memStore) GetProjectContext(_ context.Context, id uuid.UUID) (model.ProjectContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return model.ProjectContext{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *memStore) LoadInteractions(_ context.Context, ticketID uuid.UUID) (model.Interactions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var in model.Interactions
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			in.Messages = append(in.Messages, m)
		}
	}
	in.Normalize()
	return in, nil
}

func (s *memStore) ListProspectTickets(_ context.Context, projectID uuid.UUID) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Ticket
	for _, t := range s.tickets {
		if t.ProjectID == projectID && t.Category == model.CategoryProspect && t.Status == model.StatusNew {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ListTicketsForBatch(_ context.Context, projectID uuid.UUID, f model.BatchFilters) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Ticket
	for _, t := range s.tickets {
		if t.ProjectID != projectID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) UpdateTicketResearch(_ context.Context, id uuid.UUID, priority, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErrFor[id]; err != nil {
		return err
	}
	t, ok := s.tickets[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.Priority = priority
	t.Description = description
	s.tickets[id] = t
	return nil
}

func (s *memStore) MarkTicketContacted(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return storage.ErrNotFound
	}
	t.LastContactedAt = &at
	s.tickets[id] = t
	return nil
}

func (s *memStore) InsertMessage(_ context.Context, m model.Message) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertMessageErr != nil {
		return model.Message{}, s.insertMessageErr
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *memStore) InsertActivity(_ context.Context, a model.Activity) (model.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = uuid.New()
	s.activities = append(s.activities, a)
	return a, nil
}

func (s *memStore) InsertSummary(_ context.Context, sm model.Summary) (model.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sm.ID = uuid.New()
	s.summaries = append(s.summaries, sm)
	return sm, nil
}

func (s *memStore) StartResearchSession(_ context.Context, agentID, ticketID uuid.UUID) (model.ResearchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := model.ResearchSession{ID: uuid.New(), AgentID: agentID, TicketID: ticketID, Status: model.ResearchRunning}
	s.sessions[rs.ID] = rs
	return rs, nil
}

func (s *memStore) CompleteResearchSession(_ context.Context, id uuid.UUID, score float64, summary string) error {
	return s.finish(id, model.ResearchCompleted, &score, summary, "")
}

func (s *memStore) FailResearchSession(_ context.Context, id uuid.UUID, cause string) error {
	return s.finish(id, model.ResearchFailed, nil, "", cause)
}

func (s *memStore) finish(id uuid.UUID, status model.ResearchSessionStatus, score *float64, summary, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.sessions[id]
	if !ok || rs.Status != model.ResearchRunning {
		return storage.ErrNotFound
	}
	rs.Status = status
	rs.QualificationScore = score
	rs.Summary = summary
	rs.Error = cause
	s.sessions[id] = rs
	return nil
}

func (s *memStore) sessionsByStatus(status model.ResearchSessionStatus) []model.ResearchSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ResearchSession
	for _, rs := range s.sessions {
		if rs.Status == status {
			out = append(out, rs)
		}
	}
	return out
}

func (s *memStore) NotifyGenerated(_ context.Context, n model.GeneratedNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = append(s.notified, n)
	return nil
}

func (s *memStore) activitiesOfType(kind string) []model.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Activity
	for _, a := range s.activities {
		if a.Type == kind {
			out = append(out, a)
		}
	}
	return out
}

// stubResearcher returns fixed research, or fails for the listed companies.
type stubResearcher struct {
	company model.CompanyResearch
	person  model.PersonResearch
	failFor map[string]bool
}

func (r stubResearcher) AnalyzeCompany(_ context.Context, name string) (model.CompanyResearch, error) {
	if r.failFor[name] {
		return model.CompanyResearch{}, errors.New("search backend down")
	}
	return r.company, nil
}

func (r stubResearcher) AnalyzePerson(context.Context, string, string, string) (model.PersonResearch, error) {
	return r.person, nil
}

// stubPipeline returns a canned result. block, when set, holds Generate
// until it is closed.
type stubPipeline struct {
	mu       sync.Mutex
	err      error
	block    chan struct{}
	entered  chan struct{}
	requests []outreach.Request
	streamed int
}

func (p *stubPipeline) Generate(ctx context.Context, req outreach.Request, _ progress.Sink) (model.GenerationResult, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return model.GenerationResult{}, ctx.Err()
		}
	}
	if p.err != nil {
		return model.GenerationResult{}, p.err
	}
	runID := req.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	return model.GenerationResult{
		Message: "Hi " + req.Context.Prospect.Name,
		Metadata: model.GenerationMetadata{
			RunID:       runID,
			MessageType: "initial_outreach",
			Analysis:    model.Analysis{OverallScore: 0.82},
		},
	}, nil
}

func (p *stubPipeline) Stream(ctx context.Context, req outreach.Request, sink progress.Sink) (model.GenerationResult, error) {
	p.mu.Lock()
	p.streamed++
	p.mu.Unlock()
	return p.Generate(ctx, req, sink)
}

func (p *stubPipeline) lastRequest() outreach.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

func defaultResearch() stubResearcher {
	return stubResearcher{
		company: model.CompanyResearch{
			Overview:    "Acme builds rockets",
			Size:        "enterprise",
			Industry:    "technology",
			Technology:  []string{"aws", "kubernetes"},
			GrowthTrend: "up",
		},
		person: model.PersonResearch{Role: "CTO", Interests: []string{"platform engineering"}},
	}
}

type testEnv struct {
	store    *memStore
	pipeline *stubPipeline
	factory  *Factory
}

func newTestEnv(research stubResearcher) *testEnv {
	store := newMemStore()
	pipe := &stubPipeline{}
	logger := testLogger()
	f := NewFactory(store, BizDevDeps{
		Tickets:    store,
		Researcher: research,
		Pipeline:   pipe,
		Batch:      outreach.NewBatchRunner(store, 3, 0, logger),
	}, "", logger)
	return &testEnv{store: store, pipeline: pipe, factory: f}
}

func prospectTicket(projectID uuid.UUID, name, company string, created time.Time) model.Ticket {
	return model.Ticket{
		ProjectID: projectID,
		Title:     company + " expansion",
		Status:    model.StatusNew,
		Priority:  model.PriorityMedium,
		Category:  model.CategoryProspect,
		Prospect:  model.Prospect{Name: name, Company: company, Role: "CTO", Email: "x@" + company + ".test"},
		CreatedAt: created,
	}
}
