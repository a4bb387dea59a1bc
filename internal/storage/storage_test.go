package storage_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/storage"
	"github.com/rogerHuntGauntlet/outreach/internal/testutil"
	"github.com/rogerHuntGauntlet/outreach/migrations"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()
	testDB = tc.MustNewTestDB(context.Background(), testutil.TestLogger())

	code := m.Run()

	testDB.Close(context.Background())
	tc.Terminate()
	os.Exit(code)
}

func newProject(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := testDB.CreateProject(context.Background(), uuid.Nil, model.ProjectContext{Name: "Q3 Enterprise", Description: "Platform accounts"})
	require.NoError(t, err)
	return id
}

func newTicket(t *testing.T, projectID uuid.UUID, mutate func(*model.Ticket)) model.Ticket {
	t.Helper()
	tk := model.Ticket{
		ProjectID: projectID,
		Title:     "Acme expansion",
		Category:  model.CategoryProspect,
		Prospect:  model.Prospect{Name: "Jane Doe", Company: "Acme", Role: "CTO", Email: "jane@acme.test"},
	}
	if mutate != nil {
		mutate(&tk)
	}
	created, err := testDB.CreateTicket(context.Background(), tk)
	require.NoError(t, err)
	return created
}

func TestMigrationsAreIdempotent(t *testing.T) {
	require.NoError(t, testDB.RunMigrations(context.Background(), migrations.FS))
}

func TestTicketRoundTrip(t *testing.T) {
	ctx := context.Background()
	projectID := newProject(t)
	tk := newTicket(t, projectID, func(tk *model.Ticket) { tk.Metadata = map[string]any{"source": "webinar"} })

	got, err := testDB.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.Prospect, got.Prospect)
	assert.Equal(t, model.StatusNew, got.Status)
	assert.Equal(t, model.PriorityMedium, got.Priority)
	assert.Equal(t, "webinar", got.Metadata["source"])
	assert.Nil(t, got.LastContactedAt)

	pc, err := testDB.GetProjectContext(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, "Q3 Enterprise", pc.Name)
	assert.Equal(t, "active", pc.Status)

	require.NoError(t, testDB.UpdateTicketResearch(ctx, tk.ID, model.PriorityHigh, "Qualified: 84/100"))
	got, err = testDB.GetTicket(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, "Qualified: 84/100", got.Description)

	_, err = testDB.GetTicket(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, testDB.UpdateTicketResearch(ctx, uuid.New(), "low", ""), storage.ErrNotFound)
}

func TestListProspectTickets(t *testing.T) {
	ctx := context.Background()
	projectID := newProject(t)
	base := time.Now().UTC().Add(-time.Hour)

	older := newTicket(t, projectID, func(tk *model.Ticket) { tk.CreatedAt = base })
	newer := newTicket(t, projectID, func(tk *model.Ticket) { tk.CreatedAt = base.Add(time.Minute) })
	newTicket(t, projectID, func(tk *model.Ticket) { tk.Status = "contacted" })
	newTicket(t, projectID, func(tk *model.Ticket) { tk.Category = "support" })
	newTicket(t, newProject(t), nil)

	got, err := testDB.ListProspectTickets(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, older.ID, got[0].ID)
	assert.Equal(t, newer.ID, got[1].ID)
}

func TestListTicketsForBatch(t *testing.T) {
	ctx := context.Background()
	projectID := newProject(t)
	recent := time.Now().UTC().Add(-24 * time.Hour)
	stale := time.Now().UTC().Add(-30 * 24 * time.Hour)

	never := newTicket(t, projectID, nil)
	old := newTicket(t, projectID, func(tk *model.Ticket) { tk.LastContactedAt = &stale })
	newTicket(t, projectID, func(tk *model.Ticket) { tk.LastContactedAt = &recent })
	high := newTicket(t, projectID, func(tk *model.Ticket) { tk.Priority = model.PriorityHigh; tk.LastContactedAt = &recent })

	all, err := testDB.ListTicketsForBatch(ctx, projectID, model.BatchFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	days := 7
	notRecent, err := testDB.ListTicketsForBatch(ctx, projectID, model.BatchFilters{LastContactDays: &days})
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, tk := range notRecent {
		ids = append(ids, tk.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{never.ID, old.ID}, ids)

	prio := model.PriorityHigh
	status := model.StatusNew
	byPriority, err := testDB.ListTicketsForBatch(ctx, projectID, model.BatchFilters{Priority: &prio, Status: &status})
	require.NoError(t, err)
	require.Len(t, byPriority, 1)
	assert.Equal(t, high.ID, byPriority[0].ID)

	other := "nothing"
	none, err := testDB.ListTicketsForBatch(ctx, projectID, model.BatchFilters{Category: &other})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	at := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, testDB.MarkTicketContacted(ctx, never.ID, at))
	got, err := testDB.GetTicket(ctx, never.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastContactedAt)
	assert.True(t, at.Equal(*got.LastContactedAt))
}

func TestInteractions(t *testing.T) {
	ctx := context.Background()
	tk := newTicket(t, newProject(t), nil)
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)

	empty, err := testDB.LoadInteractions(ctx, tk.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty.Messages)
	assert.NotNil(t, empty.Activities)
	assert.NotNil(t, empty.Summaries)

	sentiment := 0.8
	_, err = testDB.InsertMessage(ctx, model.Message{TicketID: tk.ID, Direction: model.DirectionInbound, Content: "sounds good", SentimentScore: &sentiment, CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = testDB.InsertMessage(ctx, model.Message{TicketID: tk.ID, Direction: model.DirectionOutbound, Content: "hello", MessageType: "initial_outreach", CreatedAt: base})
	require.NoError(t, err)
	_, err = testDB.InsertActivity(ctx, model.Activity{TicketID: tk.ID, Type: model.ActivityMeetingScheduled, Description: "Intro call", Metadata: map[string]any{"minutes": 30}})
	require.NoError(t, err)
	_, err = testDB.InsertSummary(ctx, model.Summary{TicketID: tk.ID, Content: "Warm lead"})
	require.NoError(t, err)

	in, err := testDB.LoadInteractions(ctx, tk.ID)
	require.NoError(t, err)
	require.Len(t, in.Messages, 2)
	assert.Equal(t, "hello", in.Messages[0].Content)
	assert.Equal(t, model.DirectionOutbound, in.Messages[0].Direction)
	assert.Equal(t, model.DirectionInbound, in.Messages[1].Direction)
	require.NotNil(t, in.Messages[1].SentimentScore)
	assert.InDelta(t, 0.8, *in.Messages[1].SentimentScore, 1e-9)
	require.Len(t, in.Activities, 1)
	assert.Equal(t, model.ActivityMeetingScheduled, in.Activities[0].Type)
	assert.EqualValues(t, 30, in.Activities[0].Metadata["minutes"])
	require.Len(t, in.Summaries, 1)
	assert.Equal(t, "Warm lead", in.Summaries[0].Content)
}

func TestHighScoringExamples(t *testing.T) {
	ctx := context.Background()
	tk := newTicket(t, newProject(t), nil)

	insert := func(content string, dir model.MessageDirection, score float64, vec []float32) uuid.UUID {
		m, err := testDB.InsertMessage(ctx, model.Message{TicketID: tk.ID, Direction: dir, Content: content})
		require.NoError(t, err)
		v := pgvector.NewVector(vec)
		updated, err := testDB.SetMessageEffectiveness(ctx, m.ID, score, &v)
		require.NoError(t, err)
		require.NotNil(t, updated.EffectivenessScore)
		return m.ID
	}
	best := insert("exact match", model.DirectionOutbound, 0.9, []float32{1, 0, 0})
	near := insert("near match", model.DirectionOutbound, 0.85, []float32{0.8, 0.6, 0})
	insert("far match", model.DirectionOutbound, 0.95, []float32{0, 0, 1})
	insert("low score", model.DirectionOutbound, 0.3, []float32{1, 0, 0})
	insert("inbound", model.DirectionInbound, 0.99, []float32{1, 0, 0})
	insert("other dimension", model.DirectionOutbound, 0.99, []float32{1, 0})

	got, err := testDB.HighScoringExamples(ctx, pgvector.NewVector([]float32{1, 0, 0}), 0.8, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, best, got[0].MessageID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.Equal(t, []float32{1, 0, 0}, got[0].Embedding)
	assert.Equal(t, near, got[1].MessageID)
	assert.InDelta(t, 0.8, got[1].Similarity, 1e-6)

	_, err = testDB.SetMessageEffectiveness(ctx, uuid.New(), 0.5, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetMessageEffectivenessKeepsEmbedding(t *testing.T) {
	ctx := context.Background()
	tk := newTicket(t, newProject(t), nil)
	m, err := testDB.InsertMessage(ctx, model.Message{TicketID: tk.ID, Direction: model.DirectionOutbound, Content: "keep"})
	require.NoError(t, err)

	v := pgvector.NewVector([]float32{0, 1, 0, 0})
	_, err = testDB.SetMessageEffectiveness(ctx, m.ID, 0.9, &v)
	require.NoError(t, err)
	_, err = testDB.SetMessageEffectiveness(ctx, m.ID, 0.95, nil)
	require.NoError(t, err)

	got, err := testDB.HighScoringExamples(ctx, pgvector.NewVector([]float32{0, 1, 0, 0}), 0.9, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.95, got[0].EffectivenessScore, 1e-9)
}

func TestAgentsAndDirectory(t *testing.T) {
	ctx := context.Background()
	email := "bizdev-" + uuid.NewString()[:8] + "@agents.test"

	a, err := testDB.CreateAgent(ctx, model.Agent{Name: "BizDev Agent", Role: model.AgentKindBizDev, Email: email, IsActive: true})
	require.NoError(t, err)

	_, err = testDB.CreateAgent(ctx, model.Agent{Name: "dup", Role: model.AgentKindBizDev, Email: email})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := testDB.GetAgentByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, model.AgentKindBizDev, got.Role)
	assert.True(t, got.IsActive)

	require.NoError(t, testDB.SetAgentActive(ctx, a.ID, false))
	got, err = testDB.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = testDB.GetAgent(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	user := model.DirectoryUser{ID: a.ID, Email: email, Name: a.Name, Role: "agent"}
	inserted, err := testDB.EnsureUser(ctx, user)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = testDB.EnsureUser(ctx, model.DirectoryUser{Email: email, Name: "other", Role: "agent"})
	require.NoError(t, err)
	assert.False(t, inserted)

	u, err := testDB.GetUserByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, a.ID, u.ID)
	assert.Equal(t, "BizDev Agent", u.Name)
}

func TestAuditLog(t *testing.T) {
	ctx := context.Background()
	a, err := testDB.CreateAgent(ctx, model.Agent{Name: "audited", Role: model.AgentKindBizDev, Email: uuid.NewString() + "@agents.test", IsActive: true})
	require.NoError(t, err)

	require.NoError(t, testDB.InsertAuditEntry(ctx, model.AuditEntry{AgentID: a.ID, Action: "generate_outreach", Details: map[string]any{"ticket_id": "t-1"}}))
	require.NoError(t, testDB.InsertAuditEntry(ctx, model.AuditEntry{AgentID: a.ID, Action: "research_prospects"}))

	entries, err := testDB.ListAuditEntries(ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "research_prospects", entries[0].Action)
	assert.Equal(t, "t-1", entries[1].Details["ticket_id"])
}

func TestResearchSessions(t *testing.T) {
	ctx := context.Background()
	tk := newTicket(t, newProject(t), nil)
	a, err := testDB.CreateAgent(ctx, model.Agent{Name: "researcher", Role: model.AgentKindBizDev, Email: uuid.NewString() + "@agents.test", IsActive: true})
	require.NoError(t, err)

	s, err := testDB.StartResearchSession(ctx, a.ID, tk.ID)
	require.NoError(t, err)
	require.NoError(t, testDB.CompleteResearchSession(ctx, s.ID, 72.5, "qualified"))
	assert.ErrorIs(t, testDB.FailResearchSession(ctx, s.ID, "late"), storage.ErrNotFound, "finished sessions are immutable")

	got, err := testDB.GetResearchSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ResearchCompleted, got.Status)
	require.NotNil(t, got.QualificationScore)
	assert.InDelta(t, 72.5, *got.QualificationScore, 1e-9)
	assert.NotNil(t, got.CompletedAt)

	failed, err := testDB.StartResearchSession(ctx, a.ID, tk.ID)
	require.NoError(t, err)
	require.NoError(t, testDB.FailResearchSession(ctx, failed.ID, "search quota"))
	got, err = testDB.GetResearchSession(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ResearchFailed, got.Status)
	assert.Equal(t, "search quota", got.Error)
	assert.Nil(t, got.QualificationScore)
}

func TestNotifyGenerated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, testDB.Listen(ctx, storage.ChannelOutreachGenerated))

	n := model.GeneratedNotification{MessageID: uuid.New(), TicketID: uuid.New(), MessageType: "follow_up", OverallScore: 0.8}
	require.NoError(t, testDB.NotifyGenerated(ctx, n))

	channel, payload, err := testDB.WaitForNotification(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.ChannelOutreachGenerated, channel)
	var got model.GeneratedNotification
	require.NoError(t, json.Unmarshal([]byte(payload), &got))
	assert.Equal(t, n.MessageID, got.MessageID)
	assert.Equal(t, "follow_up", got.MessageType)
}
