package outreach

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

type stubResearcher struct {
	err error
}

func (s stubResearcher) AnalyzeCompany(_ context.Context, name string) (CompanyProfile, error) {
	return CompanyProfile{Overview: name + " builds tools", Technology: []string{"go"}, Size: "medium", GrowthTrend: "up"}, s.err
}

func (s stubResearcher) AnalyzePerson(_ context.Context, name, _, _ string) (PersonProfile, error) {
	return PersonProfile{Role: "CTO", PainPoints: []string{name}, RecentJobChange: true}, s.err
}

func TestResearcherAdapter(t *testing.T) {
	a := &researcherAdapter{r: stubResearcher{}}

	c, err := a.AnalyzeCompany(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme builds tools", c.Overview)
	assert.Equal(t, []string{"go"}, c.Technology)
	assert.Equal(t, "medium", c.Size)
	assert.Equal(t, "up", c.GrowthTrend)

	p, err := a.AnalyzePerson(context.Background(), "Ada", "ada@acme.io", "Acme")
	require.NoError(t, err)
	assert.Equal(t, "CTO", p.Role)
	assert.Equal(t, []string{"Ada"}, p.PainPoints)
	assert.True(t, p.RecentJobChange)
}

func TestResearcherAdapter_Error(t *testing.T) {
	boom := errors.New("boom")
	a := &researcherAdapter{r: stubResearcher{err: boom}}

	c, err := a.AnalyzeCompany(context.Background(), "Acme")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, model.CompanyResearch{}, c)

	_, err = a.AnalyzePerson(context.Background(), "Ada", "", "")
	require.ErrorIs(t, err, boom)
}

type stubEmbedder struct {
	err error
}

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, s.err
}

func (stubEmbedder) Dimensions() int { return 2 }

func TestEmbeddingAdapter(t *testing.T) {
	a := &embeddingAdapter{p: stubEmbedder{}}
	v, err := a.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, v.Slice())
	assert.Equal(t, 2, a.Dimensions())

	a = &embeddingAdapter{p: stubEmbedder{err: errors.New("down")}}
	_, err = a.Embed(context.Background(), "hello")
	require.Error(t, err)
}

type stubGenerator struct{}

func (stubGenerator) GenerateResponse(_ context.Context, system, query string) (string, error) {
	return system + "|" + query, nil
}

func TestGeneratorAdapter(t *testing.T) {
	a := &generatorAdapter{g: stubGenerator{}}
	out, err := a.GenerateResponse(context.Background(), "sys", "q")
	require.NoError(t, err)
	assert.Equal(t, "sys|q", out)
}

type recordingHook struct {
	mu  sync.Mutex
	got []GeneratedOutreach
	err error
}

func (h *recordingHook) OnOutreachGenerated(_ context.Context, o GeneratedOutreach) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, o)
	return h.err
}

func TestGeneratedHook(t *testing.T) {
	assert.Nil(t, generatedHook(nil, slog.Default()), "no hooks, no callback")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	failing := &recordingHook{err: errors.New("crm down")}
	ok := &recordingHook{}
	hook := generatedHook([]EventHook{failing, ok}, logger)
	require.NotNil(t, hook)

	n := model.GeneratedNotification{
		MessageID:    uuid.New(),
		TicketID:     uuid.New(),
		AgentID:      uuid.New(),
		RunID:        uuid.New(),
		MessageType:  "follow_up",
		OverallScore: 0.82,
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hook(ctx, n)

	want := toPublicOutreach(n)
	require.Len(t, failing.got, 1)
	require.Len(t, ok.got, 1, "a failing hook does not stop later hooks")
	assert.Equal(t, want, ok.got[0])
	assert.Equal(t, n.MessageID, want.MessageID)
	assert.Equal(t, "follow_up", want.MessageType)
	assert.Contains(t, logs.String(), "crm down")
}

func TestMiddlewareOptionOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	o := resolvedOptions{}
	for _, fn := range []Option{WithMiddleware(mark("first")), WithMiddleware(mark("second")), WithPort(9090), WithVersion("1.2.3")} {
		fn(&o)
	}
	assert.Equal(t, 9090, o.port)
	assert.Equal(t, "1.2.3", o.version)
	require.Len(t, o.middlewares, 2)

	var h http.Handler = http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") })
	for i := len(o.middlewares) - 1; i >= 0; i-- {
		h = o.middlewares[i](h)
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestContextWithOptionalTimeout(t *testing.T) {
	ctx, cancel := contextWithOptionalTimeout(context.Background(), 0)
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	cancel()

	ctx, cancel = contextWithOptionalTimeout(context.Background(), time.Minute)
	defer cancel()
	_, hasDeadline = ctx.Deadline()
	assert.True(t, hasDeadline)
}
