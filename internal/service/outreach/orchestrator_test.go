package outreach

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/progress"
	"github.com/rogerHuntGauntlet/outreach/internal/service/embedding"
)

const janeMessage = "Hi Jane. Acme's platform team could cut release time in half. Worth a short call next week?"

type serviceOpts struct {
	gen      *fakeGenerator
	research *fakeResearcher
	store    ExampleStore
	embedder embedding.Provider
	prober   Prober
	tracing  bool
	ping     time.Duration
	mirror   progress.Sink
}

func newTestService(o serviceOpts) *Service {
	if o.gen == nil {
		o.gen = &fakeGenerator{message: janeMessage, scoring: validScoring}
	}
	if o.research == nil {
		o.research = &fakeResearcher{}
	}
	if o.embedder == nil {
		o.embedder = staticEmbedder{vec: []float32{1, 0, 0}}
	}
	logger := testLogger()
	return NewService(Deps{
		Researcher: o.research,
		Examples:   NewExampleRetriever(o.embedder, o.store, 0, 0, logger),
		Generator:  o.gen,
		Analyzer:   NewMessageAnalyzer(fakeNLP{}, o.gen, logger),
		Prober:     o.prober,
		Mirror:     o.mirror,
		Logger:     logger,
	}, Config{
		PingInterval: o.ping,
		Tracing:      o.tracing,
		Now:          newFakeClock(5 * time.Millisecond).Now,
	})
}

func taskNames(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Name
	}
	return out
}

func TestGenerate_Success(t *testing.T) {
	gen := &fakeGenerator{message: janeMessage, scoring: validScoring}
	store := fakeExampleStore{examples: []model.Example{
		{Body: "Hi Bob, a quick idea for Globex.", EffectivenessScore: 0.92, Embedding: []float32{1, 0, 0}},
	}}
	svc := newTestService(serviceOpts{gen: gen, store: store})
	rec := &progress.Recorder{}
	runID := uuid.New()

	res, err := svc.Generate(context.Background(), Request{RunID: runID, MessageType: "initial_outreach", Context: janeContext()}, rec)
	require.NoError(t, err)

	assert.Equal(t, janeMessage, res.Message)
	md := res.Metadata
	assert.Equal(t, runID, md.RunID)
	assert.Equal(t, "initial_outreach", md.MessageType)
	assert.Equal(t, model.ToneFormal, md.Tone)
	assert.Equal(t, model.StageNew, md.Relationship.Stage)
	assert.Equal(t, 1, md.ExamplesUsed)
	assert.InDelta(t, 0.79, md.Analysis.OverallScore, 1e-9)
	assert.NotEmpty(t, md.Analysis.Insights.TalkingPoints)

	tt := md.TaskTracking
	assert.Equal(t, []string{
		TaskGenerate, TaskValidate, TaskEnrich, TaskRelationship, TaskExamples,
		TaskInsights, TaskGenerateText, TaskAnalyze, TaskAssembleReply,
	}, taskNames(tt.Tasks))
	assert.Equal(t, len(tt.Tasks), tt.CompletedTasks)
	assert.Zero(t, tt.FailedTasks)
	require.NotNil(t, tt.Tasks[0].DurationMS)
	assert.Equal(t, *tt.Tasks[0].DurationMS, tt.TotalDurationMS)
	for _, task := range tt.Tasks[1:] {
		assert.False(t, task.StartTime.Before(tt.Tasks[0].StartTime))
		assert.False(t, task.EndTime.After(*tt.Tasks[0].EndTime))
	}

	assert.Len(t, rec.OfType(progress.EventTask), 2*len(tt.Tasks))
	assert.Empty(t, rec.OfType(progress.EventComplete))
	assert.Empty(t, rec.OfType(progress.EventPing))

	prompt := gen.generationPrompt()
	assert.Contains(t, prompt, "Hi Bob, a quick idea for Globex.")
	assert.NotContains(t, prompt, NoExamplesMarker)
}

func TestGenerate_ValidationFailsBeforeResearch(t *testing.T) {
	research := &fakeResearcher{}
	svc := newTestService(serviceOpts{research: research})
	c := janeContext()
	c.Prospect.Role = ""

	_, err := svc.Generate(context.Background(), Request{Context: c}, nil)
	require.Error(t, err)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "prospect.role", ve.Field)
	assert.Zero(t, research.calls.Load())
}

func TestGenerate_FatalSteps(t *testing.T) {
	tests := []struct {
		name string
		opts serviceOpts
		kind error
	}{
		{
			name: "enrichment",
			opts: serviceOpts{research: &fakeResearcher{companyErr: errors.New("search down")}},
			kind: model.ErrEnrichment,
		},
		{
			name: "generation",
			opts: serviceOpts{gen: &fakeGenerator{genErr: errors.New("model overloaded"), scoring: validScoring}},
			kind: model.ErrGeneration,
		},
		{
			name: "empty generation",
			opts: serviceOpts{gen: &fakeGenerator{message: "  \n", scoring: validScoring}},
			kind: model.ErrGeneration,
		},
		{
			name: "analysis",
			opts: serviceOpts{gen: &fakeGenerator{message: janeMessage, scoringErr: errors.New("timeout")}},
			kind: model.ErrAnalysis,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &progress.Recorder{}
			_, err := newTestService(tt.opts).Generate(context.Background(), Request{Context: janeContext()}, rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var failed []string
			for _, ev := range rec.OfType(progress.EventTask) {
				if ev.Phase == progress.PhaseFailed {
					failed = append(failed, ev.Task.Name)
				}
			}
			require.Len(t, failed, 2)
			assert.Equal(t, TaskGenerate, failed[1])
		})
	}
}

func TestGenerate_RetrievalDegrades(t *testing.T) {
	gen := &fakeGenerator{message: janeMessage, scoring: validScoring}
	svc := newTestService(serviceOpts{gen: gen, embedder: failingEmbedder{}, store: fakeExampleStore{}})

	res, err := svc.Generate(context.Background(), Request{Context: janeContext()}, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Metadata.ExamplesUsed)
	assert.Contains(t, gen.generationPrompt(), NoExamplesMarker)

	tt := res.Metadata.TaskTracking
	assert.Equal(t, 1, tt.FailedTasks)
	for _, task := range tt.Tasks {
		if task.Name == TaskExamples {
			assert.Equal(t, model.TaskFailed, task.Status)
		}
	}
}

func TestGenerate_FallbackAnalysis(t *testing.T) {
	gen := &fakeGenerator{message: janeMessage, scoring: "Looks great to me."}
	res, err := newTestService(serviceOpts{gen: gen}).Generate(context.Background(), Request{Context: janeContext()}, nil)
	require.NoError(t, err)
	assert.True(t, res.Metadata.Analysis.Fallback)
	assert.InDelta(t, 0.86, res.Metadata.Analysis.OverallScore, 1e-9)
	assert.Len(t, res.Metadata.Analysis.Strengths, 4)
}

func TestStream_CompleteEventIsLast(t *testing.T) {
	rec := &progress.Recorder{}
	res, err := newTestService(serviceOpts{}).Stream(context.Background(), Request{Context: janeContext()}, rec)
	require.NoError(t, err)

	events := rec.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, progress.EventComplete, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, res.Message, last.Result.Message)
	assert.Equal(t, res.Metadata.RunID, last.RunID)
	assert.Len(t, rec.OfType(progress.EventComplete), 1)
	assert.NotEmpty(t, last.Result.Metadata.TaskTracking.Tasks)
}

func TestStream_ErrorEventOnFailure(t *testing.T) {
	rec := &progress.Recorder{}
	svc := newTestService(serviceOpts{gen: &fakeGenerator{genErr: errors.New("model overloaded")}})
	_, err := svc.Stream(context.Background(), Request{Context: janeContext()}, rec)
	require.ErrorIs(t, err, model.ErrGeneration)

	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, progress.EventError, last.Type)
	assert.Contains(t, last.Error, "model overloaded")
	assert.Empty(t, rec.OfType(progress.EventComplete))
}

func TestStream_ProbeFailureDisablesTracing(t *testing.T) {
	rec := &progress.Recorder{}
	svc := newTestService(serviceOpts{tracing: true, prober: fakeProber{err: errors.New("dial tcp: refused")}})

	res, err := svc.Stream(context.Background(), Request{Context: janeContext()}, rec)
	require.NoError(t, err)

	var probe *model.Task
	for i, task := range res.Metadata.TaskTracking.Tasks {
		if task.Name == TaskProbe {
			probe = &res.Metadata.TaskTracking.Tasks[i]
		}
	}
	require.NotNil(t, probe)
	assert.Equal(t, model.TaskFailed, probe.Status)
	assert.Contains(t, probe.Error, "dial tcp: refused")
	assert.Equal(t, 1, res.Metadata.TaskTracking.FailedTasks)
}

func TestStream_ProbeSkippedWithoutTracing(t *testing.T) {
	res, err := newTestService(serviceOpts{prober: fakeProber{}}).Stream(context.Background(), Request{Context: janeContext()}, nil)
	require.NoError(t, err)
	assert.NotContains(t, taskNames(res.Metadata.TaskTracking.Tasks), TaskProbe)
}

func TestStream_ClientGoneEndsRun(t *testing.T) {
	gone := errors.New("broken pipe")
	var mu sync.Mutex
	sent := 0
	sink := progress.SinkFunc(func(context.Context, progress.Event) error {
		mu.Lock()
		defer mu.Unlock()
		sent++
		if sent > 4 {
			return gone
		}
		return nil
	})
	gen := &fakeGenerator{message: janeMessage, scoring: validScoring}

	_, err := newTestService(serviceOpts{gen: gen}).Stream(context.Background(), Request{Context: janeContext()}, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStreamClosed)
	assert.ErrorIs(t, err, gone)
	assert.Empty(t, gen.generationPrompt())
}

func TestStream_Pings(t *testing.T) {
	pinged := make(chan struct{})
	var once sync.Once
	rec := &progress.Recorder{}
	sink := progress.SinkFunc(func(ctx context.Context, ev progress.Event) error {
		if ev.Type == progress.EventPing {
			once.Do(func() { close(pinged) })
		}
		return rec.Send(ctx, ev)
	})
	svc := newTestService(serviceOpts{ping: time.Millisecond})
	svc.researcher = &blockingResearcher{release: pinged}

	_, err := svc.Stream(context.Background(), Request{Context: janeContext()}, sink)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.OfType(progress.EventPing))
	assert.Equal(t, progress.EventComplete, rec.Events()[len(rec.Events())-1].Type)
}

func TestGenerate_MirrorFailureIgnored(t *testing.T) {
	mirror := progress.SinkFunc(func(context.Context, progress.Event) error { return errors.New("nats down") })
	rec := &progress.Recorder{}
	_, err := newTestService(serviceOpts{mirror: mirror}).Generate(context.Background(), Request{Context: janeContext()}, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.OfType(progress.EventTask))
}

// blockingResearcher holds company research until release is closed.
type blockingResearcher struct {
	fakeResearcher
	release <-chan struct{}
}

func (b *blockingResearcher) AnalyzeCompany(ctx context.Context, name string) (model.CompanyResearch, error) {
	select {
	case <-b.release:
	case <-time.After(5 * time.Second):
		return model.CompanyResearch{}, errors.New("no ping within 5s")
	case <-ctx.Done():
		return model.CompanyResearch{}, ctx.Err()
	}
	return b.fakeResearcher.AnalyzeCompany(ctx, name)
}
