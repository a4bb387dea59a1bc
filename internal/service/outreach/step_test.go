package outreach

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/progress"
)

func newTestRun(sink progress.Sink) *run {
	return &run{
		svc:     &Service{metrics: newMetrics()},
		tracker: NewTracker(uuid.New(), sink, nil),
		tracer:  noop.NewTracerProvider().Tracer(""),
		logger:  testLogger(),
	}
}

func TestRunStep_Success(t *testing.T) {
	r := newTestRun(nil)
	v, ok, err := runStep(context.Background(), r, stepSpec{name: "s", policy: Fatal}, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, model.TaskCompleted, r.tracker.Tasks()[0].Status)
}

func TestRunStep_Policies(t *testing.T) {
	boom := errors.New("boom")

	t.Run("fatal wraps with kind", func(t *testing.T) {
		r := newTestRun(nil)
		_, ok, err := runStep(context.Background(), r, stepSpec{name: "enrich", policy: Fatal, kind: model.ErrEnrichment},
			func(context.Context) (int, error) { return 1, boom })
		require.Error(t, err)
		assert.False(t, ok)
		assert.ErrorIs(t, err, model.ErrEnrichment)
		assert.ErrorIs(t, err, boom)
		var se *model.StepError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "enrich", se.Step)
		assert.Equal(t, model.TaskFailed, r.tracker.Tasks()[0].Status)
	})

	t.Run("validation errors pass through", func(t *testing.T) {
		r := newTestRun(nil)
		_, _, err := runStep(context.Background(), r, stepSpec{name: "validate", policy: Fatal, kind: model.ErrGeneration},
			func(context.Context) (int, error) { return 0, &model.ValidationError{Field: "prospect.name"} })
		require.Error(t, err)
		assert.True(t, model.IsValidation(err))
		assert.NotErrorIs(t, err, model.ErrGeneration)
	})

	for _, p := range []Policy{DegradeEmpty, DegradeDisableFeature} {
		t.Run(p.String(), func(t *testing.T) {
			r := newTestRun(nil)
			v, ok, err := runStep(context.Background(), r, stepSpec{name: "s", policy: p, kind: model.ErrRetrieval},
				func(context.Context) ([]string, error) { return []string{"partial"}, boom })
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, v)
			task := r.tracker.Tasks()[0]
			assert.Equal(t, model.TaskFailed, task.Status)
			assert.Contains(t, task.Error, "boom")
		})
	}
}

func TestRunStep_StreamClosed(t *testing.T) {
	gone := errors.New("gone")
	sink := progress.SinkFunc(func(context.Context, progress.Event) error { return gone })
	r := newTestRun(sink)

	called := false
	_, ok, err := runStep(context.Background(), r, stepSpec{name: "s", policy: Fatal}, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.True(t, called)
	assert.False(t, ok)
	assert.ErrorIs(t, err, model.ErrStreamClosed)
	assert.ErrorIs(t, err, gone)
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "degrade_empty", DegradeEmpty.String())
	assert.Equal(t, "degrade_disable_feature", DegradeDisableFeature.String())
	assert.Equal(t, "unknown", Policy(99).String())
}
