package outreach

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// Policy says what a failed step does to its run.
type Policy int

const (
	// Fatal aborts the run.
	Fatal Policy = iota
	// DegradeEmpty continues with the step's zero value.
	DegradeEmpty
	// DegradeDisableFeature continues and turns off the feature the step
	// guards for the rest of the run.
	DegradeDisableFeature
)

func (p Policy) String() string {
	switch p {
	case Fatal:
		return "fatal"
	case DegradeEmpty:
		return "degrade_empty"
	case DegradeDisableFeature:
		return "degrade_disable_feature"
	default:
		return "unknown"
	}
}

// stepSpec names a step, its failure policy and the error kind its failures
// are reported as.
type stepSpec struct {
	name   string
	policy Policy
	kind   error
}

// runStep executes fn as a tracked task. On failure the task is marked
// failed and the step's policy decides the outcome: Fatal returns a
// *model.StepError, the degrade policies log and return ok=false with the
// zero value. A broken progress stream aborts the run after any step.
func runStep[T any](ctx context.Context, r *run, def stepSpec, fn func(context.Context) (T, error)) (T, bool, error) {
	var zero T

	stepCtx, span := r.tracer.Start(ctx, "outreach."+def.name)
	span.SetAttributes(attribute.String("outreach.policy", def.policy.String()))
	defer span.End()

	ref := r.tracker.Start(stepCtx, def.name)
	val, err := fn(stepCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		stepErr := wrapStep(def, err)
		r.tracker.Complete(stepCtx, ref, stepErr)
		r.svc.metrics.stepFailed(ctx, def.name, def.policy)

		if def.policy == Fatal {
			return zero, false, stepErr
		}
		r.logger.Warn("outreach: step degraded",
			slog.String("step", def.name),
			slog.String("policy", def.policy.String()),
			slog.Any("error", err))
		if sinkErr := r.tracker.Err(); sinkErr != nil {
			return zero, false, streamClosed(def.name, sinkErr)
		}
		return zero, false, nil
	}

	r.tracker.Complete(stepCtx, ref, nil)
	if sinkErr := r.tracker.Err(); sinkErr != nil {
		return zero, false, streamClosed(def.name, sinkErr)
	}
	return val, true, nil
}

func wrapStep(def stepSpec, err error) error {
	if def.kind == nil || model.IsValidation(err) {
		return err
	}
	return &model.StepError{Kind: def.kind, Step: def.name, Err: err}
}

func streamClosed(step string, cause error) error {
	return &model.StepError{Kind: model.ErrStreamClosed, Step: step, Err: cause}
}
