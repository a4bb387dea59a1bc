package outreach

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/progress"
)

// TaskRef identifies a task started on a Tracker.
type TaskRef int

// Tracker records the named steps of one run and reports every transition
// to a progress sink. Each task moves from pending to completed or failed
// exactly once.
type Tracker struct {
	runID uuid.UUID
	sink  progress.Sink
	now   func() time.Time

	mu      sync.Mutex
	tasks   []model.Task
	sinkErr error
}

// NewTracker creates a tracker for runID. A nil sink discards events.
func NewTracker(runID uuid.UUID, sink progress.Sink, now func() time.Time) *Tracker {
	if sink == nil {
		sink = progress.Discard
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{runID: runID, sink: sink, now: now}
}

// RunID returns the run this tracker belongs to.
func (t *Tracker) RunID() uuid.UUID { return t.runID }

// Start appends a pending task and announces it.
func (t *Tracker) Start(ctx context.Context, name string) TaskRef {
	t.mu.Lock()
	task := model.Task{Name: name, Status: model.TaskPending, StartTime: t.now()}
	t.tasks = append(t.tasks, task)
	ref := TaskRef(len(t.tasks) - 1)
	t.mu.Unlock()

	t.emit(ctx, progress.PhaseStarted, task)
	return ref
}

// Complete finishes a task, failed if err is non-nil. It reports false when
// the task had already finished, in which case nothing changes.
func (t *Tracker) Complete(ctx context.Context, ref TaskRef, err error) bool {
	t.mu.Lock()
	if int(ref) < 0 || int(ref) >= len(t.tasks) || t.tasks[ref].Status != model.TaskPending {
		t.mu.Unlock()
		return false
	}
	task := &t.tasks[ref]
	end := t.now()
	if end.Before(task.StartTime) {
		end = task.StartTime
	}
	dur := end.Sub(task.StartTime).Milliseconds()
	task.EndTime = &end
	task.DurationMS = &dur
	phase := progress.PhaseCompleted
	task.Status = model.TaskCompleted
	if err != nil {
		phase = progress.PhaseFailed
		task.Status = model.TaskFailed
		task.Error = err.Error()
	}
	snapshot := *task
	t.mu.Unlock()

	t.emit(ctx, phase, snapshot)
	return true
}

// Tasks returns a copy of the timeline.
func (t *Tracker) Tasks() []model.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Task, len(t.tasks))
	copy(out, t.tasks)
	return out
}

// Summary returns the timeline with its aggregate counts.
func (t *Tracker) Summary() model.TaskTracking {
	return model.SummarizeTasks(t.Tasks())
}

// Err returns the first delivery failure of the sink, if any. Once the sink
// has failed no further events are sent to it.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sinkErr
}

// Send forwards a non-task event through the same sink, honouring an earlier
// delivery failure.
func (t *Tracker) Send(ctx context.Context, ev progress.Event) error {
	if err := t.Err(); err != nil {
		return err
	}
	ev.RunID = t.runID
	if ev.Time.IsZero() {
		ev.Time = t.now()
	}
	if err := t.sink.Send(ctx, ev); err != nil {
		t.fail(err)
		return err
	}
	return nil
}

func (t *Tracker) emit(ctx context.Context, phase progress.Phase, task model.Task) {
	_ = t.Send(ctx, progress.Event{Type: progress.EventTask, Phase: phase, Task: &task})
}

func (t *Tracker) fail(err error) {
	t.mu.Lock()
	if t.sinkErr == nil {
		t.sinkErr = err
	}
	t.mu.Unlock()
}
