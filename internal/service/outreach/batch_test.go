package outreach

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

type fakeTicketSource struct {
	tickets []model.Ticket
	err     error
	filters model.BatchFilters
}

func (f *fakeTicketSource) ListTicketsForBatch(_ context.Context, _ uuid.UUID, filters model.BatchFilters) ([]model.Ticket, error) {
	f.filters = filters
	return f.tickets, f.err
}

func tickets(n int) []model.Ticket {
	out := make([]model.Ticket, n)
	for i := range out {
		out[i] = model.Ticket{ID: uuid.New(), Title: "t"}
	}
	return out
}

func newTestBatchRunner(src BatchTicketSource, size int) (*BatchRunner, *[]time.Duration) {
	var sleeps []time.Duration
	b := NewBatchRunner(src, size, time.Second, testLogger())
	b.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return b, &sleeps
}

func TestBatchRunner_EmptySet(t *testing.T) {
	b, sleeps := newTestBatchRunner(&fakeTicketSource{}, 3)
	var calls atomic.Int32
	res, err := b.Run(context.Background(), uuid.New(), "follow_up", model.BatchFilters{}, model.GenerationHints{},
		func(context.Context, uuid.UUID, string, model.GenerationHints) (model.BatchItem, error) {
			calls.Add(1)
			return model.BatchItem{}, nil
		})
	require.NoError(t, err)
	assert.Zero(t, calls.Load())
	assert.Empty(t, *sleeps)
	assert.NotNil(t, res.Successful)
	assert.NotNil(t, res.Failed)
	assert.Equal(t, model.BatchSummary{}, res.Summary)
}

func TestBatchRunner_IsolatesFailures(t *testing.T) {
	ts := tickets(7)
	src := &fakeTicketSource{tickets: ts}
	b, sleeps := newTestBatchRunner(src, 3)

	status := "new"
	var (
		mu   sync.Mutex
		seen = map[uuid.UUID]string{}
	)
	res, err := b.Run(context.Background(), uuid.New(), "follow_up", model.BatchFilters{Status: &status}, model.GenerationHints{Prompt: "be brief"},
		func(_ context.Context, id uuid.UUID, messageType string, hints model.GenerationHints) (model.BatchItem, error) {
			mu.Lock()
			seen[id] = messageType + "/" + hints.Prompt
			mu.Unlock()
			switch id {
			case ts[2].ID:
				return model.BatchItem{}, errors.New("generation failed")
			case ts[5].ID:
				panic("boom")
			}
			return model.BatchItem{Message: "hello"}, nil
		})
	require.NoError(t, err)

	assert.Equal(t, &status, src.filters.Status)
	assert.Len(t, seen, 7)
	for _, v := range seen {
		assert.Equal(t, "follow_up/be brief", v)
	}

	assert.Len(t, res.Successful, 5)
	require.Len(t, res.Failed, 2)
	failed := map[uuid.UUID]string{}
	for _, f := range res.Failed {
		failed[f.TicketID] = f.Error
	}
	assert.Equal(t, "generation failed", failed[ts[2].ID])
	assert.Contains(t, failed[ts[5].ID], "panic: boom")
	for _, item := range res.Successful {
		assert.NotEqual(t, uuid.Nil, item.TicketID)
		assert.Equal(t, "hello", item.Message)
	}

	assert.Equal(t, 7, res.Summary.Total)
	assert.Equal(t, 5, res.Summary.Succeeded)
	assert.Equal(t, 2, res.Summary.Failed)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *sleeps)
}

func TestBatchRunner_AverageIsWallClockOverTotal(t *testing.T) {
	b, _ := newTestBatchRunner(&fakeTicketSource{tickets: tickets(4)}, 2)
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{start, start.Add(1300 * time.Millisecond)}
	i := 0
	b.now = func() time.Time {
		now := times[i]
		i++
		return now
	}

	res, err := b.Run(context.Background(), uuid.New(), "", model.BatchFilters{}, model.GenerationHints{},
		func(context.Context, uuid.UUID, string, model.GenerationHints) (model.BatchItem, error) {
			return model.BatchItem{}, nil
		})
	require.NoError(t, err)
	assert.EqualValues(t, 325, res.Summary.AverageGenerationMS)
}

func TestBatchRunner_CancelledBetweenGroups(t *testing.T) {
	ts := tickets(5)
	b := NewBatchRunner(&fakeTicketSource{tickets: ts}, 2, time.Second, testLogger())
	b.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	res, err := b.Run(context.Background(), uuid.New(), "", model.BatchFilters{}, model.GenerationHints{},
		func(context.Context, uuid.UUID, string, model.GenerationHints) (model.BatchItem, error) {
			return model.BatchItem{}, nil
		})
	require.NoError(t, err)
	assert.Len(t, res.Successful, 2)
	assert.Len(t, res.Failed, 3)
	assert.Equal(t, 5, res.Summary.Total)
}

func TestBatchRunner_ListError(t *testing.T) {
	b, _ := newTestBatchRunner(&fakeTicketSource{err: errors.New("db down")}, 3)
	_, err := b.Run(context.Background(), uuid.New(), "", model.BatchFilters{}, model.GenerationHints{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
