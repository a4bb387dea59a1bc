package outreach

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// Batch defaults: three concurrent generations per group, one second
// between groups.
const (
	DefaultBatchGroupSize  = 3
	DefaultBatchGroupDelay = time.Second
)

// BatchTicketSource lists the tickets a batch operates on.
type BatchTicketSource interface {
	ListTicketsForBatch(ctx context.Context, projectID uuid.UUID, filters model.BatchFilters) ([]model.Ticket, error)
}

// TicketGenerateFunc produces one outreach message for a ticket.
type TicketGenerateFunc func(ctx context.Context, ticketID uuid.UUID, messageType string, hints model.GenerationHints) (model.BatchItem, error)

// BatchRunner drives generation over many tickets in fixed-size concurrent
// groups with a pause between groups.
type BatchRunner struct {
	tickets   BatchTicketSource
	groupSize int
	delay     time.Duration
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger
}

// NewBatchRunner creates a runner. Non-positive sizes fall back to defaults;
// a zero delay is allowed.
func NewBatchRunner(tickets BatchTicketSource, groupSize int, delay time.Duration, logger *slog.Logger) *BatchRunner {
	if groupSize <= 0 {
		groupSize = DefaultBatchGroupSize
	}
	if delay < 0 {
		delay = DefaultBatchGroupDelay
	}
	return &BatchRunner{
		tickets:   tickets,
		groupSize: groupSize,
		delay:     delay,
		now:       time.Now,
		sleep:     sleepCtx,
		logger:    logger,
	}
}

// Run generates a message for every ticket of the project that matches
// filters. Per-ticket failures are recorded and never stop the batch. The
// average generation time is the whole batch's wall clock divided by the
// number of tickets.
func (b *BatchRunner) Run(ctx context.Context, projectID uuid.UUID, messageType string, filters model.BatchFilters, hints model.GenerationHints, generate TicketGenerateFunc) (model.BatchGenerationResult, error) {
	result := model.BatchGenerationResult{
		Successful: []model.BatchItem{},
		Failed:     []model.BatchFailure{},
	}

	tickets, err := b.tickets.ListTicketsForBatch(ctx, projectID, filters)
	if err != nil {
		return result, fmt.Errorf("batch: list tickets: %w", err)
	}
	if len(tickets) == 0 {
		return result, nil
	}

	start := b.now()
	for groupStart := 0; groupStart < len(tickets); groupStart += b.groupSize {
		end := min(groupStart+b.groupSize, len(tickets))
		items, failures := b.runGroup(ctx, tickets[groupStart:end], messageType, hints, generate)
		result.Successful = append(result.Successful, items...)
		result.Failed = append(result.Failed, failures...)

		if end < len(tickets) {
			if err := b.sleep(ctx, b.delay); err != nil {
				for _, t := range tickets[end:] {
					result.Failed = append(result.Failed, model.BatchFailure{TicketID: t.ID, Error: err.Error()})
				}
				break
			}
		}
	}
	elapsed := b.now().Sub(start)

	result.Summary = model.BatchSummary{
		Total:               len(tickets),
		Succeeded:           len(result.Successful),
		Failed:              len(result.Failed),
		AverageGenerationMS: elapsed.Milliseconds() / int64(len(tickets)),
	}
	b.logger.Info("batch: completed",
		"project_id", projectID,
		"total", result.Summary.Total,
		"succeeded", result.Summary.Succeeded,
		"failed", result.Summary.Failed)
	return result, nil
}

func (b *BatchRunner) runGroup(ctx context.Context, group []model.Ticket, messageType string, hints model.GenerationHints, generate TicketGenerateFunc) ([]model.BatchItem, []model.BatchFailure) {
	type outcome struct {
		item model.BatchItem
		err  error
	}
	outcomes := make([]outcome, len(group))

	var wg sync.WaitGroup
	for i, t := range group {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					outcomes[i].err = fmt.Errorf("panic: %v", rec)
				}
			}()
			item, err := generate(ctx, t.ID, messageType, hints)
			item.TicketID = t.ID
			outcomes[i] = outcome{item: item, err: err}
		}()
	}
	wg.Wait()

	var (
		items    []model.BatchItem
		failures []model.BatchFailure
	)
	for i, o := range outcomes {
		if o.err != nil {
			b.logger.Warn("batch: ticket failed", "ticket_id", group[i].ID, "error", o.err)
			failures = append(failures, model.BatchFailure{TicketID: group[i].ID, Error: o.err.Error()})
			continue
		}
		items = append(items, o.item)
	}
	return items, failures
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
