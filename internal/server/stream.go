package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/rogerHuntGauntlet/outreach/internal/agents"
	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/progress"
)

// streamBuffer is how many progress events may queue between the run and
// the network writer.
const streamBuffer = 32

// HandleOutreachStream handles GET /v1/agents/{agent_id}/outreach/stream.
// It runs generate_outreach for one ticket and relays its progress as
// Server-Sent Events: task, ping, then exactly one of complete or error.
func (h *Handlers) HandleOutreachStream(w http.ResponseWriter, r *http.Request) {
	a, ok := h.resolveAgent(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	ticketID, err := uuid.Parse(q.Get("ticket_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "ticket_id must be a UUID")
		return
	}
	params, err := json.Marshal(agents.GenerateParams{
		TicketID:    ticketID,
		MessageType: q.Get("message_type"),
		Context:     model.GenerationHints{Prompt: q.Get("prompt")},
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "encode params")
		return
	}

	flusher, ok := startEventStream(w)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	runID := uuid.New()
	sink := progress.NewChannel(streamBuffer)
	runErr := make(chan error, 1)
	go func() {
		defer sink.Finish()
		_, err := a.Execute(r.Context(), agents.ActionGenerateOutreach, params,
			agents.WithStream(sink), agents.WithRunID(runID))
		runErr <- err
	}()

	var lastTerminal progress.EventType
	writeFailed := false
	for ev := range sink.Events() {
		if writeFailed {
			continue
		}
		if err := writeEvent(w, ev); err != nil {
			h.logger.Info("stream: client went away", "run_id", runID, "error", err)
			sink.Abort(err)
			writeFailed = true
			continue
		}
		flusher.Flush()
		if ev.Type == progress.EventComplete || ev.Type == progress.EventError {
			lastTerminal = ev.Type
		}
	}

	err = <-runErr
	if err == nil || writeFailed {
		return
	}
	if lastTerminal != "" {
		// The client already holds a terminal event; a later failure such as
		// persisting the draft is only logged.
		if lastTerminal == progress.EventComplete {
			h.logger.Error("stream: generation finished but follow-up failed", "run_id", runID, "error", err)
		}
		return
	}
	// Failures before the pipeline started have not been reported yet.
	status, _ := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("stream: generation failed", "run_id", runID, "error", err)
	}
	if writeEvent(w, progress.Event{Type: progress.EventError, RunID: runID, Error: msg}) == nil {
		flusher.Flush()
	}
}

// writeEvent writes ev as one SSE message.
func writeEvent(w http.ResponseWriter, ev progress.Event) error {
	data, err := json.Marshal(ev.Payload())
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	_, err = w.Write(formatSSE(string(ev.Type), string(data)))
	return err
}
