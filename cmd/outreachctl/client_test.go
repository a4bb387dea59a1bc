package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rogerHuntGauntlet/outreach/internal/agents"
	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestClient_ExecuteResolvesBizDevAgent(t *testing.T) {
	agentID := uuid.New()
	ticketID := uuid.New()
	var gotAuth string
	var gotExec model.ExecuteRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/agents":
			var req model.CreateAgentRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, model.AgentKindBizDev, req.Kind)
			writeEnvelope(t, w, http.StatusOK, model.APIResponse{Data: agentView{Agent: model.Agent{ID: agentID, Role: req.Kind}}})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/agents/"+agentID.String()+"/execute":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotExec))
			writeEnvelope(t, w, http.StatusOK, model.APIResponse{Data: agents.OutreachOutcome{
				MessageID:        uuid.New(),
				TicketID:         ticketID,
				GenerationResult: model.GenerationResult{Message: "Hi Ada"},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newClient(srv.URL+"/", "tok")
	ctx := context.Background()

	id, err := c.resolveAgent(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, agentID, id)

	var out agents.OutreachOutcome
	err = c.execute(ctx, id, agents.ActionGenerateOutreach, agents.GenerateParams{TicketID: ticketID, MessageType: "follow_up"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, agents.ActionGenerateOutreach, gotExec.Action)
	assert.Contains(t, string(gotExec.Params), ticketID.String())
	assert.Contains(t, string(gotExec.Params), `"message_type":"follow_up"`)
	assert.Equal(t, ticketID, out.TicketID)
	assert.Equal(t, "Hi Ada", out.Message)
}

func TestClient_ResolveAgentFromFlag(t *testing.T) {
	c := newClient("http://unused", "")
	id := uuid.New()
	got, err := c.resolveAgent(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = c.resolveAgent(context.Background(), "not-a-uuid")
	require.Error(t, err)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusConflict, model.APIError{Error: model.ErrorDetail{Code: "CONFLICT", Message: "ticket is busy"}})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "").getAgent(context.Background(), uuid.New())
	require.Error(t, err)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "CONFLICT", apiErr.Code)
	assert.Equal(t, "CONFLICT (409): ticket is busy", err.Error())
}

func TestClient_NonEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "").health(context.Background())
	require.Error(t, err)
	assert.Equal(t, "server returned 502", err.Error())
}

func TestPrintBatch(t *testing.T) {
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })

	msgID := uuid.New()
	failedTicket := uuid.New()
	printBatch(model.BatchGenerationResult{
		Successful: []model.BatchItem{{TicketID: uuid.New(), MessageID: &msgID, Message: strings.Repeat("hello ", 20)}},
		Failed:     []model.BatchFailure{{TicketID: failedTicket, Error: "generation: model down"}},
		Summary:    model.BatchSummary{Total: 2, Succeeded: 1, Failed: 1, AverageGenerationMS: 1200},
	})

	out := buf.String()
	assert.Contains(t, out, msgID.String())
	assert.Contains(t, out, failedTicket.String())
	assert.Contains(t, out, "generation: model down")
	assert.Contains(t, strings.ToLower(out), "1/2 succeeded, avg 1200ms", "footer")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short text", preview("short\n  text"))
	long := strings.Repeat("é", previewLen+5)
	got := preview(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, previewLen+3, len([]rune(got)))
}
