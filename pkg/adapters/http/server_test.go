package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/flowstate"
	"github.com/aretw0/flowstate/internal/logging"
	flowhttp "github.com/aretw0/flowstate/pkg/adapters/http"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/loader"
	"github.com/aretw0/flowstate/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (http.Handler, *flowstate.Engine) {
	t.Helper()
	eng := flowstate.New()
	ld := loader.New(registry.Builtins(logging.NewNop()))

	data, err := os.ReadFile("../../loader/testdata/order.yaml")
	require.NoError(t, err)
	defs, err := ld.Parse(data)
	require.NoError(t, err)
	for _, def := range defs {
		_, err := eng.DefineWorkflow(context.Background(), def)
		require.NoError(t, err)
	}

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	return flowhttp.NewHandler(eng,
		flowhttp.WithLoader(ld),
		flowhttp.WithMetricsHandler(metrics),
		flowhttp.WithVersion("test"),
	), eng
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHandler_Health(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", decode[map[string]string](t, rec)["version"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestHandler_Workflows(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/workflows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]domain.ExportedWorkflow](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "order-processing", list[0].Name)

	rec = do(t, h, http.MethodGet, "/workflows/order-processing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	exported := decode[domain.ExportedWorkflow](t, rec)
	assert.Equal(t, "PENDING", exported.InitialState)
	assert.Len(t, exported.Transitions, 4)

	rec = do(t, h, http.MethodGet, "/workflows/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[flowhttp.ErrorResponse](t, rec).Error, "not found")
}

func TestHandler_DefineWorkflow(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `
name: ticket
entity_type: ticket
initial_state: OPEN
states: [OPEN, CLOSED]
transitions:
  - event: close
    from: OPEN
    to: CLOSED
`
	rec := do(t, h, http.MethodPost, "/workflows", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[[]domain.ExportedWorkflow](t, rec)
	require.Len(t, created, 1)
	assert.Equal(t, "ticket", created[0].Name)

	rec = do(t, h, http.MethodPost, "/workflows", "name: broken\ninitial_state: NOWHERE\nstates: [A]\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/workflows", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_InstanceLifecycle(t *testing.T) {
	h, eng := newTestHandler(t)
	base := "/workflows/order-processing/instances"

	rec := do(t, h, http.MethodPost, base, `{"entity_id":"order-1","data":{"amount":10},"user_id":"alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inst := decode[domain.WorkflowInstance](t, rec)
	assert.Equal(t, "PENDING", inst.CurrentState)

	rec = do(t, h, http.MethodGet, base+"/order-1/transitions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	available := decode[[]domain.ExportedTransition](t, rec)
	events := make([]string, len(available))
	for i, tr := range available {
		events[i] = tr.Event
	}
	assert.ElementsMatch(t, []string{"process", "cancel"}, events)

	// require_user guard
	rec = do(t, h, http.MethodGet, base+"/order-1/transitions/process", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[flowhttp.CanTransitionResponse](t, rec).Allowed)

	rec = do(t, h, http.MethodPost, base+"/order-1/transitions", `{"event":"process"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/order-1/transitions", `{"event":"ship"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/order-1/transitions", `{"event":"process","user_id":"alice","data":{"step":1}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inst = decode[domain.WorkflowInstance](t, rec)
	assert.Equal(t, "PROCESSING", inst.CurrentState)
	require.Len(t, inst.History, 2)
	assert.Equal(t, "PENDING", *inst.History[1].From)

	rec = do(t, h, http.MethodGet, base+"/order-1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.HistoryEntry](t, rec), 2)

	rec = do(t, h, http.MethodGet, "/workflows/order-processing/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[domain.WorkflowStats](t, rec)
	assert.Equal(t, 1, stats.TotalInstances)
	assert.Equal(t, 1, stats.StateDistribution["PROCESSING"])

	rec = do(t, h, http.MethodPost, base+"/order-1/reset", `{"user_id":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PENDING", decode[domain.WorkflowInstance](t, rec).CurrentState)

	rec = do(t, h, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.WorkflowInstance](t, rec), 1)

	rec = do(t, h, http.MethodDelete, base+"/order-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, base+"/order-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/order-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	got, err := eng.GetInstance(context.Background(), "order-processing", "order-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHandler_BadRequests(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/workflows/order-processing/instances", `{"entity_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/workflows/order-processing/instances", `{"entity_id":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/workflows/order-processing/instances/x/reset", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/workflows/order-processing/instances", `{"entity_id":"a\u001b[31m"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[flowhttp.ErrorResponse](t, rec).Error, "control characters")

	rec = do(t, h, http.MethodPost, "/workflows/order-processing/instances/x/transitions", `{"event":"process\n"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&domain.ValidationError{Workflow: "w", Rule: "rule", Detail: "bad"}, http.StatusBadRequest},
		{domain.ErrWorkflowNotFound, http.StatusNotFound},
		{&domain.InvalidTransitionError{Workflow: "w", State: "A", Event: "e"}, http.StatusConflict},
		{&domain.GuardFailedError{Workflow: "w", Guard: "g"}, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, flowhttp.StatusFor(tt.err), tt.err.Error())
	}
}

func TestHandler_SubscribeEvents(t *testing.T) {
	h, eng := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?topic=workflow.", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.Equal(t, "event: ping", scanner.Text())

	_, err = eng.Transition(ctx, "order-processing", "order-9", "process", domain.TransitionOptions{UserID: "bob"})
	require.NoError(t, err)

	var eventLine, dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: workflow.") {
			eventLine = line
			require.True(t, scanner.Scan())
			dataLine = scanner.Text()
			break
		}
	}
	assert.Equal(t, "event: workflow.order-processing.state.PROCESSING", eventLine)
	require.True(t, strings.HasPrefix(dataLine, "data: "))

	var ev domain.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &ev))
	assert.Equal(t, domain.EventStateEntered, ev.Type)
	assert.Equal(t, "order-9", ev.EntityID)
}
