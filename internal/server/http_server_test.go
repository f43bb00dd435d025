package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"edgesim/internal/common"
	"edgesim/internal/dag"
	"edgesim/internal/machine"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubInstance struct{}

func (stubInstance) Started() bool       { return true }
func (stubInstance) Finished() bool      { return false }
func (stubInstance) StartedAt() float64  { return 0 }
func (stubInstance) FinishedAt() float64 { return 0 }

type failingGenerator struct {
	err error
}

func (f failingGenerator) Generate(dag.Params) (*dag.Graph, error) {
	return nil, f.err
}

func newTestServer(t *testing.T) (*HTTPServer, *machine.Registry) {
	t.Helper()

	registry := machine.NewRegistry(nil)
	require.NoError(t, registry.AddAll([]common.MachineConfig{
		{CPUCapacity: 4, MemoryCapacity: 8, DiskCapacity: 100},
		{CPUCapacity: 2, MemoryCapacity: 4, DiskCapacity: 50,
			EdgeMode: common.EdgeMode{Enabled: true, Bandwidth: 20, EnergyPerUnit: 0.1}},
	}))

	return NewHTTPServer(registry, dag.NewGenerator(1), zap.NewNop()), registry
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/ws/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMachines(t *testing.T) {
	s, registry := newTestServer(t)
	m, ok := registry.Get(0)
	require.True(t, ok)
	m.Allocate(stubInstance{}, common.Resource{CPU: 1, Memory: 2, Disk: 25})

	rec := do(t, s.Handler(), http.MethodGet, "/ws/v1/cluster/machines", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Machines []machine.Snapshot `json:"machines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Machines, 2)
	assert.Equal(t, 0, resp.Machines[0].ID)
	assert.InDelta(t, 0.75, resp.Machines[0].CPU, 1e-9)
	assert.Equal(t, "INSTANCE_ADMITTED", resp.Machines[0].LastTransition)
	assert.Equal(t, 1, resp.Machines[0].RunningTaskInstances)
	assert.Equal(t, 1, resp.Machines[1].ID)
	assert.Equal(t, 20.0, resp.Machines[1].Bandwidth)
}

func TestMachineDetail(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/ws/v1/cluster/machines/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Snapshot machine.Snapshot `json:"snapshot"`
		Feature  [3]float64       `json:"feature"`
		Capacity [3]float64       `json:"capacity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Snapshot.ID)
	assert.Equal(t, [3]float64{2, 4, 50}, resp.Feature)
	assert.Equal(t, [3]float64{2, 4, 50}, resp.Capacity)

	rec = do(t, s.Handler(), http.MethodGet, "/ws/v1/cluster/machines/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "resource not found")

	rec = do(t, s.Handler(), http.MethodGet, "/ws/v1/cluster/machines/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerate(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"n":10,"max_out":2,"alpha":1,"beta":1,"mode":"fixed"}`
	rec := do(t, s.Handler(), http.MethodPost, "/ws/v1/dag/generate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var graph dag.Graph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &graph))
	assert.Equal(t, 10, graph.Len())
	assert.Len(t, graph.Layers, 3)

	order, err := graph.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, dag.Start, order[0])
	assert.Equal(t, dag.Exit, order[len(order)-1])
}

func TestGenerateErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed body", `{"n":`, http.StatusBadRequest},
		{"invalid params", `{"n":0,"max_out":2,"alpha":1,"beta":1}`, http.StatusBadRequest},
		{"unknown mode", `{"n":10,"max_out":2,"alpha":1,"beta":1,"mode":"default"}`, http.StatusBadRequest},
		{"degenerate shape", `{"n":1,"max_out":1,"alpha":2,"beta":0}`, http.StatusBadRequest},
		{"reconcile exhausted", `{"n":1,"max_out":1,"alpha":0.1,"beta":0}`, http.StatusUnprocessableEntity},
		{"too many vertices", `{"n":1000000000000,"max_out":1,"alpha":1,"beta":0}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, "/ws/v1/dag/generate", tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestGenerateUnexpectedError(t *testing.T) {
	registry := machine.NewRegistry(nil)
	s := NewHTTPServer(registry, failingGenerator{err: errors.New("boom")}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/ws/v1/dag/generate", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/ws/v1/dag/generate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetrics(t *testing.T) {
	s, registry := newTestServer(t)
	m, ok := registry.Get(1)
	require.True(t, ok)
	m.Allocate(stubInstance{}, common.Resource{CPU: 1, Memory: 1, Disk: 10})

	h := s.Handler()
	do(t, h, http.MethodGet, "/ws/v1/cluster/machines/0", "")
	do(t, h, http.MethodGet, "/ws/v1/cluster/machines/1", "")
	do(t, h, http.MethodGet, "/ws/v1/cluster/machines/7", "")
	do(t, h, http.MethodPost, "/ws/v1/dag/generate", `{"n":10,"max_out":2,"alpha":1,"beta":1}`)
	do(t, h, http.MethodPost, "/ws/v1/dag/generate", `{"n":0}`)

	rec := do(t, h, http.MethodGet, "/ws/v1/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RequestCount      map[string]int64 `json:"request_count"`
		ErrorCount        map[string]int64 `json:"error_count"`
		Machines          int              `json:"machines"`
		Capacity          common.Resource  `json:"capacity"`
		Available         common.Resource  `json:"available"`
		GraphsGenerated   int64            `json:"graphs_generated"`
		GenerationErrors  int64            `json:"generation_errors"`
		VerticesGenerated int64            `json:"vertices_generated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	detail := "GET /ws/v1/cluster/machines/{id:[0-9]+}"
	assert.Equal(t, int64(3), resp.RequestCount[detail])
	assert.Equal(t, int64(1), resp.ErrorCount[detail])
	assert.Equal(t, int64(2), resp.RequestCount["POST /ws/v1/dag/generate"])

	assert.Equal(t, 2, resp.Machines)
	assert.Equal(t, common.Resource{CPU: 6, Memory: 12, Disk: 150}, resp.Capacity)
	assert.Equal(t, common.Resource{CPU: 5, Memory: 11, Disk: 140}, resp.Available)
	assert.Equal(t, int64(1), resp.GraphsGenerated)
	assert.Equal(t, int64(1), resp.GenerationErrors)
	assert.Equal(t, int64(10), resp.VerticesGenerated)
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/ws/v1/health", "")
	_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ws/v1/health", nil)
	req.Header.Set(requestIDHeader, "episode-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "episode-42", rec.Header().Get(requestIDHeader))
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodOptions, "/ws/v1/dag/generate", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	rec = do(t, s.Handler(), http.MethodGet, "/ws/v1/health", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
