package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/courier-dispatch/config"
	"github.com/kilianp07/courier-dispatch/core/dispatch/logging"
	"github.com/kilianp07/courier-dispatch/core/factory"
	coremetrics "github.com/kilianp07/courier-dispatch/core/metrics"
	"github.com/kilianp07/courier-dispatch/infra/reliability"
)

const body = `{
	"orders": [{"id": "o1", "cookId": "c1"}, {"id": "o2", "cookId": "missing"}],
	"cooks": [{"id": "c1", "lat": 40.0, "lng": -73.0}],
	"drivers": [{"id": "d1", "lat": 40.01, "lng": -73.0}, {"id": "d2", "lat": 40.02, "lng": -73.0}]
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Metrics.PrometheusEnabled = false
	cfg.Logging.Backend = logging.BackendJSONL
	cfg.Logging.Path = filepath.Join(t.TempDir(), "runs.jsonl")
	return &cfg
}

func TestService_AssignAndAudit(t *testing.T) {
	cfg := testConfig(t)
	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx, ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/assign", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runID := resp.Header.Get("X-Run-ID")
	require.NotEmpty(t, runID)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}

	store, err := logging.NewJSONLStore(cfg.Logging.Path)
	require.NoError(t, err)
	defer store.Close()
	recs, err := store.Query(context.Background(), logging.LogQuery{OrderID: "o2"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, runID, recs[0].ID)
	require.Len(t, recs[0].Assignments, 1)
	assert.Equal(t, "d1", recs[0].Assignments[0].CourierID)
	require.Len(t, recs[0].Skipped, 1)
}

func TestService_RedisReliability(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Logging.Backend = logging.BackendNone
	cfg.Reliability = reliability.Config{Backend: reliability.BackendRedis, Addr: mr.Addr()}
	cfg.Reliability.SetDefaults()
	mr.HSet(reliability.DefaultKey, "d2", "100")

	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer svc.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assign", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	svc.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"courierId":"d2"`)

	w = httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dispatch/logs", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNew_InvalidSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "kafka"}}
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

type closingSink struct {
	coremetrics.NopSink
	closed *int
}

func (c closingSink) Close() { *c.closed++ }

var closedSinks int

func init() {
	_ = coremetrics.RegisterMetricsSink("app_test_closing", func(map[string]any) (coremetrics.MetricsSink, error) {
		return closingSink{closed: &closedSinks}, nil
	})
}

func TestNew_AuditLogFailureClosesSink(t *testing.T) {
	closedSinks = 0
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "app_test_closing"}}
	cfg.Logging.Path = filepath.Join(t.TempDir(), "missing", "runs.jsonl")

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit log")
	assert.Equal(t, 1, closedSinks)
}

func TestSinkConfigs(t *testing.T) {
	assert.Empty(t, sinkConfigs(coremetrics.Config{}))

	got := sinkConfigs(coremetrics.Config{PrometheusEnabled: true, Sinks: []factory.ModuleConfig{{Type: "nop"}}})
	assert.Equal(t, []factory.ModuleConfig{{Type: "nop"}, {Type: "prometheus"}}, got)

	explicit := []factory.ModuleConfig{{Type: "prometheus"}}
	assert.Equal(t, explicit, sinkConfigs(coremetrics.Config{PrometheusEnabled: true, Sinks: explicit}))
}
