package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidreach/rrops/core/factory"
	coremetrics "github.com/rapidreach/rrops/core/metrics"
)

func TestPromSinkRecords(t *testing.T) {
	s, err := NewPromSink(PromConfig{})
	require.NoError(t, err)

	require.NoError(t, s.RecordCase(coremetrics.CaseEvent{CaseID: "RDP-179", Passed: true, Elapsed: 3 * time.Second}))
	require.NoError(t, s.RecordCase(coremetrics.CaseEvent{CaseID: "RDP-179", Passed: false, Elapsed: time.Second}))
	require.NoError(t, s.RecordRun(coremetrics.RunEvent{Total: 2, Passed: 1, Failed: 1, Duration: 4 * time.Second, Time: time.Unix(1700000000, 0)}))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.cases.WithLabelValues("RDP-179", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.cases.WithLabelValues("RDP-179", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.total))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.failed))
	assert.Equal(t, 4.0, testutil.ToFloat64(s.runSecs))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(s.lastRun))
}

func TestPromSinkSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	s1, err := NewPromSinkWithRegistry(PromConfig{}, reg)
	require.NoError(t, err)
	s2, err := NewPromSinkWithRegistry(PromConfig{}, reg)
	require.NoError(t, err)

	require.NoError(t, s1.RecordCase(coremetrics.CaseEvent{CaseID: "RDP-180", Passed: true}))
	require.NoError(t, s2.RecordCase(coremetrics.CaseEvent{CaseID: "RDP-180", Passed: true}))
	assert.Equal(t, 2.0, testutil.ToFloat64(s1.cases.WithLabelValues("RDP-180", "true")))
}

func TestPromSinkFlushTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rrops.prom")
	s, err := NewPromSink(PromConfig{Textfile: path})
	require.NoError(t, err)
	require.NoError(t, s.RecordCase(coremetrics.CaseEvent{CaseID: "RDP-207", Passed: true, Elapsed: time.Second}))

	require.NoError(t, s.Flush(context.Background()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `acceptance_cases_total{case="RDP-207",passed="true"} 1`)
}

func TestPromSinkFlushPushgateway(t *testing.T) {
	var path string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewPromSink(PromConfig{PushgatewayURL: srv.URL, Instance: "bench-1"})
	require.NoError(t, err)
	require.NoError(t, s.RecordRun(coremetrics.RunEvent{Total: 1, Passed: 1, Time: time.Now()}))
	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, "/metrics/job/rrops_acceptance/instance/bench-1", path)
	assert.NotEmpty(t, body)
}

func TestFactoryPrometheus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rrops.prom")
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{
		Type: "prometheus",
		Conf: map[string]any{"textfile": path, "job": "bench"},
	}})
	require.NoError(t, err)
	ps, ok := s.(*PromSink)
	require.True(t, ok, "got %T", s)
	assert.Equal(t, path, ps.cfg.Textfile)
	assert.Equal(t, "bench", ps.cfg.Job)
}
