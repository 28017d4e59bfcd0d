package metrics_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	metrics "github.com/rapidreach/rrops/core/metrics"
	_ "github.com/rapidreach/rrops/infra/metrics"
)

// A metrics block as it appears in rrops.yaml: a Prometheus textfile sink
// next to a nop sink, flushed after one recorded case.
func TestMetricsConfigDecodeYAMLPrometheusTextfile(t *testing.T) {
	textfile := filepath.Join(t.TempDir(), "rrops.prom")
	data := `sinks:
  - type: prometheus
    conf:
      textfile: ` + textfile + `
      job: bench_acceptance
  - type: nop
`
	var cfg metrics.Config
	require.NoError(t, yaml.Unmarshal([]byte(data), &cfg))
	require.Len(t, cfg.Sinks, 2)
	assert.Equal(t, "prometheus", cfg.Sinks[0].Type)

	s, err := metrics.NewMetricsSink(cfg.Sinks)
	require.NoError(t, err)
	require.IsType(t, &metrics.MultiSink{}, s)

	require.NoError(t, s.RecordCase(metrics.CaseEvent{CaseID: "RDP-900", Passed: true, Elapsed: 3 * time.Second}))
	require.NoError(t, s.RecordRun(metrics.RunEvent{Total: 1, Passed: 1, Time: time.Unix(1700000000, 0)}))
	require.NoError(t, metrics.Flush(context.Background(), s))

	b, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(b), `acceptance_cases_total{case="RDP-900",passed="true"} 1`)
	assert.Contains(t, string(b), "acceptance_last_run_passed 1")
}

// Values arriving as strings, as they do from RR_ environment overrides, are
// converted to the sink's field types.
func TestMetricsConfigDecodeJSONWeaklyTyped(t *testing.T) {
	data := `{"sinks":[{"type":"influx","conf":{"url":"http://127.0.0.1:1","bucket":"rrops","timeout_seconds":"1"}}]}`
	var cfg metrics.Config
	require.NoError(t, json.Unmarshal([]byte(data), &cfg))
	s, err := metrics.NewMetricsSink(cfg.Sinks)
	require.NoError(t, err)
	// Nothing listens on the URL, so the sink falls back to a nop.
	assert.IsType(t, metrics.NopSink{}, s)
}

func TestMetricsConfigDecodeJSONUnknownType(t *testing.T) {
	data := `{"sinks":[{"type":"statsd"}]}`
	var cfg metrics.Config
	require.NoError(t, json.Unmarshal([]byte(data), &cfg))
	_, err := metrics.NewMetricsSink(cfg.Sinks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown module type "statsd"`)
	assert.Contains(t, err.Error(), "prometheus")
}
