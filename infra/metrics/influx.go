package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/rapidreach/rrops/core/metrics"
	"github.com/rapidreach/rrops/infra/logger"
)

// InfluxConfig locates the bucket acceptance points are written to.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// Tags are added to every point, e.g. the bench or site name.
	Tags           map[string]string `json:"tags"`
	TimeoutSeconds int               `json:"timeout_seconds"`
}

// InfluxSink writes acceptance events to an InfluxDB bucket with blocking
// writes, so a recorded case is durable once RecordCase returns.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	timeout  time.Duration
	log      logger.Logger
}

// NewInfluxSink creates a sink for cfg without contacting the server.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts := influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: timeout})
	for k, v := range cfg.Tags {
		opts.AddDefaultTag(k, v)
	}
	client := influxdb2.NewClientWithOptions(strings.TrimSuffix(cfg.URL, "/api/v2/write"), cfg.Token, opts)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		timeout:  timeout,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback checks the server health first. An unreachable or
// unhealthy server yields a NopSink so a run is never blocked on metrics.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), sink.timeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	switch {
	case err != nil:
		sink.log.Errorf("influx health check error: %v", err)
	case health.Status != "pass":
		sink.log.Errorf("influx health status: %s", health.Status)
	default:
		return sink
	}
	sink.client.Close()
	return coremetrics.NopSink{}
}

// RecordCase writes one acceptance_case point.
func (s *InfluxSink) RecordCase(ev coremetrics.CaseEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("acceptance_case").
		AddTag("case_id", ev.CaseID).
		AddTag("passed", strconv.FormatBool(ev.Passed)).
		AddTag("run_id", ev.RunID).
		AddField("elapsed_s", round3(ev.Elapsed.Seconds())).
		AddField("estimated_s", round3(ev.Estimated.Seconds())).
		AddField("commands", ev.Commands).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRun writes the acceptance_run summary point.
func (s *InfluxSink) RecordRun(ev coremetrics.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("acceptance_run").
		AddTag("run_id", ev.RunID).
		AddField("total", ev.Total).
		AddField("passed", ev.Passed).
		AddField("failed", ev.Failed).
		AddField("duration_s", round3(ev.Duration.Seconds())).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Flush closes the client; writes are blocking so nothing is pending.
func (s *InfluxSink) Flush(context.Context) error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
