package metrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	coremetrics "github.com/rapidreach/rrops/core/metrics"
)

// PromConfig controls how a PromSink exports what it collected. A CLI run is
// too short-lived to be scraped, so results are written to a node-exporter
// textfile and/or pushed to a Pushgateway on Flush.
type PromConfig struct {
	Textfile       string `json:"textfile"`
	PushgatewayURL string `json:"pushgateway_url"`
	Job            string `json:"job"`
	Instance       string `json:"instance"`
}

// PromSink records acceptance events in Prometheus metrics.
type PromSink struct {
	cfg      PromConfig
	gatherer prometheus.Gatherer
	cases    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	total    prometheus.Gauge
	passed   prometheus.Gauge
	failed   prometheus.Gauge
	runSecs  prometheus.Gauge
	lastRun  prometheus.Gauge
}

// NewPromSink registers acceptance metrics on a fresh registry.
func NewPromSink(cfg PromConfig) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, nil)
}

// NewPromSinkWithRegistry registers metrics on the provided registry.
// A nil registry gets a private one so runs never mix with process metrics.
func NewPromSinkWithRegistry(cfg PromConfig, reg *prometheus.Registry) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if cfg.Job == "" {
		cfg.Job = "rrops_acceptance"
	}
	s := &PromSink{
		cfg:      cfg,
		gatherer: reg,
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acceptance_cases_total",
			Help: "Acceptance cases executed, by outcome",
		}, []string{"case", "passed"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acceptance_case_duration_seconds",
			Help:    "Wall time spent on an acceptance case",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"case"}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acceptance_last_run_cases",
			Help: "Number of cases in the last run",
		}),
		passed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acceptance_last_run_passed",
			Help: "Number of passed cases in the last run",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acceptance_last_run_failed",
			Help: "Number of failed cases in the last run",
		}),
		runSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acceptance_last_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acceptance_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}

	if err := reg.Register(s.cases); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.cases = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(s.duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	for _, g := range []*prometheus.Gauge{&s.total, &s.passed, &s.failed, &s.runSecs, &s.lastRun} {
		if err := reg.Register(*g); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				*g = are.ExistingCollector.(prometheus.Gauge)
			} else {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordCase counts the case outcome and observes its duration.
func (s *PromSink) RecordCase(ev coremetrics.CaseEvent) error {
	s.cases.WithLabelValues(ev.CaseID, strconv.FormatBool(ev.Passed)).Inc()
	s.duration.WithLabelValues(ev.CaseID).Observe(ev.Elapsed.Seconds())
	return nil
}

// RecordRun sets the last-run gauges.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.total.Set(float64(ev.Total))
	s.passed.Set(float64(ev.Passed))
	s.failed.Set(float64(ev.Failed))
	s.runSecs.Set(ev.Duration.Seconds())
	s.lastRun.Set(float64(ev.Time.Unix()))
	return nil
}

// Flush writes the textfile and pushes to the Pushgateway, whichever are
// configured.
func (s *PromSink) Flush(ctx context.Context) error {
	if s.cfg.Textfile != "" {
		if err := prometheus.WriteToTextfile(s.cfg.Textfile, s.gatherer); err != nil {
			return fmt.Errorf("write textfile: %w", err)
		}
	}
	if s.cfg.PushgatewayURL != "" {
		p := push.New(s.cfg.PushgatewayURL, s.cfg.Job).Gatherer(s.gatherer)
		if s.cfg.Instance != "" {
			p = p.Grouping("instance", s.cfg.Instance)
		}
		if err := p.PushContext(ctx); err != nil {
			return fmt.Errorf("push metrics: %w", err)
		}
	}
	return nil
}
