package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/rapidreach/rrops/core/metrics"
)

func TestInfluxSink_RecordCase(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	now := time.Now()
	ev := coremetrics.CaseEvent{
		RunID:     "run1",
		CaseID:    "RDP-179",
		Passed:    true,
		Commands:  2,
		Elapsed:   2500 * time.Millisecond,
		Estimated: 5 * time.Minute,
		Time:      now,
	}
	if err := sink.RecordCase(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("acceptance_case").
		AddTag("case_id", "RDP-179").
		AddTag("passed", "true").
		AddTag("run_id", "run1").
		AddField("elapsed_s", 2.5).
		AddField("estimated_s", 300.0).
		AddField("commands", 2).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestInfluxSink_RecordRun(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "token", Org: "org", Bucket: "bucket"})
	now := time.Now()
	if err := sink.RecordRun(coremetrics.RunEvent{RunID: "run1", Total: 17, Passed: 15, Failed: 2, Duration: time.Minute, Time: now}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("acceptance_run").
		AddTag("run_id", "run1").
		AddField("total", 17).
		AddField("passed", 15).
		AddField("failed", 2).
		AddField("duration_s", 60.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}

func TestInfluxSink_DefaultTags(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket", Tags: map[string]string{"bench": "lab-2"}})
	if err := sink.RecordCase(coremetrics.CaseEvent{RunID: "r", CaseID: "RDP-200", Time: time.Now()}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if !strings.Contains(body, "bench=lab-2") {
		t.Errorf("default tag missing: %s", body)
	}
}
