package metrics

import (
	"context"
	"time"
)

// CaseEvent is the outcome of one acceptance case.
type CaseEvent struct {
	RunID     string
	CaseID    string
	Passed    bool
	Commands  int
	Elapsed   time.Duration
	Estimated time.Duration
	Time      time.Time
}

// RunEvent summarises a whole acceptance run.
type RunEvent struct {
	RunID    string
	Total    int
	Passed   int
	Failed   int
	Duration time.Duration
	Time     time.Time
}

// MetricsSink records acceptance events for observability purposes.
type MetricsSink interface {
	RecordCase(ev CaseEvent) error
	RecordRun(ev RunEvent) error
}

// Flusher is implemented by sinks that buffer or export on demand.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Flush flushes s when it supports it.
func Flush(ctx context.Context, s MetricsSink) error {
	if f, ok := s.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordCase(CaseEvent) error { return nil }
func (NopSink) RecordRun(RunEvent) error   { return nil }
