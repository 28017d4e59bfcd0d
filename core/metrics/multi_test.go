package metrics

import (
	"context"
	"errors"
	"testing"
)

type recordSink struct {
	cases, runs, flushes int
	err                  error
}

func (r *recordSink) RecordCase(CaseEvent) error {
	r.cases++
	return r.err
}

func (r *recordSink) RecordRun(RunEvent) error {
	r.runs++
	return r.err
}

func (r *recordSink) Flush(context.Context) error {
	r.flushes++
	return nil
}

// TestMultiSink ensures events are forwarded to all sinks.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2, NopSink{})
	if err := m.RecordCase(CaseEvent{CaseID: "RDP-179"}); err != nil {
		t.Fatalf("record case: %v", err)
	}
	if err := m.RecordRun(RunEvent{Total: 1}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if err := Flush(context.Background(), m); err != nil {
		t.Fatalf("flush: %v", err)
	}
	for _, s := range []*recordSink{s1, s2} {
		if s.cases != 1 || s.runs != 1 || s.flushes != 1 {
			t.Fatalf("events not forwarded: %+v", s)
		}
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordCase(CaseEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s2.cases != 0 {
		t.Fatalf("second sink should not be reached")
	}
}

func TestFlushNop(t *testing.T) {
	if err := Flush(context.Background(), NopSink{}); err != nil {
		t.Fatalf("flush nop: %v", err)
	}
}
