package metrics

import "context"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCase forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCase(ev CaseEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordCase(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun forwards the run summary to all sinks.
func (m *MultiSink) RecordRun(ev RunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes every sink that supports it.
func (m *MultiSink) Flush(ctx context.Context) error {
	for _, s := range m.Sinks {
		if err := Flush(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
