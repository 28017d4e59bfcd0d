// Package factory builds pluggable modules, such as result sinks, from
// configuration. A module is described by a type name and a map of raw
// settings; registered factories decode the settings with Decode and return
// the concrete implementation.
//
//	reg := factory.NewRegistry[metrics.Sink]()
//	_ = reg.Register("nop", func(map[string]any) (metrics.Sink, error) {
//	    return metrics.NopSink{}, nil
//	})
//	sinks, err := reg.CreateAll(cfg.Metrics.Sinks)
package factory
