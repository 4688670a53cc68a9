// Package metric provides Prometheus metrics for the key/value stores, the
// publish/subscribe clients, the codec and the local broker, plus an HTTP
// server exposing them.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	m := registry.CoreMetrics()
//	m.RecordKVOperation("local", "set", nil, time.Millisecond)
//
//	server := metric.NewServer(9090, "/metrics", registry, nil)
//	if err := server.Start(); err != nil {
//	    return err
//	}
//	defer server.Stop()
//
// # Optional instrumentation
//
// Components accept a *Metrics that may be nil. Every Record method checks
// its receiver, so call sites never guard against a missing registry.
//
// # Component metrics
//
// Components that need metrics beyond the core set register them through
// MetricsRegistrar. Registration is keyed by component and metric name;
// registering the same pair twice is an invalid-class error.
package metric
