// Package metrics provides Prometheus metrics for the reasoner.
//
// # Overview
//
// A single Collector owns a registry and four metric groups:
//
//   - Inference: scenes evaluated, fired rules by id, default actions,
//     start overrides, exclusion removals, evaluation latency, malformed
//     scenes by section
//   - Compile: compilations, compile latency, rule/atom/node gauges,
//     hot reloads
//   - Results: batch runs, batch scenes by outcome, store writes, pruning
//   - Requests: HTTP requests served by "drivelogic serve"
//
// The Collector satisfies engine.Observer:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng, err := engine.New(compiled, policy, engine.WithObserver(collector))
//
//	http.Handle("/metrics", collector.Handler())
//
// # Cardinality
//
// The rule_id label is bounded by a CardinalityLimiter; ids beyond the limit
// are aggregated under "other".
package metrics
