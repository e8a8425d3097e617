// Package tracing provides OpenTelemetry tracing for the reasoner.
//
// # Overview
//
// Spans are exported over OTLP/gRPC to a collector. When tracing is
// disabled New returns a Tracer backed by the noop provider, so callers
// never branch on configuration.
//
// The spans emitted by the binary are:
//
//	compiler.Compile        rule base compilation (attributes: fingerprint, rules, atoms, nodes)
//	runner.Run              one batch run (attributes: run_id, scenes, workers, cached, failed)
//	engine.Reason           one scene (attributes: scene_id, facts, fired, defaulted)
//	POST /v1/reason         one HTTP request, parent of engine.Reason
//
// # Sampling
//
// Samplers are "always", "never" and "ratio", each wrapped in ParentBased.
// W3C Trace Context is extracted from incoming HTTP requests.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	eng, err := engine.New(compiled, policy, engine.WithTracer(tracer.Tracer()))
package tracing
