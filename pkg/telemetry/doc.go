// Package telemetry wires the reasoner's observability from configuration:
// a structured logger, a Prometheus collector and an OpenTelemetry tracer.
//
// # Components
//
//   - logging: slog-based logger with run_id and scene_id context fields
//   - metrics: Prometheus collector, also the engine's evaluation observer
//   - tracing: OTLP/gRPC tracer, noop when disabled
//   - health: liveness and readiness probes for the HTTP server
//
// # Usage
//
//	tel, err := telemetry.New(&cfg.Telemetry, version, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	eng, err := engine.New(compiled, policy,
//	    engine.WithLogger(tel.Logger().Slog()),
//	    engine.WithObserver(tel.Metrics()),
//	    engine.WithTracer(tel.Tracer().Tracer()),
//	)
package telemetry
