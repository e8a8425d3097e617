package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordingTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return &Tracer{
		tracer:   provider.Tracer(InstrumentationName),
		provider: provider,
		enabled:  true,
	}, exporter
}

func TestNew_Disabled(t *testing.T) {
	tr, err := New(&config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tr.Enabled() {
		t.Error("Enabled() = true for disabled config")
	}

	ctx, span := tr.Tracer().Start(context.Background(), "noop")
	span.End()
	if TraceID(ctx) != "" {
		t.Error("noop tracer produced a valid trace id")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, "test"); err == nil {
		t.Error("New(nil) should fail")
	}
	_, err := New(&config.TracingConfig{Enabled: true, Sampler: "ratio", SampleRatio: 2}, "test")
	if err == nil {
		t.Error("New() with ratio 2 should fail")
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, -0.1, true},
		{"sometimes", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			s, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && s == nil {
				t.Error("createSampler() returned nil sampler")
			}
		})
	}
}

func TestSetStatus(t *testing.T) {
	tr, exporter := recordingTracer(t)

	_, ok := tr.Start(context.Background(), "ok")
	SetStatus(ok, nil)
	ok.End()

	_, failed := tr.Start(context.Background(), "failed")
	SetStatus(failed, errors.New("scene parse error"))
	failed.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	if spans[0].Status.Code != codes.Ok {
		t.Errorf("ok span status = %v", spans[0].Status.Code)
	}
	if spans[1].Status.Code != codes.Error {
		t.Errorf("failed span status = %v", spans[1].Status.Code)
	}
}

func TestSetRuleBaseAttributes(t *testing.T) {
	tr, exporter := recordingTracer(t)

	_, span := tr.Start(context.Background(), "compile")
	SetRuleBaseAttributes(span, "abc", compiler.Stats{Compiled: 3, Excluded: 1, Atoms: 9, Nodes: 12})
	span.End()

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range exporter.GetSpans()[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrFingerprint].AsString() != "abc" {
		t.Errorf("fingerprint = %v", attrs[AttrFingerprint])
	}
	if attrs[AttrNodes].AsInt64() != 12 {
		t.Errorf("nodes = %v", attrs[AttrNodes])
	}
}

func TestHTTPMiddleware(t *testing.T) {
	tr, exporter := recordingTracer(t)

	var sawSpan bool
	h := HTTPMiddleware(tr, "/v1/reason", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSpan = TraceID(r.Context()) != ""
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/reason", nil))

	if !sawSpan {
		t.Error("handler context carries no span")
	}
	if rec.Header().Get("X-Trace-ID") == "" {
		t.Error("X-Trace-ID header not set")
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "POST /v1/reason" {
		t.Errorf("spans = %v", spans)
	}
}
