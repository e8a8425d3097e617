package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/config"
	"drivelogic-hq/reasoner/pkg/engine"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:           true,
		Namespace:         "test",
		Subsystem:         "reasoner",
		EvaluationBuckets: []float64{0.0001, 0.001, 0.01},
	}
}

var _ engine.Observer = (*Collector)(nil)

func TestCollector_NewCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(&config.MetricsConfig{Enabled: true}, registry)

	if collector.Registry() != registry {
		t.Error("collector registry not set")
	}
	if collector.config.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("namespace = %q, want default", collector.config.Namespace)
	}
	if len(collector.config.EvaluationBuckets) == 0 {
		t.Error("evaluation buckets not defaulted")
	}

	if NewCollector(testConfig(), nil).Registry() == nil {
		t.Error("nil registry should be replaced")
	}
}

func TestCollector_ObserveInference(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	im := collector.inferenceMetrics

	collector.ObserveInference([]int{1, 8}, false, false, 1, 50*time.Microsecond)
	collector.ObserveInference([]int{14, 70}, true, false, 0, 20*time.Microsecond)
	collector.ObserveInference([]int{58}, true, true, 0, 10*time.Microsecond)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"scenes ok", testutil.ToFloat64(im.scenesTotal.WithLabelValues("ok")), 3},
		{"rule 1", testutil.ToFloat64(im.rulesFired.WithLabelValues("1")), 1},
		{"rule 70", testutil.ToFloat64(im.rulesFired.WithLabelValues("70")), 1},
		{"defaults", testutil.ToFloat64(im.defaultsTotal), 2},
		{"overrides", testutil.ToFloat64(im.overridesTotal), 1},
		{"removed", testutil.ToFloat64(im.exclusionsRemoved), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if n := testutil.CollectAndCount(im.evaluationDuration); n != 1 {
		t.Errorf("evaluation histogram series = %d, want 1", n)
	}
}

func TestCollector_ObserveSceneError(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	im := collector.inferenceMetrics

	collector.ObserveSceneError("road_user")
	collector.ObserveSceneError("")

	if got := testutil.ToFloat64(im.sceneErrors.WithLabelValues("road_user")); got != 1 {
		t.Errorf("road_user errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(im.sceneErrors.WithLabelValues("unknown")); got != 1 {
		t.Errorf("unknown errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(im.scenesTotal.WithLabelValues("error")); got != 2 {
		t.Errorf("error scenes = %v, want 2", got)
	}
}

func TestCollector_CompileMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	cm := collector.compileMetrics

	collector.RecordCompile(compiler.Stats{Rules: 5, Compiled: 4, Excluded: 1, Atoms: 12, Nodes: 17, Duration: time.Millisecond})
	collector.RecordCompileError()
	collector.RecordReload(true)
	collector.RecordReload(false)

	if got := testutil.ToFloat64(cm.rules.WithLabelValues("compiled")); got != 4 {
		t.Errorf("compiled rules = %v, want 4", got)
	}
	if got := testutil.ToFloat64(cm.rules.WithLabelValues("excluded")); got != 1 {
		t.Errorf("excluded rules = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cm.atoms); got != 12 {
		t.Errorf("atoms = %v, want 12", got)
	}
	if got := testutil.ToFloat64(cm.nodes); got != 17 {
		t.Errorf("nodes = %v, want 17", got)
	}
	if got := testutil.ToFloat64(cm.compilationsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("compile errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cm.reloadsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed reloads = %v, want 1", got)
	}
}

func TestCollector_ResultMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	rm := collector.resultMetrics

	collector.RecordBatch(8, 2, 1, time.Second, nil)
	collector.RecordBatch(0, 0, 1, time.Millisecond, errors.New("fail fast"))
	collector.RecordStored("sqlite", nil)
	collector.RecordStored("sqlite", errors.New("locked"))
	collector.RecordPruned(5)
	collector.RecordPruned(0)

	if got := testutil.ToFloat64(rm.batchScenes.WithLabelValues("cached")); got != 2 {
		t.Errorf("cached scenes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rm.batchScenes.WithLabelValues("failed")); got != 2 {
		t.Errorf("failed scenes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rm.batchRuns.WithLabelValues("error")); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.stored.WithLabelValues("sqlite", "error")); got != 1 {
		t.Errorf("failed writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.pruned); got != 5 {
		t.Errorf("pruned = %v, want 5", got)
	}
}

func TestCollector_RequestMetrics(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	rm := collector.requestMetrics

	collector.RequestStarted()
	collector.RecordRequest("/v1/reason", http.StatusOK, 3*time.Millisecond)
	collector.RequestFinished()

	if got := testutil.ToFloat64(rm.requestsTotal.WithLabelValues("/v1/reason", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.inFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.ObserveInference([]int{1}, true, true, 2, time.Millisecond)
	collector.ObserveSceneError("intention")
	collector.RecordStored("memory", nil)

	if got := testutil.ToFloat64(collector.inferenceMetrics.scenesTotal.WithLabelValues("ok")); got != 0 {
		t.Errorf("disabled collector recorded %v scenes", got)
	}
	if got := testutil.ToFloat64(collector.resultMetrics.stored.WithLabelValues("memory", "success")); got != 0 {
		t.Errorf("disabled collector recorded %v writes", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	limiter := NewCardinalityLimiter(2)

	if !limiter.Allow("1") || !limiter.Allow("2") {
		t.Fatal("limiter rejected values under the limit")
	}
	if !limiter.Allow("1") {
		t.Error("limiter rejected a known value")
	}
	if limiter.Allow("3") {
		t.Error("limiter admitted a value over the limit")
	}
	if got := limiter.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}

func TestCollector_RuleLabelOverflow(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.cardinalityLimiter = NewCardinalityLimiter(1)

	collector.ObserveInference([]int{1, 2, 3}, false, false, 0, time.Microsecond)

	rf := collector.inferenceMetrics.rulesFired
	if got := testutil.ToFloat64(rf.WithLabelValues("1")); got != 1 {
		t.Errorf("rule 1 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rf.WithLabelValues("other")); got != 2 {
		t.Errorf("other = %v, want 2", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.ObserveInference([]int{70}, true, false, 0, time.Microsecond)

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "test_reasoner_default_actions_total 1") {
		t.Errorf("metrics output missing default_actions_total:\n%s", body)
	}
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				collector.ObserveInference([]int{i}, j%2 == 0, false, 0, time.Microsecond)
			}
		}(i)
	}
	wg.Wait()

	if got := testutil.ToFloat64(collector.inferenceMetrics.scenesTotal.WithLabelValues("ok")); got != 1000 {
		t.Errorf("scenes = %v, want 1000", got)
	}
	if got := testutil.ToFloat64(collector.inferenceMetrics.defaultsTotal); got != 500 {
		t.Errorf("defaults = %v, want 500", got)
	}
}
