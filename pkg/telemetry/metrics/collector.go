package metrics

import (
	"sync"
	"time"

	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every Prometheus metric exported by the reasoner. It
// implements engine.Observer, so an engine created with
// engine.WithObserver(collector) reports each evaluation here.
//
// When metrics are disabled every Record method is a no-op.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	inferenceMetrics *InferenceMetrics
	compileMetrics   *CompileMetrics
	resultMetrics    *ResultMetrics
	requestMetrics   *RequestMetrics

	// Caps the rule_id label; rule bases are small but user supplied.
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering into registry. If registry
// is nil a fresh one is created. Empty namespace, subsystem and buckets are
// filled with defaults.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng, err := engine.New(compiled, policy, engine.WithObserver(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := *cfg
	if c.Namespace == "" {
		c.Namespace = config.DefaultMetricsNamespace
	}
	if c.Subsystem == "" {
		c.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(c.EvaluationBuckets) == 0 {
		c.EvaluationBuckets = config.DefaultEvaluationBuckets()
	}

	return &Collector{
		config:             &c,
		registry:           registry,
		inferenceMetrics:   NewInferenceMetrics(&c, registry),
		compileMetrics:     NewCompileMetrics(&c, registry),
		resultMetrics:      NewResultMetrics(&c, registry),
		requestMetrics:     NewRequestMetrics(&c, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}
}

// ObserveInference records one evaluated scene.
func (c *Collector) ObserveInference(ruleIDs []int, defaulted, overridden bool, removed int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	labels := make([]string, len(ruleIDs))
	for i, id := range ruleIDs {
		l := ruleLabel(id)
		if !c.cardinalityLimiter.Allow(l) {
			l = "other"
		}
		labels[i] = l
	}
	c.inferenceMetrics.RecordEvaluation(labels, defaulted, overridden, removed, duration)
}

// ObserveSceneError records a scene rejected as malformed.
func (c *Collector) ObserveSceneError(section string) {
	if !c.config.Enabled {
		return
	}
	c.inferenceMetrics.RecordSceneError(section)
}

// RecordCompile records a successful compilation.
func (c *Collector) RecordCompile(stats compiler.Stats) {
	if !c.config.Enabled {
		return
	}
	c.compileMetrics.RecordCompile(stats)
}

// RecordCompileError records a failed load or compilation.
func (c *Collector) RecordCompileError() {
	if !c.config.Enabled {
		return
	}
	c.compileMetrics.RecordCompileError()
}

// RecordReload records a hot reload attempt.
func (c *Collector) RecordReload(success bool) {
	if !c.config.Enabled {
		return
	}
	c.compileMetrics.RecordReload(success)
}

// RecordBatch records a finished batch run.
func (c *Collector) RecordBatch(evaluated, cached, failed int, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}
	c.resultMetrics.RecordBatch(evaluated, cached, failed, duration, err)
}

// RecordStored records a result store write.
func (c *Collector) RecordStored(backend string, err error) {
	if !c.config.Enabled {
		return
	}
	c.resultMetrics.RecordStored(backend, err)
}

// RecordPruned records results removed by retention.
func (c *Collector) RecordPruned(n int64) {
	if !c.config.Enabled {
		return
	}
	c.resultMetrics.RecordPruned(n)
}

// RecordRequest records a served HTTP request.
func (c *Collector) RecordRequest(route string, code int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRequest(route, code, duration)
}

// RequestStarted and RequestFinished track in-flight HTTP requests.
func (c *Collector) RequestStarted() {
	if c.config.Enabled {
		c.requestMetrics.InFlight(1)
	}
}

// RequestFinished is the counterpart of RequestStarted.
func (c *Collector) RequestFinished() {
	if c.config.Enabled {
		c.requestMetrics.InFlight(-1)
	}
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality
// distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or there is still room for
// it.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
