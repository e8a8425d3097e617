package metrics

import (
	"drivelogic-hq/reasoner/pkg/compiler"
	"drivelogic-hq/reasoner/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CompileMetrics tracks rule base compilation and hot reload.
//
// Metrics:
//   - drivelogic_reasoner_compilations_total: Compilations by status
//   - drivelogic_reasoner_compile_duration_seconds: Compilation latency
//   - drivelogic_reasoner_rules: Rules in the active rule base by state
//   - drivelogic_reasoner_condition_atoms: Size of the identifier table
//   - drivelogic_reasoner_trie_nodes: Trie nodes including the root
//   - drivelogic_reasoner_reloads_total: Hot reloads by status
type CompileMetrics struct {
	compilationsTotal *prometheus.CounterVec
	compileDuration   prometheus.Histogram
	rules             *prometheus.GaugeVec
	atoms             prometheus.Gauge
	nodes             prometheus.Gauge
	reloadsTotal      *prometheus.CounterVec
}

// NewCompileMetrics creates and registers compile metrics with the provided
// registry.
func NewCompileMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CompileMetrics {
	cm := &CompileMetrics{
		compilationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "compilations_total",
				Help:      "Total number of rule base compilations",
			},
			[]string{"status"},
		),

		compileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "compile_duration_seconds",
				Help:      "Duration of rule base compilation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
			},
		),

		rules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules",
				Help:      "Rules in the active rule base",
			},
			[]string{"state"},
		),

		atoms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "condition_atoms",
				Help:      "Number of concrete condition atoms in the identifier table",
			},
		),

		nodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "trie_nodes",
				Help:      "Number of rule trie nodes including the root",
			},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reloads_total",
				Help:      "Total number of rule base hot reloads",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		cm.compilationsTotal,
		cm.compileDuration,
		cm.rules,
		cm.atoms,
		cm.nodes,
		cm.reloadsTotal,
	)

	return cm
}

// RecordCompile records a successful compilation and publishes its shape.
func (cm *CompileMetrics) RecordCompile(stats compiler.Stats) {
	cm.compilationsTotal.WithLabelValues("success").Inc()
	cm.compileDuration.Observe(stats.Duration.Seconds())
	cm.rules.WithLabelValues("compiled").Set(float64(stats.Compiled))
	cm.rules.WithLabelValues("excluded").Set(float64(stats.Excluded))
	cm.atoms.Set(float64(stats.Atoms))
	cm.nodes.Set(float64(stats.Nodes))
}

// RecordCompileError records a compilation or load failure.
func (cm *CompileMetrics) RecordCompileError() {
	cm.compilationsTotal.WithLabelValues("error").Inc()
}

// RecordReload records a hot reload attempt.
func (cm *CompileMetrics) RecordReload(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	cm.reloadsTotal.WithLabelValues(status).Inc()
}
