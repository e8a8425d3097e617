package metrics

import (
	"time"

	"drivelogic-hq/reasoner/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ResultMetrics tracks batch runs and the result store.
//
// Metrics:
//   - drivelogic_reasoner_batch_runs_total: Batch runs by status
//   - drivelogic_reasoner_batch_duration_seconds: Batch wall time
//   - drivelogic_reasoner_batch_scenes_total: Scenes handled by batch runs, by outcome
//   - drivelogic_reasoner_results_stored_total: Store writes by backend and status
//   - drivelogic_reasoner_results_pruned_total: Records removed by retention
//
// Scenes with outcome "cached" had a stored result for the same rule base
// and were not evaluated again.
type ResultMetrics struct {
	batchRuns     *prometheus.CounterVec
	batchDuration prometheus.Histogram
	batchScenes   *prometheus.CounterVec
	stored        *prometheus.CounterVec
	pruned        prometheus.Counter
}

// NewResultMetrics creates and registers result metrics with the provided
// registry.
func NewResultMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ResultMetrics {
	rm := &ResultMetrics{
		batchRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batch_runs_total",
				Help:      "Total number of batch runs",
			},
			[]string{"status"},
		),

		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batch_duration_seconds",
				Help:      "Duration of batch runs in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),

		batchScenes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "batch_scenes_total",
				Help:      "Scenes handled by batch runs",
			},
			[]string{"outcome"},
		),

		stored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "results_stored_total",
				Help:      "Total number of result store writes",
			},
			[]string{"backend", "status"},
		),

		pruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "results_pruned_total",
				Help:      "Total number of results removed by retention",
			},
		),
	}

	registry.MustRegister(
		rm.batchRuns,
		rm.batchDuration,
		rm.batchScenes,
		rm.stored,
		rm.pruned,
	)

	return rm
}

// RecordBatch records a finished batch run.
func (rm *ResultMetrics) RecordBatch(evaluated, cached, failed int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	rm.batchRuns.WithLabelValues(status).Inc()
	rm.batchDuration.Observe(duration.Seconds())
	rm.batchScenes.WithLabelValues("evaluated").Add(float64(evaluated))
	rm.batchScenes.WithLabelValues("cached").Add(float64(cached))
	rm.batchScenes.WithLabelValues("failed").Add(float64(failed))
}

// RecordStored records one store write.
func (rm *ResultMetrics) RecordStored(backend string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	rm.stored.WithLabelValues(backend, status).Inc()
}

// RecordPruned records records removed by retention.
func (rm *ResultMetrics) RecordPruned(n int64) {
	if n > 0 {
		rm.pruned.Add(float64(n))
	}
}
