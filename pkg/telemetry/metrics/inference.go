package metrics

import (
	"strconv"
	"time"

	"drivelogic-hq/reasoner/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// InferenceMetrics tracks scene evaluation.
//
// Metrics:
//   - drivelogic_reasoner_scenes_evaluated_total: Scenes evaluated by outcome
//   - drivelogic_reasoner_rules_fired_total: Fired records by rule id
//   - drivelogic_reasoner_default_actions_total: Scenes that received the default action
//   - drivelogic_reasoner_overrides_total: Scenes that received the start override
//   - drivelogic_reasoner_exclusions_removed_total: Records removed by exclusions
//   - drivelogic_reasoner_evaluation_duration_seconds: Evaluation latency
//   - drivelogic_reasoner_scene_errors_total: Malformed scenes by section
type InferenceMetrics struct {
	scenesTotal        *prometheus.CounterVec
	rulesFired         *prometheus.CounterVec
	defaultsTotal      prometheus.Counter
	overridesTotal     prometheus.Counter
	exclusionsRemoved  prometheus.Counter
	evaluationDuration prometheus.Histogram
	sceneErrors        *prometheus.CounterVec
}

// NewInferenceMetrics creates and registers inference metrics with the
// provided registry.
func NewInferenceMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *InferenceMetrics {
	im := &InferenceMetrics{
		scenesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "scenes_evaluated_total",
				Help:      "Total number of scenes evaluated",
			},
			[]string{"outcome"},
		),

		rulesFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_fired_total",
				Help:      "Total number of fired-rule records in final results",
			},
			[]string{"rule_id"},
		),

		defaultsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "default_actions_total",
				Help:      "Number of scenes where no elevated rule fired",
			},
		),

		overridesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "overrides_total",
				Help:      "Number of scenes that received the start override",
			},
		),

		exclusionsRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "exclusions_removed_total",
				Help:      "Number of fired-rule records removed by exclusion pairs",
			},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of scene evaluation in seconds",
				Buckets:   cfg.EvaluationBuckets,
			},
		),

		sceneErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "scene_errors_total",
				Help:      "Number of scenes rejected as malformed, by description section",
			},
			[]string{"section"},
		),
	}

	registry.MustRegister(
		im.scenesTotal,
		im.rulesFired,
		im.defaultsTotal,
		im.overridesTotal,
		im.exclusionsRemoved,
		im.evaluationDuration,
		im.sceneErrors,
	)

	return im
}

// RecordEvaluation records one successful evaluation.
func (im *InferenceMetrics) RecordEvaluation(ruleLabels []string, defaulted, overridden bool, removed int, duration time.Duration) {
	im.scenesTotal.WithLabelValues("ok").Inc()
	for _, l := range ruleLabels {
		im.rulesFired.WithLabelValues(l).Inc()
	}
	if defaulted {
		im.defaultsTotal.Inc()
	}
	if overridden {
		im.overridesTotal.Inc()
	}
	if removed > 0 {
		im.exclusionsRemoved.Add(float64(removed))
	}
	im.evaluationDuration.Observe(duration.Seconds())
}

// RecordSceneError records a malformed scene.
func (im *InferenceMetrics) RecordSceneError(section string) {
	if section == "" {
		section = "unknown"
	}
	im.scenesTotal.WithLabelValues("error").Inc()
	im.sceneErrors.WithLabelValues(section).Inc()
}

func ruleLabel(id int) string {
	return strconv.Itoa(id)
}
