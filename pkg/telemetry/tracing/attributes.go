package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"drivelogic-hq/reasoner/pkg/compiler"
)

// Attribute keys shared by the reasoner's spans.
const (
	AttrSceneID     = attribute.Key("drivelogic.scene_id")
	AttrRunID       = attribute.Key("drivelogic.run_id")
	AttrFingerprint = attribute.Key("drivelogic.rules.fingerprint")
	AttrRules       = attribute.Key("drivelogic.rules.count")
	AttrExcluded    = attribute.Key("drivelogic.rules.excluded")
	AttrAtoms       = attribute.Key("drivelogic.rules.atoms")
	AttrNodes       = attribute.Key("drivelogic.rules.nodes")
	AttrScenes      = attribute.Key("drivelogic.batch.scenes")
	AttrCached      = attribute.Key("drivelogic.batch.cached")
	AttrFailed      = attribute.Key("drivelogic.batch.failed")
	AttrWorkers     = attribute.Key("drivelogic.batch.workers")
)

// SetRuleBaseAttributes describes a compiled rule base on span.
func SetRuleBaseAttributes(span trace.Span, fingerprint string, stats compiler.Stats) {
	span.SetAttributes(
		AttrFingerprint.String(fingerprint),
		AttrRules.Int(stats.Compiled),
		AttrExcluded.Int(stats.Excluded),
		AttrAtoms.Int(stats.Atoms),
		AttrNodes.Int(stats.Nodes),
	)
}

// BatchAttributes returns the start attributes of a batch run span.
func BatchAttributes(runID string, scenes, workers int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRunID.String(runID),
		AttrScenes.Int(scenes),
		AttrWorkers.Int(workers),
	}
}

// SetBatchOutcome records how a batch run ended.
func SetBatchOutcome(span trace.Span, cached, failed int) {
	span.SetAttributes(
		AttrCached.Int(cached),
		AttrFailed.Int(failed),
	)
}
