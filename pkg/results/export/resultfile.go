package export

import (
	"context"
	"encoding/json"
	"io"

	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/results"
)

// SceneEntry is one scene in a result file.
type SceneEntry struct {
	Actions    []engine.FiredRule `json:"actions_to_take"`
	Intentions []string           `json:"intention"`
}

// ResultFileExporter writes the result-file shape consumed by downstream
// checks:
//
//	{"<scene>": {"actions_to_take": [{"rule_id": 3, "action": "..."}], "intention": [...]}}
//
// Failed records are left out. When a scene has several records the newest
// wins.
type ResultFileExporter struct {
	Pretty bool
}

// NewResultFileExporter creates a result-file exporter.
func NewResultFileExporter(pretty bool) *ResultFileExporter {
	return &ResultFileExporter{Pretty: pretty}
}

// Export writes records as a single JSON object keyed by scene id.
func (e *ResultFileExporter) Export(ctx context.Context, records []*results.Record, w io.Writer) error {
	file := Collect(records)

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(file); err != nil {
		return results.NewExportError("result", len(records), err)
	}
	return nil
}

// Collect builds the result-file map from records.
func Collect(records []*results.Record) map[string]SceneEntry {
	file := make(map[string]SceneEntry, len(records))
	newest := make(map[string]*results.Record, len(records))

	for _, r := range records {
		if r.Failed() {
			continue
		}
		if prev, ok := newest[r.SceneID]; ok && !r.EvaluatedAt.After(prev.EvaluatedAt) {
			continue
		}
		newest[r.SceneID] = r

		entry := SceneEntry{
			Actions:    r.Fired,
			Intentions: r.Intentions,
		}
		if entry.Actions == nil {
			entry.Actions = []engine.FiredRule{}
		}
		if entry.Intentions == nil {
			entry.Intentions = []string{}
		}
		file[r.SceneID] = entry
	}
	return file
}
