package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"drivelogic-hq/reasoner/pkg/results"
)

// CSVExporter writes one row per record. Fired rules are flattened to
// "id:action" pairs separated by semicolons.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var csvHeader = []string{
	"id", "run_id", "scene_id", "fingerprint",
	"actions", "intentions", "defaulted", "overridden",
	"error", "evaluated_at", "duration_ms",
}

// Export writes records to w in CSV format.
func (e *CSVExporter) Export(ctx context.Context, records []*results.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return results.NewExportError("csv", len(records), err)
		}
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(recordToRow(r)); err != nil {
			return results.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return results.NewExportError("csv", len(records), err)
	}
	return nil
}

func recordToRow(r *results.Record) []string {
	actions := make([]string, len(r.Fired))
	for i, f := range r.Fired {
		actions[i] = strconv.Itoa(f.RuleID) + ":" + f.Action
	}

	return []string{
		r.ID,
		r.RunID,
		r.SceneID,
		r.Fingerprint,
		strings.Join(actions, ";"),
		strings.Join(r.Intentions, ";"),
		strconv.FormatBool(r.Defaulted),
		strconv.FormatBool(r.Overridden),
		r.Error,
		r.EvaluatedAt.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(float64(r.Duration)/float64(time.Millisecond), 'f', 3, 64),
	}
}
