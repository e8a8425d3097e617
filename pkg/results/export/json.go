package export

import (
	"context"
	"encoding/json"
	"io"

	"drivelogic-hq/reasoner/pkg/results"
)

// JSONExporter writes full records as a JSON array.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records to w. An empty slice is written as "[]".
func (e *JSONExporter) Export(ctx context.Context, records []*results.Record, w io.Writer) error {
	if records == nil {
		records = []*results.Record{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return results.NewExportError("json", len(records), err)
	}

	if _, err := w.Write(data); err != nil {
		return results.NewExportError("json", len(records), err)
	}
	return nil
}
