package export

import (
	"fmt"

	"drivelogic-hq/reasoner/pkg/results"
)

// Format names accepted by New.
const (
	FormatResult = "result"
	FormatJSON   = "json"
	FormatCSV    = "csv"
)

// New returns the exporter for format.
func New(format string, pretty bool) (results.Exporter, error) {
	switch format {
	case "", FormatResult:
		return NewResultFileExporter(pretty), nil
	case FormatJSON:
		return NewJSONExporter(pretty), nil
	case FormatCSV:
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want result, json or csv)", format)
	}
}
