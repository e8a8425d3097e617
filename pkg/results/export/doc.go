// Package export writes stored results to files.
//
// The "result" format is the per-scene result file keyed by scene id;
// "json" dumps full records; "csv" flattens them to one row each.
package export
