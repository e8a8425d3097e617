// Package results stores evaluation results.
//
// A Record is one scene evaluated against one rule base, identified by the
// rule base fingerprint. The batch runner consults Store.Latest before
// evaluating a scene and skips it when a successful record for the same
// fingerprint exists, so re-running a batch only evaluates what changed.
//
// Backends live in results/storage (in-memory and SQLite); exporters to
// the result-file JSON shape and CSV live in results/export; scheduled
// pruning lives in results/retention.
package results
