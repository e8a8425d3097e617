// Package runner evaluates scene files in batches.
//
// Scenes are evaluated concurrently by a bounded errgroup. With a result
// store attached, every evaluation is recorded and scenes that already have
// a successful result for the current rule base fingerprint are reused
// instead of evaluated again.
package runner
