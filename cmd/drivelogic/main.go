// Drivelogic is a rule-based reasoner for driving scenes.
//
// It compiles a rule base of condition → action rules over a driving
// taxonomy and evaluates scene descriptions against it, returning the
// actions to take for each scene:
//   - Batch evaluation of scene files into a result file
//   - An HTTP API for single and batch evaluation
//   - Result storage with retention and export
//   - Rule base linting and compile diagnostics
//
// Usage:
//
//	# Evaluate a scene file and write result.json
//	drivelogic reason scenes.json
//
//	# Show how the rule base compiles
//	drivelogic compile --dump
//
//	# Validate rules, taxonomy and scenes
//	drivelogic lint --scenes scenes.json
//
//	# Serve the HTTP API with hot reload of the rule base
//	drivelogic serve --config config.yaml
//
//	# Query stored results
//	drivelogic results list --scene s12 --format json
package main

func main() {
	Execute()
}
