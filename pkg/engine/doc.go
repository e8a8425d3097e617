// Package engine decides the driving actions for a scene.
//
// Inference runs in two stages. Matching walks the compiled rule trie with
// the scene's fact identifiers in ascending order, keeping an append-only
// list of active nodes; a rule fires when the node ending one of its
// condition sets becomes active. Because rule paths and facts share one
// total order, matching a path as an ordered subsequence of the facts is
// the same as testing it for inclusion.
//
// The policy then adjusts the fired set:
//
//  1. a signal changing from red or amber to green adds the start record;
//  2. if no elevated rule fired, the default action is added once;
//  3. exclusion pairs remove overridden rules, in declared order.
//
// Basic usage:
//
//	compiled, err := compiler.Compile(ctx, rb.Rules, tax)
//	if err != nil {
//		return err
//	}
//	eng, err := engine.New(compiled, engine.DefaultPolicy(), engine.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	result, err := eng.Reason(ctx, "seg_001", desc)
package engine
