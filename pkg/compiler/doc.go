// Package compiler turns a rule base and a taxonomy into the structures the
// inference engine matches against.
//
// # Compilation
//
// Every rule condition is expanded over the taxonomy, and the cartesian
// product across a rule's conditions gives the rule's alternative concrete
// condition sets. Each concrete atom is interned into a dense ConditionID
// (first-seen order), and each condition set becomes a path of ascending
// ids in a trie whose final node carries the rule as a Leaf:
//
//	rules + taxonomy
//	       ↓
//	expand conditions (taxonomy.Expand) → product across conditions
//	       ↓
//	intern atoms → sort ids → insert path → attach Leaf{RuleID, Action}
//
// Rules sharing a sorted id prefix share trie nodes. A rule without
// conditions attaches its leaf to the root.
//
// # Immutability
//
// The returned Compiled value is never modified after Compile returns and
// may be shared by any number of concurrent evaluations.
package compiler
