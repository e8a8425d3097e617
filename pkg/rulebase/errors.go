package rulebase

import (
	"fmt"
	"strings"
)

// LoadError indicates a rule base or taxonomy file could not be loaded.
type LoadError struct {
	Path  string
	Cause error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %q: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Problem is a single validation finding.
type Problem struct {
	// Index is the position of the rule in the rule base.
	Index int

	// RuleID is the id of the offending rule (0 if unknown).
	RuleID int

	Message string
}

// String formats the problem.
func (p Problem) String() string {
	return fmt.Sprintf("rule #%d (id %d): %s", p.Index, p.RuleID, p.Message)
}

// ValidationError collects every problem found in a rule base.
type ValidationError struct {
	Problems []Problem
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid rule base: " + e.Problems[0].String()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid rule base: %d problems:", len(e.Problems))
	for _, p := range e.Problems {
		sb.WriteString("\n  - ")
		sb.WriteString(p.String())
	}
	return sb.String()
}
