package scene

import "fmt"

// ParseError indicates a malformed statement in a scene description.
type ParseError struct {
	// Section is the description section holding the statement.
	Section string

	// Index is the position of the statement within its section.
	Index int

	// Statement is the raw statement text.
	Statement string

	Cause error
}

// Error returns the error message.
func (e *ParseError) Error() string {
	return fmt.Sprintf("scene %s[%d] %q: %v", e.Section, e.Index, e.Statement, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
