package taxonomy

import (
	"fmt"

	"drivelogic-hq/reasoner/pkg/atom"
)

// ConfigurationError indicates a taxonomy that cannot be used for expansion,
// such as a class with no member terms.
type ConfigurationError struct {
	Class   string
	Atom    atom.Atom
	Message string
}

// Error returns the error message.
func (e *ConfigurationError) Error() string {
	switch {
	case e.Atom != "" && e.Class != "":
		return fmt.Sprintf("taxonomy: expanding %q: class %q: %s", e.Atom, e.Class, e.Message)
	case e.Atom != "":
		return fmt.Sprintf("taxonomy: expanding %q: %s", e.Atom, e.Message)
	case e.Class != "":
		return fmt.Sprintf("taxonomy: class %q: %s", e.Class, e.Message)
	default:
		return "taxonomy: " + e.Message
	}
}
