package source

import (
	"context"
	"time"

	"drivelogic-hq/reasoner/pkg/rulebase"
	"drivelogic-hq/reasoner/pkg/taxonomy"
)

// Bundle is everything the compiler needs.
type Bundle struct {
	Rules    *rulebase.RuleBase
	Taxonomy *taxonomy.Taxonomy
}

// Event reports a change to a rule base source.
type Event struct {
	// Path is the file that changed, empty for in-memory sources.
	Path string

	// Op is the file operation ("WRITE", "CREATE", "RENAME", ...) or
	// "SET" for in-memory sources.
	Op string

	Time time.Time
}

// Source supplies rule bases.
type Source interface {
	// Load returns the current rule base and taxonomy.
	Load(ctx context.Context) (*Bundle, error)

	// Watch returns a channel of change events. Bursts of events are
	// coalesced. The channel is closed when ctx is cancelled.
	Watch(ctx context.Context) (<-chan Event, error)
}
