package scene

import (
	"errors"
	"fmt"
	"strings"

	"drivelogic-hq/reasoner/pkg/atom"
)

// ErrArity indicates a tuple with the wrong number of terms.
var ErrArity = errors.New("wrong number of terms")

// Derived fact atoms.
const (
	factTurnIntent    atom.Atom = "ego, intend, turn"
	factNotOvertaken  atom.Atom = "road_users, are, not_begin_overtake_ego"
	factFrontRelevant atom.Atom = "road_user, same_lane_front_relevant, ego"
)

const (
	roadUserClass      = "road_user"
	turnIntentPrefix   = "turn"
	defaultOvertakeTag = "overtake_ego"
)

// FactSet is an insertion-ordered set of fact atoms.
type FactSet struct {
	atoms []atom.Atom
	index map[atom.Atom]struct{}
}

// NewFactSet returns a fact set holding atoms, in order, without duplicates.
func NewFactSet(atoms ...atom.Atom) FactSet {
	var fs FactSet
	for _, a := range atoms {
		fs.Add(a)
	}
	return fs
}

// Add inserts a if it is not already present and reports whether it was
// added.
func (fs *FactSet) Add(a atom.Atom) bool {
	if fs.index == nil {
		fs.index = make(map[atom.Atom]struct{})
	}
	if _, ok := fs.index[a]; ok {
		return false
	}
	fs.index[a] = struct{}{}
	fs.atoms = append(fs.atoms, a)
	return true
}

// Contains reports whether a is in the set.
func (fs FactSet) Contains(a atom.Atom) bool {
	_, ok := fs.index[a]
	return ok
}

// Atoms returns the facts in insertion order.
func (fs FactSet) Atoms() []atom.Atom {
	return append([]atom.Atom(nil), fs.atoms...)
}

// Len returns the number of facts.
func (fs FactSet) Len() int {
	return len(fs.atoms)
}

// Strings returns the facts as plain strings.
func (fs FactSet) Strings() []string {
	out := make([]string, len(fs.atoms))
	for i, a := range fs.atoms {
		out[i] = string(a)
	}
	return out
}

// Options tune fact derivation.
type Options struct {
	// OvertakeMarker is the road-user state meaning "overtaking ego".
	OvertakeMarker string

	// FrontPositions are road-user positions that put the user ahead of ego
	// in its lane.
	FrontPositions []string
}

// DefaultOptions returns the options used by the shipped rule base.
func DefaultOptions() Options {
	return Options{
		OvertakeMarker: defaultOvertakeTag,
		FrontPositions: []string{"in_front_of", "same_lane_relevant"},
	}
}

// Facts is the compiled form of a description.
type Facts struct {
	// FactSet holds every fact used for rule matching.
	FactSet FactSet

	// Intentions lists the stated intents in order, duplicates included.
	Intentions []string

	// BeingOvertaken is set when a road user carries the overtake marker.
	BeingOvertaken bool
}

// Compile derives the fact set of desc. Zero-valued fields of opts fall back
// to DefaultOptions.
func Compile(desc Description, opts Options) (*Facts, error) {
	def := DefaultOptions()
	if opts.OvertakeMarker == "" {
		opts.OvertakeMarker = def.OvertakeMarker
	}
	if opts.FrontPositions == nil {
		opts.FrontPositions = def.FrontPositions
	}

	out := &Facts{Intentions: []string{}}
	fs := &out.FactSet

	for i, s := range desc.Situation {
		a, err := atom.Parse(s)
		if err != nil {
			return nil, &ParseError{Section: SectionSituation, Index: i, Statement: s, Cause: err}
		}
		fs.Add(a)
	}

	for i, s := range desc.ControlDevice {
		t, err := tuple(s, 4)
		if err != nil {
			return nil, &ParseError{Section: SectionControlDevice, Index: i, Statement: s, Cause: err}
		}
		device, previous, current := t[0], t[2], t[3]
		fs.Add(atom.Join(device, "is", "exist"))
		fs.Add(atom.Join(device, "status", "exist"))
		fs.Add(atom.Join(device, "was", previous))
		fs.Add(atom.Join(device, "is", current))
		fs.Add(atom.Join(device, "status", current))
	}

	for i, s := range desc.RoadUser {
		t, err := tuple(s, 4)
		if err != nil {
			return nil, &ParseError{Section: SectionRoadUser, Index: i, Statement: s, Cause: err}
		}
		user, position, current := t[0], t[1], t[3]
		fs.Add(atom.Join(roadUserClass, position, "ego"))
		fs.Add(atom.Join(roadUserClass, "is", current))
		fs.Add(atom.Join(roadUserClass, "status", current))
		fs.Add(atom.Join(user, position, current))
		fs.Add(atom.Join(user, position, "ego"))
		fs.Add(atom.Join(user, "is", "exist"))
		fs.Add(atom.Join(user, "status", "exist"))
		fs.Add(atom.Join(user, "status", current))
		if contains(opts.FrontPositions, position) {
			fs.Add(atom.Join("ego", "approaching", user))
			fs.Add(atom.Join(user, "same_lane_front_of", "ego"))
			fs.Add(factFrontRelevant)
		}
		if current == opts.OvertakeMarker {
			out.BeingOvertaken = true
		}
	}
	if !out.BeingOvertaken {
		fs.Add(factNotOvertaken)
	}

	for i, s := range desc.Intention {
		t, err := tuple(s, 2)
		if err != nil {
			return nil, &ParseError{Section: SectionIntention, Index: i, Statement: s, Cause: err}
		}
		intent := t[1]
		if strings.HasPrefix(intent, turnIntentPrefix) {
			fs.Add(factTurnIntent)
		}
		fs.Add(atom.Join("ego", "intend", intent))
		out.Intentions = append(out.Intentions, intent)
	}

	return out, nil
}

func tuple(s string, arity int) ([]string, error) {
	terms, err := atom.Terms(s)
	if err != nil {
		return nil, err
	}
	if len(terms) != arity {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrArity, len(terms), arity)
	}
	return terms, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
