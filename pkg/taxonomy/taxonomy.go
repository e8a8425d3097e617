// Package taxonomy maps class terms to the concrete terms they stand for and
// expands condition atoms over those classes.
//
// A rule written against a class ("ego, approaching, vulnerable_road_user")
// is generalized into one concrete atom per member of the class
// ("ego, approaching, pedestrian", "ego, approaching, cyclist", ...). When an
// atom holds several class terms the expansion is the cartesian product over
// term positions.
package taxonomy

import (
	"fmt"
	"sort"

	"drivelogic-hq/reasoner/pkg/atom"
)

// Taxonomy is an immutable class → members mapping. The zero value is an
// empty taxonomy in which every term stands for itself.
type Taxonomy struct {
	classes map[string][]string
}

// New builds a taxonomy. Each class is guaranteed to contain itself: the
// class term is prepended when the member list omits it. Duplicate members
// are dropped, keeping first-seen order. A class with no members at all is a
// ConfigurationError.
func New(classes map[string][]string) (*Taxonomy, error) {
	t := &Taxonomy{classes: make(map[string][]string, len(classes))}

	for class, members := range classes {
		if class == "" {
			return nil, &ConfigurationError{Message: "class term must not be empty"}
		}
		if len(members) == 0 {
			return nil, &ConfigurationError{Class: class, Message: "class has no members"}
		}

		seen := make(map[string]bool, len(members)+1)
		normalized := make([]string, 0, len(members)+1)
		if !contains(members, class) {
			normalized = append(normalized, class)
			seen[class] = true
		}
		for _, m := range members {
			if m == "" {
				return nil, &ConfigurationError{Class: class, Message: "empty member term"}
			}
			if seen[m] {
				continue
			}
			seen[m] = true
			normalized = append(normalized, m)
		}
		t.classes[class] = normalized
	}

	return t, nil
}

// MustNew is like New but panics on error.
func MustNew(classes map[string][]string) *Taxonomy {
	t, err := New(classes)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the road-user taxonomy the shipped UK rule base is
// written against.
func Default() *Taxonomy {
	return MustNew(map[string][]string{
		"road_user":            {"road_user", "car", "van", "bus", "truck", "motorcyclist", "cyclist", "pedestrian", "scooter"},
		"vehicle":              {"vehicle", "car", "van"},
		"large_vehicle":        {"large_vehicle", "bus", "truck"},
		"vulnerable_road_user": {"vulnerable_road_user", "cyclist", "motorcyclist", "pedestrian", "scooter"},
	})
}

// Lookup returns the concrete terms a term may stand for. Terms that are not
// classes stand only for themselves. The returned slice must not be
// modified.
func (t *Taxonomy) Lookup(term string) []string {
	if t != nil {
		if members, ok := t.classes[term]; ok {
			return members
		}
	}
	return []string{term}
}

// IsClass reports whether term is a class in the taxonomy.
func (t *Taxonomy) IsClass(term string) bool {
	if t == nil {
		return false
	}
	_, ok := t.classes[term]
	return ok
}

// Classes returns the class terms in sorted order.
func (t *Taxonomy) Classes() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.classes))
	for c := range t.classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Map returns a copy of the class → members mapping.
func (t *Taxonomy) Map() map[string][]string {
	out := make(map[string][]string)
	if t == nil {
		return out
	}
	for c, m := range t.classes {
		out[c] = append([]string(nil), m...)
	}
	return out
}

// Expand returns every concrete atom a generalizes to, in lexicographic
// order of candidate indices (the rightmost term varies fastest).
func (t *Taxonomy) Expand(a atom.Atom) ([]atom.Atom, error) {
	terms := a.Terms()
	if len(terms) == 0 {
		return nil, &ConfigurationError{Atom: a, Message: "atom has no terms"}
	}

	candidates := make([][]string, len(terms))
	for i, term := range terms {
		c := t.Lookup(term)
		if len(c) == 0 {
			return nil, &ConfigurationError{
				Class:   term,
				Atom:    a,
				Message: fmt.Sprintf("term at position %d has no candidates", i),
			}
		}
		candidates[i] = c
	}

	var out []atom.Atom
	Product(candidates, func(choice []string) {
		out = append(out, atom.Join(choice...))
	})
	return out, nil
}

// Product calls fn once per element of the cartesian product of sets. The
// slice passed to fn is reused between calls. An empty sets argument yields
// one empty tuple; any empty set yields nothing.
func Product[T any](sets [][]T, fn func([]T)) {
	for _, s := range sets {
		if len(s) == 0 {
			return
		}
	}

	idx := make([]int, len(sets))
	choice := make([]T, len(sets))
	for {
		for i, j := range idx {
			choice[i] = sets[i][j]
		}
		fn(choice)

		// advance the odometer, rightmost position first
		pos := len(sets) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(sets[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
