// Package atom normalizes the comma-separated term tuples used both as rule
// conditions and as scene facts.
//
// An atom is stored in canonical form: terms trimmed of surrounding
// whitespace and joined with ", ". Canonicalization makes
// "traffic_light,was,red" and "(traffic_light, was,  red)" the same atom, so
// atoms can be compared and interned as plain strings.
package atom

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins terms in the canonical atom form.
const Separator = ", "

// Atom is a canonical "term, term, ..." tuple.
type Atom string

var (
	// ErrEmpty indicates an atom with no terms.
	ErrEmpty = errors.New("empty atom")

	// ErrEmptyTerm indicates an atom with a blank term between separators.
	ErrEmptyTerm = errors.New("empty term")
)

// Parse canonicalizes s. One pair of enclosing parentheses is stripped,
// the remainder is split on commas and every term is trimmed. Blank terms
// are rejected.
func Parse(s string) (Atom, error) {
	terms, err := Terms(s)
	if err != nil {
		return "", err
	}
	return Join(terms...), nil
}

// MustParse is like Parse but panics on error. Intended for constants and
// tests.
func MustParse(s string) Atom {
	a, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("atom: %q: %v", s, err))
	}
	return a
}

// Terms splits s into trimmed terms after stripping enclosing parentheses.
func Terms(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	if strings.TrimSpace(s) == "" {
		return nil, ErrEmpty
	}

	parts := strings.Split(s, ",")
	terms := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w at position %d", ErrEmptyTerm, i)
		}
		terms = append(terms, p)
	}
	return terms, nil
}

// Join builds the canonical atom from already-trimmed terms.
func Join(terms ...string) Atom {
	return Atom(strings.Join(terms, Separator))
}

// Terms returns the terms of a canonical atom.
func (a Atom) Terms() []string {
	if a == "" {
		return nil
	}
	return strings.Split(string(a), Separator)
}

// Arity returns the number of terms.
func (a Atom) Arity() int {
	if a == "" {
		return 0
	}
	return strings.Count(string(a), Separator) + 1
}

// String implements fmt.Stringer.
func (a Atom) String() string {
	return string(a)
}
