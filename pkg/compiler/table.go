package compiler

import (
	"drivelogic-hq/reasoner/pkg/atom"
	"drivelogic-hq/reasoner/pkg/diag"
)

// ConditionID is the dense identifier an atom is interned to.
type ConditionID int

// Table is the bijection between concrete condition atoms and their
// identifiers. Identifiers are assigned 0, 1, 2, ... in first-seen order.
// A Table is immutable once compilation returns.
type Table struct {
	ids   map[atom.Atom]ConditionID
	atoms []atom.Atom
}

func newTable() *Table {
	return &Table{ids: make(map[atom.Atom]ConditionID)}
}

// intern returns the id of a, assigning the next id if a is new.
func (t *Table) intern(a atom.Atom) ConditionID {
	if id, ok := t.ids[a]; ok {
		return id
	}
	id := ConditionID(len(t.atoms))
	t.ids[a] = id
	t.atoms = append(t.atoms, a)
	return id
}

// ID returns the identifier of a and whether a is in the table.
func (t *Table) ID(a atom.Atom) (ConditionID, bool) {
	id, ok := t.ids[a]
	return id, ok
}

// Atom returns the atom with the given identifier.
func (t *Table) Atom(id ConditionID) (atom.Atom, bool) {
	if id < 0 || int(id) >= len(t.atoms) {
		return "", false
	}
	return t.atoms[id], true
}

// Len returns the number of interned atoms.
func (t *Table) Len() int {
	return len(t.atoms)
}

// Entries returns the table in identifier order.
func (t *Table) Entries() []diag.Entry {
	out := make([]diag.Entry, len(t.atoms))
	for i, a := range t.atoms {
		out[i] = diag.Entry{ID: i, Atom: string(a)}
	}
	return out
}
