package rulebase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is a conjunctive traffic rule: when every condition holds, Action is
// triggered. A rule with no conditions always fires.
type Rule struct {
	// ID identifies the rule. Policy sets (elevated rules, exclusions) refer
	// to rules by ID.
	ID int `json:"id" yaml:"id"`

	// Action is the driving action the rule triggers (e.g. "reduce_speed").
	Action string `json:"action" yaml:"action"`

	// Conditions are "term, term, ..." atoms that must all hold.
	Conditions []string `json:"conditions" yaml:"conditions"`
}

// ruleDoc is the on-disk shape of a rule. Rule files written by hand carry
// the id either as a number or a quoted string.
type ruleDoc struct {
	ID         string   `json:"-" yaml:"id"`
	Action     string   `json:"action" yaml:"action"`
	Conditions []string `json:"conditions" yaml:"conditions"`
}

// UnmarshalYAML accepts numeric and string ids.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	var doc ruleDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	return r.fromDoc(doc)
}

// UnmarshalJSON accepts numeric and string ids.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw struct {
		ruleDoc
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	doc := raw.ruleDoc
	doc.ID = strings.Trim(string(raw.ID), `"`)
	return r.fromDoc(doc)
}

func (r *Rule) fromDoc(doc ruleDoc) error {
	id, err := strconv.Atoi(strings.TrimSpace(doc.ID))
	if err != nil {
		return fmt.Errorf("rule id %q is not an integer", doc.ID)
	}
	r.ID = id
	r.Action = doc.Action
	r.Conditions = doc.Conditions
	return nil
}

// RuleBase is an ordered collection of rules as loaded from a source.
type RuleBase struct {
	// Rules in declaration order.
	Rules []Rule

	// Source describes where the rules were loaded from.
	Source string
}

// IDs returns the rule ids in declaration order.
func (rb *RuleBase) IDs() []int {
	ids := make([]int, len(rb.Rules))
	for i, r := range rb.Rules {
		ids[i] = r.ID
	}
	return ids
}

// Contains reports whether a rule with the given id exists.
func (rb *RuleBase) Contains(id int) bool {
	for _, r := range rb.Rules {
		if r.ID == id {
			return true
		}
	}
	return false
}
